package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/specwise/specchat/internal/domain"
)

// ChunkRepository is the pgvector-backed vector index. Records are keyed by
// chunk_id, so re-upserting the same chunk overwrites payload and vector.
type ChunkRepository struct {
	db dbtx
}

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{db: pool}
}

func NewChunkRepositoryWithTx(tx pgx.Tx) *ChunkRepository {
	return &ChunkRepository{db: tx}
}

// Upsert writes chunks and their vectors. Idempotent by chunk_id.
func (r *ChunkRepository) Upsert(ctx context.Context, specID string, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks and vectors length mismatch: %d vs %d", len(chunks), len(vectors))
	}

	now := time.Now().UTC()
	for i, c := range chunks {
		metadata, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal chunk metadata: %w", err)
		}
		_, err = r.db.Exec(ctx,
			`INSERT INTO spec_chunks (chunk_id, spec_id, kind, content, metadata, embedding, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
			 ON CONFLICT (chunk_id) DO UPDATE SET
				spec_id = EXCLUDED.spec_id,
				kind = EXCLUDED.kind,
				content = EXCLUDED.content,
				metadata = EXCLUDED.metadata,
				embedding = EXCLUDED.embedding,
				updated_at = EXCLUDED.updated_at`,
			c.ID, specID, c.Kind, c.Text, metadata, pgvector.NewVector(vectors[i]), now,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// DeleteBySpec removes every chunk belonging to the specification. A single
// statement, so callers never observe a partial deletion as success.
func (r *ChunkRepository) DeleteBySpec(ctx context.Context, specID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM spec_chunks WHERE spec_id = $1`, specID)
	return err
}

// CountBySpec returns the number of indexed chunks for a specification.
func (r *ChunkRepository) CountBySpec(ctx context.Context, specID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM spec_chunks WHERE spec_id = $1`, specID).Scan(&count)
	return count, err
}

// Search returns the k nearest chunks by cosine similarity, optionally
// scoped to one specification. Equal scores are broken by kind priority
// (path over component over info) then lexical chunk_id, keeping results
// deterministic for identical inputs.
func (r *ChunkRepository) Search(ctx context.Context, specID string, vector []float32, k int) ([]domain.ScoredChunk, error) {
	if k <= 0 {
		k = 5
	}

	query := `
		SELECT chunk_id, spec_id, kind, content, metadata,
		       1 - (embedding <=> $1) AS score
		FROM spec_chunks`
	args := []any{pgvector.NewVector(vector)}

	if specID != "" {
		query += ` WHERE spec_id = $2`
		args = append(args, specID)
	}

	query += fmt.Sprintf(`
		ORDER BY score DESC,
			CASE kind WHEN 'path' THEN 0 WHEN 'component' THEN 1 WHEN 'info' THEN 2 ELSE 3 END,
			chunk_id
		LIMIT $%d`, len(args)+1)
	args = append(args, k)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.ScoredChunk
	for rows.Next() {
		var sc domain.ScoredChunk
		var metadata []byte
		if err := rows.Scan(&sc.Chunk.ID, &sc.Chunk.SpecID, &sc.Chunk.Kind, &sc.Chunk.Text, &metadata, &sc.Score); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(metadata, &sc.Chunk.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal chunk metadata: %w", err)
		}
		results = append(results, sc)
	}
	return results, rows.Err()
}
