package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/specwise/specchat/internal/domain"
)

// SpecRepository persists specification metadata.
type SpecRepository struct {
	db dbtx
}

func NewSpecRepository(pool *pgxpool.Pool) *SpecRepository {
	return &SpecRepository{db: pool}
}

func NewSpecRepositoryWithTx(tx pgx.Tx) *SpecRepository {
	return &SpecRepository{db: tx}
}

func (r *SpecRepository) Create(ctx context.Context, s *domain.Specification) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO specs (id, title, version, description, format, size_bytes, chunk_count, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.ID, s.Title, s.Version, s.Description, s.Format, s.SizeBytes, s.ChunkCount, s.CreatedAt,
	)
	return err
}

func (r *SpecRepository) GetByID(ctx context.Context, id string) (*domain.Specification, error) {
	var s domain.Specification
	err := r.db.QueryRow(ctx,
		`SELECT id, title, version, description, format, size_bytes, chunk_count, created_at
		 FROM specs WHERE id = $1`,
		id,
	).Scan(&s.ID, &s.Title, &s.Version, &s.Description, &s.Format, &s.SizeBytes, &s.ChunkCount, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSpecNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *SpecRepository) List(ctx context.Context) ([]*domain.Specification, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, title, version, description, format, size_bytes, chunk_count, created_at
		 FROM specs ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var specs []*domain.Specification
	for rows.Next() {
		var s domain.Specification
		if err := rows.Scan(&s.ID, &s.Title, &s.Version, &s.Description, &s.Format, &s.SizeBytes, &s.ChunkCount, &s.CreatedAt); err != nil {
			return nil, err
		}
		specs = append(specs, &s)
	}
	return specs, rows.Err()
}

func (r *SpecRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM specs WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSpecNotFound
	}
	return nil
}
