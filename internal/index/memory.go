// Package index provides an in-memory vector index with the same contract
// as the pgvector-backed repository: idempotent upsert by chunk ID, cascade
// delete by spec ID, and cosine-similarity search with deterministic
// tie-breaking. It backs unit tests and database-less runs.
package index

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/specwise/specchat/internal/domain"
)

type record struct {
	chunk  domain.Chunk
	vector []float32
}

// Memory is a brute-force cosine-similarity index.
type Memory struct {
	mu      sync.RWMutex
	records map[string]record
}

func NewMemory() *Memory {
	return &Memory{records: make(map[string]record)}
}

// Upsert writes chunks and vectors; writing the same chunk ID twice leaves
// the same end state as writing it once.
func (m *Memory) Upsert(ctx context.Context, specID string, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks and vectors length mismatch: %d vs %d", len(chunks), len(vectors))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, c := range chunks {
		m.records[c.ID] = record{chunk: c, vector: vectors[i]}
	}
	return nil
}

// DeleteBySpec removes every record whose chunk belongs to specID.
func (m *Memory) DeleteBySpec(ctx context.Context, specID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, rec := range m.records {
		if rec.chunk.SpecID == specID {
			delete(m.records, id)
		}
	}
	return nil
}

// CountBySpec returns the number of records for specID.
func (m *Memory) CountBySpec(ctx context.Context, specID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, rec := range m.records {
		if rec.chunk.SpecID == specID {
			count++
		}
	}
	return count, nil
}

// Search returns the k nearest records by cosine similarity, optionally
// restricted to one spec. Ties resolve by kind priority then chunk ID.
func (m *Memory) Search(ctx context.Context, specID string, vector []float32, k int) ([]domain.ScoredChunk, error) {
	if k <= 0 {
		k = 5
	}

	m.mu.RLock()
	results := make([]domain.ScoredChunk, 0, len(m.records))
	for _, rec := range m.records {
		if specID != "" && rec.chunk.SpecID != specID {
			continue
		}
		results = append(results, domain.ScoredChunk{
			Chunk: rec.chunk,
			Score: cosineSimilarity(vector, rec.vector),
		})
	}
	m.mu.RUnlock()

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		pi, pj := domain.KindPriority(results[i].Chunk.Kind), domain.KindPriority(results[j].Chunk.Kind)
		if pi != pj {
			return pi < pj
		}
		return results[i].Chunk.ID < results[j].Chunk.ID
	})

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func cosineSimilarity(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
