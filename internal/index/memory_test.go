package index

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specwise/specchat/internal/domain"
)

func chunkFixture(id, specID string, kind domain.ChunkKind) domain.Chunk {
	return domain.Chunk{
		ID:     id,
		SpecID: specID,
		Kind:   kind,
		Text:   "text for " + id,
		Metadata: domain.ChunkMetadata{
			SpecID: specID,
			Kind:   kind,
		},
	}
}

func TestMemoryUpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	chunks := []domain.Chunk{chunkFixture("c1", "s1", domain.ChunkKindPath)}
	vectors := [][]float32{{1, 0}}

	require.NoError(t, m.Upsert(ctx, "s1", chunks, vectors))
	require.NoError(t, m.Upsert(ctx, "s1", chunks, vectors))

	count, err := m.CountBySpec(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMemoryUpsertLengthMismatch(t *testing.T) {
	m := NewMemory()

	err := m.Upsert(context.Background(), "s1",
		[]domain.Chunk{chunkFixture("c1", "s1", domain.ChunkKindPath)},
		[][]float32{{1, 0}, {0, 1}})
	require.Error(t, err)
}

func TestMemoryDeleteBySpecCascades(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Upsert(ctx, "s1", []domain.Chunk{
		chunkFixture("c1", "s1", domain.ChunkKindPath),
		chunkFixture("c2", "s1", domain.ChunkKindInfo),
	}, [][]float32{{1, 0}, {0, 1}}))
	require.NoError(t, m.Upsert(ctx, "s2", []domain.Chunk{
		chunkFixture("c3", "s2", domain.ChunkKindPath),
	}, [][]float32{{1, 1}}))

	require.NoError(t, m.DeleteBySpec(ctx, "s1"))

	count, err := m.CountBySpec(ctx, "s1")
	require.NoError(t, err)
	assert.Zero(t, count)

	count, err = m.CountBySpec(ctx, "s2")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMemorySearchRanksBySimilarity(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Upsert(ctx, "s1", []domain.Chunk{
		chunkFixture("near", "s1", domain.ChunkKindPath),
		chunkFixture("far", "s1", domain.ChunkKindPath),
		chunkFixture("mid", "s1", domain.ChunkKindPath),
	}, [][]float32{
		{1, 0, 0},
		{0, 0, 1},
		{1, 1, 0},
	}))

	results, err := m.Search(ctx, "s1", []float32{1, 0, 0}, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "near", results[0].Chunk.ID)
	assert.Equal(t, "mid", results[1].Chunk.ID)
	assert.Equal(t, "far", results[2].Chunk.ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
}

func TestMemorySearchScopesToSpec(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Upsert(ctx, "s1", []domain.Chunk{
		chunkFixture("c1", "s1", domain.ChunkKindPath),
	}, [][]float32{{1, 0}}))
	require.NoError(t, m.Upsert(ctx, "s2", []domain.Chunk{
		chunkFixture("c2", "s2", domain.ChunkKindPath),
	}, [][]float32{{1, 0}}))

	results, err := m.Search(ctx, "s1", []float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c1", results[0].Chunk.ID)

	// An empty spec ID searches everything.
	results, err = m.Search(ctx, "", []float32{1, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestMemorySearchBreaksTiesByKindThenID(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Upsert(ctx, "s1", []domain.Chunk{
		chunkFixture("z-path", "s1", domain.ChunkKindPath),
		chunkFixture("a-info", "s1", domain.ChunkKindInfo),
		chunkFixture("m-component", "s1", domain.ChunkKindComponent),
		chunkFixture("a-path", "s1", domain.ChunkKindPath),
	}, [][]float32{{1, 0}, {1, 0}, {1, 0}, {1, 0}}))

	results, err := m.Search(ctx, "s1", []float32{1, 0}, 4)
	require.NoError(t, err)
	require.Len(t, results, 4)

	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.Chunk.ID
	}
	assert.Equal(t, []string{"a-path", "z-path", "m-component", "a-info"}, ids)
}

func TestMemorySearchTruncatesToK(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Upsert(ctx, "s1", []domain.Chunk{
		chunkFixture("c1", "s1", domain.ChunkKindPath),
		chunkFixture("c2", "s1", domain.ChunkKindPath),
		chunkFixture("c3", "s1", domain.ChunkKindPath),
	}, [][]float32{{1, 0}, {0.9, 0.1}, {0.8, 0.2}}))

	results, err := m.Search(ctx, "s1", []float32{1, 0}, 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 2}, []float32{2, 4}), 1e-6)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-6)
	assert.InDelta(t, -1.0, cosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-6)
	assert.Zero(t, cosineSimilarity([]float32{0, 0}, []float32{1, 1}))
}
