package index

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specwise/specchat/internal/domain"
)

func TestMemorySpecsRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemorySpecs()

	spec := domain.NewSpecification("s1", domain.SpecFormatJSON, 100)
	spec.Title = "Petstore"
	require.NoError(t, m.Create(ctx, spec))

	got, err := m.GetByID(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Petstore", got.Title)

	// Mutating the returned copy must not touch the stored record.
	got.Title = "changed"
	again, err := m.GetByID(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Petstore", again.Title)
}

func TestMemorySpecsGetUnknown(t *testing.T) {
	m := NewMemorySpecs()

	_, err := m.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrSpecNotFound)
}

func TestMemorySpecsListNewestFirst(t *testing.T) {
	ctx := context.Background()
	m := NewMemorySpecs()

	older := domain.NewSpecification("older", domain.SpecFormatJSON, 1)
	older.CreatedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := domain.NewSpecification("newer", domain.SpecFormatJSON, 1)
	newer.CreatedAt = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, m.Create(ctx, older))
	require.NoError(t, m.Create(ctx, newer))

	list, err := m.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "newer", list[0].ID)
	assert.Equal(t, "older", list[1].ID)
}

func TestMemorySpecsDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemorySpecs()

	require.NoError(t, m.Create(ctx, domain.NewSpecification("s1", domain.SpecFormatJSON, 1)))
	require.NoError(t, m.Delete(ctx, "s1"))

	_, err := m.GetByID(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrSpecNotFound)

	assert.ErrorIs(t, m.Delete(ctx, "s1"), domain.ErrSpecNotFound)
}
