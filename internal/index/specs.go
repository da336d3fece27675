package index

import (
	"context"
	"sort"
	"sync"

	"github.com/specwise/specchat/internal/domain"
)

// MemorySpecs is an in-memory specification catalog. It backs development
// deployments that run without Postgres, paired with the Memory index.
type MemorySpecs struct {
	mu    sync.RWMutex
	specs map[string]*domain.Specification
}

func NewMemorySpecs() *MemorySpecs {
	return &MemorySpecs{specs: make(map[string]*domain.Specification)}
}

func (m *MemorySpecs) Create(_ context.Context, s *domain.Specification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *s
	m.specs[s.ID] = &copied
	return nil
}

func (m *MemorySpecs) GetByID(_ context.Context, id string) (*domain.Specification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.specs[id]
	if !ok {
		return nil, domain.ErrSpecNotFound
	}
	copied := *s
	return &copied, nil
}

func (m *MemorySpecs) List(_ context.Context) ([]*domain.Specification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.Specification, 0, len(m.specs))
	for _, s := range m.specs {
		copied := *s
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemorySpecs) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.specs[id]; !ok {
		return domain.ErrSpecNotFound
	}
	delete(m.specs, id)
	return nil
}
