package storage

import (
	"context"
	"sync"

	"github.com/specwise/specchat/internal/domain"
)

// MemoryStore keeps raw uploaded documents in process memory. It backs the
// in-memory serve mode, where export has no object store behind it.
type MemoryStore struct {
	mu   sync.RWMutex
	objs map[string]memoryObject
}

type memoryObject struct {
	data        []byte
	contentType string
}

// NewMemoryStore creates an empty in-memory document store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objs: make(map[string]memoryObject)}
}

// Put stores the raw document bytes for a spec, replacing any earlier copy.
func (s *MemoryStore) Put(ctx context.Context, specID string, raw []byte, contentType string) error {
	data := make([]byte, len(raw))
	copy(data, raw)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objs[specID] = memoryObject{data: data, contentType: contentType}
	return nil
}

// Get returns the stored document bytes for a spec.
func (s *MemoryStore) Get(ctx context.Context, specID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objs[specID]
	if !ok {
		return nil, domain.ErrSpecNotFound
	}
	data := make([]byte, len(obj.data))
	copy(data, obj.data)
	return data, nil
}

// Delete removes the stored document for a spec. Deleting an absent spec is
// not an error.
func (s *MemoryStore) Delete(ctx context.Context, specID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objs, specID)
	return nil
}
