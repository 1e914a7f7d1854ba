package modelstore

import (
	"context"
	"sync"
)

// MemoryStore keeps the encoded artifact in memory. Load decodes a fresh
// copy each time, so callers never share a model with the store.
type MemoryStore struct {
	mu   sync.RWMutex
	data []byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load returns the last saved artifact.
func (s *MemoryStore) Load(ctx context.Context) (*Artifact, error) {
	s.mu.RLock()
	data := s.data
	s.mu.RUnlock()

	if data == nil {
		return nil, ErrNotFound
	}
	return Decode(data)
}

// Save replaces the stored artifact.
func (s *MemoryStore) Save(ctx context.Context, a *Artifact) error {
	data, err := Encode(a)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.data = data
	s.mu.Unlock()
	return nil
}
