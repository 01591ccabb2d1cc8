package store

import (
	"context"
	"sync"

	"ci-component-catalog/internal/domain"
)

// MemoryStore keeps the snapshot in memory only. Used when persistence is
// disabled and as a test double.
type MemoryStore struct {
	mu       sync.Mutex
	snapshot *domain.CacheSnapshot
}

var _ domain.SnapshotStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(_ context.Context) (*domain.CacheSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot, nil
}

func (s *MemoryStore) Save(_ context.Context, snapshot *domain.CacheSnapshot) error {
	snapshot.Version = domain.SnapshotVersion
	copied := *snapshot
	s.mu.Lock()
	s.snapshot = &copied
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
