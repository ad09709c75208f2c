package keys

import (
	"context"
	"iter"
	"sync"

	apperrors "github.com/grumpyguvner/mailkeys/internal/errors"
)

// MemoryStore keeps the index in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]map[string]struct{}
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty in-memory index.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]map[string]struct{})}
}

// Store adds key to the set of repository.
func (m *MemoryStore) Store(ctx context.Context, repository, key string) error {
	if err := ctx.Err(); err != nil {
		return apperrors.FromContext("store key", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	set, ok := m.entries[repository]
	if !ok {
		set = make(map[string]struct{})
		m.entries[repository] = set
	}
	set[key] = struct{}{}
	return nil
}

// List yields a snapshot of the keys of repository taken when ranging starts.
func (m *MemoryStore) List(ctx context.Context, repository string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if err := ctx.Err(); err != nil {
			yield("", apperrors.FromContext("list keys", err))
			return
		}

		// snapshot so yield runs without the lock held
		m.mu.RLock()
		snapshot := make([]string, 0, len(m.entries[repository]))
		for key := range m.entries[repository] {
			snapshot = append(snapshot, key)
		}
		m.mu.RUnlock()

		for _, key := range snapshot {
			if !yield(key, nil) {
				return
			}
		}
	}
}

// Remove drops key from repository; empty sets are forgotten.
func (m *MemoryStore) Remove(ctx context.Context, repository, key string) error {
	if err := ctx.Err(); err != nil {
		return apperrors.FromContext("remove key", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	set, ok := m.entries[repository]
	if !ok {
		return nil
	}
	delete(set, key)
	if len(set) == 0 {
		delete(m.entries, repository)
	}
	return nil
}

// Close is a no-op; it lets MemoryStore stand in where a closable backend is expected.
func (m *MemoryStore) Close() error {
	return nil
}
