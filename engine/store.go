package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/agentmem/agentmem/memtypes"
)

// Store is the persistence seam MemoryEngine writes through.
// storage.RepoStore, an adapter over a single Repository[MemoryRow]
// (the memories table, for every memtypes.MemoryKind), satisfies
// this in production; MemStore below is the in-process development/
// test implementation, shaped like agent/memory/inmemory_store.go's
// map-of-structs-under-a-lock.
type Store interface {
	Save(ctx context.Context, m *memtypes.Memory) error
	Load(ctx context.Context, id string) (*memtypes.Memory, error)
	List(ctx context.Context, includeDeleted bool) ([]*memtypes.Memory, error)
	Delete(ctx context.Context, id string) error
}

// MemStore is an in-process Store over a guarded map, used by tests and
// by callers that don't need cross-process durability.
type MemStore struct {
	mu    sync.RWMutex
	items map[string]*memtypes.Memory
}

// NewMemStore builds an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{items: make(map[string]*memtypes.Memory)}
}

func (s *MemStore) Save(ctx context.Context, m *memtypes.Memory) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[m.ID] = m
	return nil
}

func (s *MemStore) Load(ctx context.Context, id string) (*memtypes.Memory, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.items[id]
	if !ok {
		return nil, nil
	}
	return m, nil
}

func (s *MemStore) List(ctx context.Context, includeDeleted bool) ([]*memtypes.Memory, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*memtypes.Memory, 0, len(s.items))
	for _, m := range s.items {
		if !includeDeleted && m.Snapshot().IsDeleted {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
	return nil
}

// now is overridable by tests via Engine.now.
var defaultNow = time.Now
