package shop

import (
	"context"
	"sort"
	"sync"

	"kirana/internal/types"
)

type MemoryStore struct {
	mu    sync.RWMutex
	shops map[types.ID]Shop
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{shops: make(map[types.ID]Shop)}
}

func (m *MemoryStore) Create(_ context.Context, s *Shop) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shops[s.ID] = copyShop(s)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id types.ID) (*Shop, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.shops[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := copyShop(&s)
	return &cp, nil
}

func (m *MemoryStore) List(_ context.Context) ([]*Shop, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Shop, 0, len(m.shops))
	for _, s := range m.shops {
		cp := copyShop(&s)
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func copyShop(s *Shop) Shop {
	cp := *s
	if s.Location != nil {
		p := *s.Location
		cp.Location = &p
	}
	return cp
}
