package buyer

import (
	"context"
	"sort"
	"sync"

	"kirana/internal/types"
)

type MemoryStore struct {
	mu     sync.RWMutex
	buyers map[types.ID]Buyer
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{buyers: make(map[types.ID]Buyer)}
}

func (m *MemoryStore) Create(_ context.Context, b *Buyer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buyers[b.ID] = copyBuyer(b)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id types.ID) (*Buyer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.buyers[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := copyBuyer(&b)
	return &cp, nil
}

func (m *MemoryStore) List(_ context.Context) ([]*Buyer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Buyer, 0, len(m.buyers))
	for _, b := range m.buyers {
		cp := copyBuyer(&b)
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func copyBuyer(b *Buyer) Buyer {
	cp := *b
	if b.Location != nil {
		p := *b.Location
		cp.Location = &p
	}
	return cp
}
