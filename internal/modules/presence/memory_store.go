// README: In-memory driver store for development mode and tests.
package presence

import (
	"context"
	"sort"
	"sync"
	"time"

	"kirana/internal/types"
)

type MemoryStore struct {
	mu      sync.RWMutex
	drivers map[types.ID]*Driver
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{drivers: make(map[types.ID]*Driver)}
}

func (m *MemoryStore) Create(_ context.Context, d *Driver) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drivers[d.ID] = d.Clone()
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id types.ID) (*Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.drivers[id]
	if !ok {
		return nil, ErrNotFound
	}
	return d.Clone(), nil
}

func (m *MemoryStore) GetMany(_ context.Context, ids []types.ID) ([]*Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Driver, 0, len(ids))
	for _, id := range ids {
		if d, ok := m.drivers[id]; ok {
			out = append(out, d.Clone())
		}
	}
	return out, nil
}

func (m *MemoryStore) SetOnline(_ context.Context, id types.ID, online bool, at time.Time) (*Driver, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drivers[id]
	if !ok {
		return nil, ErrNotFound
	}
	d.Online = online
	d.UpdatedAt = at
	return d.Clone(), nil
}

func (m *MemoryStore) UpdateLocation(_ context.Context, id types.ID, p types.Point, at time.Time) (*Driver, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drivers[id]
	if !ok {
		return nil, ErrNotFound
	}
	loc, stamp := p, at
	d.Location = &loc
	d.LocationAt = &stamp
	d.UpdatedAt = at
	return d.Clone(), nil
}

func (m *MemoryStore) ListOnline(_ context.Context) ([]*Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Driver, 0)
	for _, d := range m.drivers {
		if d.Online {
			out = append(out, d.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
