// README: In-memory request store for development mode and tests.
package delivery

import (
	"context"
	"sort"
	"sync"
	"time"

	"kirana/internal/types"
)

type MemoryStore struct {
	mu       sync.RWMutex
	requests map[types.ID]*Request
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{requests: make(map[types.ID]*Request)}
}

func (m *MemoryStore) Create(_ context.Context, r *Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[r.ID] = r.Clone()
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id types.ID) (*Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	return r.Clone(), nil
}

func (m *MemoryStore) Transition(_ context.Context, id types.ID, from, to Status, driverID *types.ID, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok || r.Status != from {
		return false, nil
	}
	r.Status = to
	r.UpdatedAt = at
	if driverID != nil {
		d := *driverID
		r.DriverID = &d
	}
	stamp := at
	switch to {
	case StatusAccepted:
		r.AcceptedAt = &stamp
	case StatusPickedUp:
		r.PickedUpAt = &stamp
	case StatusDelivered:
		r.DeliveredAt = &stamp
	}
	return true, nil
}

func (m *MemoryStore) ListByShop(_ context.Context, shopID types.ID) ([]*Request, error) {
	return m.filter(func(r *Request) bool {
		return r.ShopID != nil && *r.ShopID == shopID
	}), nil
}

func (m *MemoryStore) ListByDriver(_ context.Context, driverID types.ID, activeOnly bool) ([]*Request, error) {
	return m.filter(func(r *Request) bool {
		if r.DriverID == nil || *r.DriverID != driverID {
			return false
		}
		return !activeOnly || r.Status.Active()
	}), nil
}

func (m *MemoryStore) List(_ context.Context, status *Status) ([]*Request, error) {
	return m.filter(func(r *Request) bool {
		return status == nil || r.Status == *status
	}), nil
}

func (m *MemoryStore) UpdateDriverLocation(_ context.Context, driverID types.ID, p types.Point, at time.Time) ([]*Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Request
	for _, r := range m.requests {
		if r.DriverID == nil || *r.DriverID != driverID || !r.Status.Active() {
			continue
		}
		loc := p
		r.DriverLocation = &loc
		r.UpdatedAt = at
		out = append(out, r.Clone())
	}
	sortNewestFirst(out)
	return out, nil
}

func (m *MemoryStore) DeleteStale(_ context.Context, cutoff time.Time, statuses []Status) ([]*Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Request
	for id, r := range m.requests {
		if !r.CreatedAt.Before(cutoff) || !statusIn(r.Status, statuses) {
			continue
		}
		out = append(out, r.Clone())
		delete(m.requests, id)
	}
	sortNewestFirst(out)
	return out, nil
}

func (m *MemoryStore) filter(keep func(*Request) bool) []*Request {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Request, 0)
	for _, r := range m.requests {
		if keep(r) {
			out = append(out, r.Clone())
		}
	}
	sortNewestFirst(out)
	return out
}

func sortNewestFirst(rs []*Request) {
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].CreatedAt.Equal(rs[j].CreatedAt) {
			return rs[i].ID > rs[j].ID
		}
		return rs[i].CreatedAt.After(rs[j].CreatedAt)
	})
}

func statusIn(s Status, set []Status) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
