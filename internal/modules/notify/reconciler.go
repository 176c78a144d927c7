// README: Client-side view maintenance from events plus periodic polling.
package notify

import (
	"context"
	"log"
	"sync"
	"time"

	"kirana/internal/modules/delivery"
	"kirana/internal/modules/presence"
	"kirana/internal/types"
)

// Reconciler keeps a keyed view of records. Events overwrite or delete single
// entries; a poll replaces the whole view. Both paths are last-write-wins and
// converge to the server state once changes stop.
type Reconciler[T any] struct {
	mu       sync.RWMutex
	items    map[types.ID]T
	key      func(T) types.ID
	fetch    func(ctx context.Context) ([]T, error)
	interval time.Duration
}

func NewReconciler[T any](key func(T) types.ID, fetch func(ctx context.Context) ([]T, error), interval time.Duration) *Reconciler[T] {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Reconciler[T]{
		items:    make(map[types.ID]T),
		key:      key,
		fetch:    fetch,
		interval: interval,
	}
}

func (r *Reconciler[T]) Apply(c Change[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch c.Type {
	case types.ChangeInsert, types.ChangeUpdate:
		if c.New != nil {
			r.items[r.key(*c.New)] = *c.New
		}
	case types.ChangeDelete:
		if c.Old != nil {
			delete(r.items, r.key(*c.Old))
		}
	}
}

func (r *Reconciler[T]) Poll(ctx context.Context) error {
	items, err := r.fetch(ctx)
	if err != nil {
		return err
	}
	next := make(map[types.ID]T, len(items))
	for _, it := range items {
		next[r.key(it)] = it
	}
	r.mu.Lock()
	r.items = next
	r.mu.Unlock()
	return nil
}

func (r *Reconciler[T]) Get(id types.ID) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.items[id]
	return v, ok
}

func (r *Reconciler[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// Run polls immediately, then applies changes as they arrive and polls every
// interval. A closed changes channel leaves polling as the only source.
func (r *Reconciler[T]) Run(ctx context.Context, changes <-chan Change[T]) {
	if err := r.Poll(ctx); err != nil {
		log.Printf("[notify] initial poll failed: %v", err)
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			r.Apply(c)
		case <-ticker.C:
			if err := r.Poll(ctx); err != nil {
				log.Printf("[notify] poll failed: %v", err)
			}
		}
	}
}

// RequestChanges decodes the delivery_requests events of sub until its channel
// closes or ctx is cancelled.
func RequestChanges(ctx context.Context, sub *Subscriber) <-chan Change[delivery.Request] {
	return decodeStream(ctx, sub, Event.Requests)
}

func DriverChanges(ctx context.Context, sub *Subscriber) <-chan Change[presence.Driver] {
	return decodeStream(ctx, sub, Event.Drivers)
}

func decodeStream[T any](ctx context.Context, sub *Subscriber, decode func(Event) (Change[T], error)) <-chan Change[T] {
	out := make(chan Change[T], subscriberBuffer)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case data, ok := <-sub.Events():
				if !ok {
					return
				}
				e, err := Decode(data)
				if err != nil {
					continue
				}
				c, err := decode(e)
				if err != nil {
					continue
				}
				select {
				case out <- c:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
