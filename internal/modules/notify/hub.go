// README: In-process broker that fans events out to topic subscribers.
package notify

import (
	"context"
	"log"
	"sync"

	"github.com/google/uuid"
)

const subscriberBuffer = 64

// Subscriber receives encoded events for the topics it asked for. Its channel
// is closed when it unsubscribes or is dropped for falling behind.
type Subscriber struct {
	ID     string
	topics map[Topic]bool
	send   chan []byte
}

func (s *Subscriber) Events() <-chan []byte {
	return s.send
}

func (s *Subscriber) Wants(t Topic) bool {
	return s.topics[t]
}

// Hub maintains subscribers and broadcasts events to them.
type Hub struct {
	subscribers map[string]*Subscriber
	broadcast   chan Event
	register    chan *Subscriber
	unregister  chan *Subscriber
	done        chan struct{}
	mu          sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[string]*Subscriber),
		broadcast:   make(chan Event, 256),
		register:    make(chan *Subscriber),
		unregister:  make(chan *Subscriber),
		done:        make(chan struct{}),
	}
}

// Run starts the hub's main loop and returns when ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		close(h.done)
		h.mu.Lock()
		for id, s := range h.subscribers {
			delete(h.subscribers, id)
			close(s.send)
		}
		h.mu.Unlock()
	}()
	for {
		select {
		case <-ctx.Done():
			return

		case s := <-h.register:
			h.mu.Lock()
			h.subscribers[s.ID] = s
			n := len(h.subscribers)
			h.mu.Unlock()
			log.Printf("[notify] subscriber %s connected (%d total)", s.ID, n)

		case s := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.subscribers[s.ID]; ok {
				delete(h.subscribers, s.ID)
				close(s.send)
				log.Printf("[notify] subscriber %s disconnected (%d remaining)", s.ID, len(h.subscribers))
			}
			h.mu.Unlock()

		case e := <-h.broadcast:
			data, err := Encode(e)
			if err != nil {
				log.Printf("[notify] drop unencodable event: %v", err)
				continue
			}
			h.mu.Lock()
			for id, s := range h.subscribers {
				if !s.Wants(e.Topic) {
					continue
				}
				select {
				case s.send <- data:
				default:
					// Buffer full: the subscriber reconciles by polling after reconnecting.
					delete(h.subscribers, id)
					close(s.send)
					log.Printf("[notify] subscriber %s buffer full, disconnecting", id)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Subscribe registers a subscriber for topics. It returns nil once the hub
// has stopped.
func (h *Hub) Subscribe(topics ...Topic) *Subscriber {
	s := &Subscriber{
		ID:     uuid.NewString(),
		topics: make(map[Topic]bool, len(topics)),
		send:   make(chan []byte, subscriberBuffer),
	}
	for _, t := range topics {
		s.topics[t] = true
	}
	select {
	case h.register <- s:
		return s
	case <-h.done:
		return nil
	}
}

func (h *Hub) Unsubscribe(s *Subscriber) {
	if s == nil {
		return
	}
	select {
	case h.unregister <- s:
	case <-h.done:
	}
}

// Publish queues e for delivery. Events published after the hub stopped are
// discarded.
func (h *Hub) Publish(e Event) {
	select {
	case h.broadcast <- e:
	case <-h.done:
	}
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}
