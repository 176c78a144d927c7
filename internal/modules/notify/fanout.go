// README: Fanout turns committed changes into events for the hub or the Redis feed.
package notify

import (
	"context"
	"log"
	"time"

	"kirana/internal/modules/delivery"
	"kirana/internal/modules/presence"
	"kirana/internal/types"
)

// Fanout implements delivery.Publisher and presence.Publisher.
type Fanout struct {
	hub  *Hub
	feed *RedisFeed
	now  func() time.Time
}

// NewFanout publishes through feed when it is non-nil, so every API instance
// relaying the feed sees the event; otherwise straight to hub.
func NewFanout(hub *Hub, feed *RedisFeed) *Fanout {
	return &Fanout{hub: hub, feed: feed, now: time.Now}
}

func (f *Fanout) PublishRequest(ctx context.Context, kind types.ChangeKind, newRec, oldRec *delivery.Request) {
	e, err := RequestEvent(kind, newRec, oldRec, f.now())
	if err != nil {
		log.Printf("[notify] build request event: %v", err)
		return
	}
	f.emit(ctx, e)
}

func (f *Fanout) PublishDriver(ctx context.Context, kind types.ChangeKind, newRec, oldRec *presence.Driver) {
	e, err := DriverEvent(kind, newRec, oldRec, f.now())
	if err != nil {
		log.Printf("[notify] build driver event: %v", err)
		return
	}
	f.emit(ctx, e)
}

func (f *Fanout) emit(ctx context.Context, e Event) {
	if f.feed != nil {
		err := f.feed.Publish(ctx, e)
		if err == nil {
			return
		}
		log.Printf("[notify] redis feed publish failed, delivering locally: %v", err)
	}
	if f.hub != nil {
		f.hub.Publish(e)
	}
}
