// README: Redis pub/sub change feed shared by every API instance.
package notify

import (
	"context"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
)

const feedPrefix = "kirana:feed:"

type RedisFeed struct {
	redis *redis.Client
}

func NewRedisFeed(redis *redis.Client) *RedisFeed {
	return &RedisFeed{redis: redis}
}

func channelFor(t Topic) string {
	return feedPrefix + string(t)
}

func (f *RedisFeed) Publish(ctx context.Context, e Event) error {
	data, err := Encode(e)
	if err != nil {
		return err
	}
	return f.redis.Publish(ctx, channelFor(e.Topic), data).Err()
}

// Relay forwards every feed event into hub until ctx is cancelled.
func (f *RedisFeed) Relay(ctx context.Context, hub *Hub) error {
	sub := f.redis.Subscribe(ctx, channelFor(TopicRequests), channelFor(TopicDrivers))
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe change feed: %w", err)
	}
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			e, err := Decode([]byte(msg.Payload))
			if err != nil {
				log.Printf("[notify] skip feed message on %s: %v", msg.Channel, err)
				continue
			}
			hub.Publish(e)
		}
	}
}
