// README: Redis client initialization for the GEO index and change feed.
package infra

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

func NewRedis(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr})
}

// ConnectRedis creates a client and verifies the server is reachable.
func ConnectRedis(ctx context.Context, addr string) (*redis.Client, error) {
	c := NewRedis(addr)
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return c, nil
}
