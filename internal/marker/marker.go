// Package marker remembers which event ids have already been counted so a
// redelivered event does not become a second increment.
package marker

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

type ProcessMarker interface {
	// Acquire returns true when the caller is the first to claim id.
	Acquire(ctx context.Context, id string) (bool, error)
	// Release gives the claim back, e.g. after the increment failed.
	Release(ctx context.Context, id string) error
}

var _ ProcessMarker = (*LocalMarker)(nil)

// LocalMarker only deduplicates within one process.
type LocalMarker struct {
	cache *cache.Cache
}

func NewLocalMarker(ttl time.Duration) *LocalMarker {
	return &LocalMarker{cache: cache.New(ttl, ttl)}
}

func (c *LocalMarker) Acquire(ctx context.Context, id string) (bool, error) {
	err := c.cache.Add(id, struct{}{}, cache.DefaultExpiration)
	return err == nil, nil
}

func (c *LocalMarker) Release(ctx context.Context, id string) error {
	c.cache.Delete(id)
	return nil
}

var _ ProcessMarker = (*RedisMarker)(nil)

// RedisMarker deduplicates across every subscriber sharing the Redis.
type RedisMarker struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisMarker(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisMarker {
	return &RedisMarker{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (c *RedisMarker) key(id string) string {
	return c.prefix + ":processed:" + id
}

func (c *RedisMarker) Acquire(ctx context.Context, id string) (bool, error) {
	return c.client.SetNX(ctx, c.key(id), "v", c.ttl).Result()
}

func (c *RedisMarker) Release(ctx context.Context, id string) error {
	return c.client.Del(ctx, c.key(id)).Err()
}
