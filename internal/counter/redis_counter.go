package counter

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

var _ Counter = (*RedisCounter)(nil)

// RedisCounter keeps the count as a field of a hash, "<prefix>:visitors".
type RedisCounter struct {
	key    string
	client redis.UniversalClient
}

func NewRedisCounter(client redis.UniversalClient, prefix string) *RedisCounter {
	return &RedisCounter{
		key:    prefix + ":" + Key,
		client: client,
	}
}

func (c *RedisCounter) Get(ctx context.Context) (int64, error) {
	n, err := c.client.HGet(ctx, c.key, Field).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, storeError("redis", "HGet", err)
	}
	return n, nil
}

func (c *RedisCounter) Up(ctx context.Context) (int64, error) {
	n, err := c.client.HIncrBy(ctx, c.key, Field, 1).Result()
	if err != nil {
		return 0, storeError("redis", "HIncrBy", err)
	}
	return n, nil
}

func (c *RedisCounter) Close() error {
	return c.client.Close()
}
