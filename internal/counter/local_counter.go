package counter

import (
	"context"
	"sync/atomic"
)

var _ Counter = (*LocalCounter)(nil)

// LocalCounter lives only as long as the process. Useful for local runs and tests.
type LocalCounter struct {
	count int64
}

func NewLocalCounter(initial int64) *LocalCounter {
	return &LocalCounter{count: initial}
}

func (c *LocalCounter) Get(ctx context.Context) (int64, error) {
	return atomic.LoadInt64(&c.count), nil
}

func (c *LocalCounter) Up(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, storeError("memory", "Up", err)
	}
	return atomic.AddInt64(&c.count, 1), nil
}

func (c *LocalCounter) Close() error {
	return nil
}
