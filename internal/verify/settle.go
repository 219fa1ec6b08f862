package verify

import (
	"context"
	"time"
)

type Getter interface {
	Get(ctx context.Context) (int64, error)
}

// Settle polls g until it reaches want or ctx is done, and returns the last
// value read. Events are counted asynchronously, so the count trails the
// publisher for a while.
func Settle(ctx context.Context, g Getter, want int64, every time.Duration) (int64, error) {
	t := time.NewTicker(every)
	defer t.Stop()

	for {
		v, err := g.Get(ctx)
		if err != nil {
			return v, err
		}
		if v >= want {
			return v, nil
		}

		select {
		case <-ctx.Done():
			return v, nil
		case <-t.C:
		}
	}
}
