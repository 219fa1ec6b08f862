package counter_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"

	"cloud.google.com/go/datastore"
	"github.com/tckz/visitor-counter/internal/config"
	"github.com/tckz/visitor-counter/internal/counter"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// upConcurrently calls Up n times from n goroutines and returns the sorted results.
func upConcurrently(t *testing.T, c counter.Counter, n int) []int64 {
	t.Helper()

	got := make([]int64, n)
	eg, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < n; i++ {
		index := i
		eg.Go(func() error {
			v, err := c.Up(ctx)
			if err != nil {
				return err
			}
			got[index] = v
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		t.Fatalf("Expected no error from Up, got %v", err)
	}

	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	return got
}

// assertSerialized checks the values are exactly from+1 .. from+n.
func assertSerialized(t *testing.T, got []int64, from int64) {
	t.Helper()

	for i, v := range got {
		if want := from + int64(i) + 1; v != want {
			t.Fatalf("Expected %d at position %d, got %d (all=%v)", want, i, v, got)
		}
	}
}

func TestLocalCounterUp(t *testing.T) {
	c := counter.NewLocalCounter(41)

	n, err := c.Up(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if n != 42 {
		t.Fatalf("Expected 42, got %d", n)
	}
}

func TestLocalCounterConcurrentUp(t *testing.T) {
	c := counter.NewLocalCounter(7)

	got := upConcurrently(t, c, 200)
	assertSerialized(t, got, 7)

	v, _ := c.Get(context.Background())
	if v != 207 {
		t.Fatalf("Expected 207, got %d", v)
	}
}

func TestLocalCounterCanceled(t *testing.T) {
	c := counter.NewLocalCounter(3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.Up(ctx); err == nil {
		t.Fatal("Expected an error for a canceled context")
	}

	v, _ := c.Get(context.Background())
	if v != 3 {
		t.Fatalf("Expected the count to stay 3, got %d", v)
	}
}

func TestIsThrottled(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"grpc resource exhausted", status.Error(codes.ResourceExhausted, "quota"), true},
		{"grpc unavailable", status.Error(codes.Unavailable, "down"), false},
		{"plain", errors.New("boom"), false},
		{"wrapped store error", fmt.Errorf("outer: %w", &counter.StoreOperationError{Backend: "x", Op: "y", Throttled: true, Err: errors.New("slow down")}), true},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := counter.IsThrottled(c.err); got != c.want {
				t.Fatalf("Expected %t, got %t", c.want, got)
			}
		})
	}
}

func TestNotApplied(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"throttled", &counter.StoreOperationError{Backend: "x", Op: "y", Throttled: true, Err: errors.New("slow down")}, true},
		{"aborted transaction", &counter.StoreOperationError{Backend: "datastore", Op: "RunInTransaction", Err: datastore.ErrConcurrentTransaction}, true},
		{"timeout", &counter.StoreOperationError{Backend: "redis", Op: "HIncrBy", Err: context.DeadlineExceeded}, false},
		{"connection reset", errors.New("read: connection reset by peer"), false},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := counter.NotApplied(c.err); got != c.want {
				t.Fatalf("Expected %t, got %t", c.want, got)
			}
		})
	}
}

func TestOpenMemory(t *testing.T) {
	c, err := counter.Open(context.Background(), &config.Config{Backend: config.BackendMemory})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	defer c.Close()

	if _, ok := c.(*counter.LocalCounter); !ok {
		t.Fatalf("Expected *LocalCounter, got %T", c)
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := counter.Open(context.Background(), &config.Config{Backend: "etcd"})

	var ce *config.ConfigurationError
	if !errors.As(err, &ce) {
		t.Fatalf("Expected ConfigurationError, got %v", err)
	}
}
