package verify_test

import (
	"context"
	"testing"
	"time"

	"github.com/tckz/visitor-counter/internal/counter"
	"github.com/tckz/visitor-counter/internal/verify"
)

func TestSettleReachesWant(t *testing.T) {
	c := counter.NewLocalCounter(10)

	go func() {
		for i := 0; i < 5; i++ {
			time.Sleep(5 * time.Millisecond)
			c.Up(context.Background())
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	v, err := verify.Settle(ctx, c, 15, time.Millisecond)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if v != 15 {
		t.Fatalf("Expected 15, got %d", v)
	}
}

func TestSettleGivesUp(t *testing.T) {
	c := counter.NewLocalCounter(3)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	v, err := verify.Settle(ctx, c, 10, time.Millisecond)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if v != 3 {
		t.Fatalf("Expected the last value 3, got %d", v)
	}
}
