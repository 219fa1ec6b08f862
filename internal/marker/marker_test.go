package marker_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/tckz/visitor-counter/internal/marker"
)

func testMarker(t *testing.T, m marker.ProcessMarker) {
	t.Helper()
	ctx := context.Background()

	got, err := m.Acquire(ctx, "msg-1")
	if err != nil || !got {
		t.Fatalf("Expected the first Acquire to win, got %t, %v", got, err)
	}

	got, err = m.Acquire(ctx, "msg-1")
	if err != nil || got {
		t.Fatalf("Expected the second Acquire to lose, got %t, %v", got, err)
	}

	got, err = m.Acquire(ctx, "msg-2")
	if err != nil || !got {
		t.Fatalf("Expected another id to win, got %t, %v", got, err)
	}

	if err := m.Release(ctx, "msg-1"); err != nil {
		t.Fatalf("Expected no error on Release, got %v", err)
	}

	got, err = m.Acquire(ctx, "msg-1")
	if err != nil || !got {
		t.Fatalf("Expected Acquire after Release to win, got %t, %v", got, err)
	}
}

func TestLocalMarker(t *testing.T) {
	testMarker(t, marker.NewLocalMarker(time.Minute))
}

func TestRedisMarker(t *testing.T) {
	s := miniredis.RunT(t)
	cl := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer cl.Close()

	testMarker(t, marker.NewRedisMarker(cl, "crc", time.Minute))

	if ttl := s.TTL("crc:processed:msg-2"); ttl != time.Minute {
		t.Fatalf("Expected a 1m TTL, got %s", ttl)
	}
}
