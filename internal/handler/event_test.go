package handler_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/datastore"
	"github.com/tckz/visitor-counter/internal/counter"
	"github.com/tckz/visitor-counter/internal/marker"
)

func TestHandleEventOncePerID(t *testing.T) {
	spy := newSpy(0)
	h := newHandler(spy)
	m := marker.NewLocalMarker(time.Minute)

	for _, id := range []string{"a", "b", "a", "a"} {
		if !h.HandleEvent(context.Background(), m, id) {
			t.Fatalf("Expected id %s to be acked", id)
		}
	}

	if v := spy.stored(t); v != 2 {
		t.Fatalf("Expected 2 increments for 2 distinct ids, got %d", v)
	}
}

func TestHandleEventRejectedIsRedelivered(t *testing.T) {
	cases := []struct {
		name string
		err  error
	}{
		{"throttled", &counter.StoreOperationError{Backend: "dynamodb", Op: "UpdateItem", Throttled: true, Err: errors.New("slow down")}},
		{"aborted transaction", &counter.StoreOperationError{Backend: "datastore", Op: "RunInTransaction", Err: datastore.ErrConcurrentTransaction}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			spy := newSpy(0)
			spy.fail = c.err
			h := newHandler(spy)
			m := marker.NewLocalMarker(time.Minute)

			if h.HandleEvent(context.Background(), m, "a") {
				t.Fatal("Expected a nack on failure")
			}

			spy.fail = nil
			if !h.HandleEvent(context.Background(), m, "a") {
				t.Fatal("Expected the redelivery to be acked")
			}

			if v := spy.stored(t); v != 1 {
				t.Fatalf("Expected exactly 1 increment, got %d", v)
			}
		})
	}
}

func TestHandleEventUncertainFailureKeepsMarker(t *testing.T) {
	spy := newSpy(0)
	h := newHandler(spy)
	m := marker.NewLocalMarker(time.Minute)

	// The increment lands but the caller only sees a timeout.
	spy.LocalCounter.Up(context.Background())
	spy.fail = &counter.StoreOperationError{Backend: "redis", Op: "HIncrBy", Err: context.DeadlineExceeded}

	if h.HandleEvent(context.Background(), m, "a") {
		t.Fatal("Expected a nack on failure")
	}

	spy.fail = nil
	if !h.HandleEvent(context.Background(), m, "a") {
		t.Fatal("Expected the redelivery to be acked")
	}

	if v := spy.stored(t); v != 1 {
		t.Fatalf("Expected the redelivery not to count again, got %d", v)
	}
}

func TestHandleEventUnusableAnswerIsAcked(t *testing.T) {
	spy := newSpy(0)
	spy.fail = &counter.ResponseConstructionError{Source: "dynamodb", Reason: "attribute count missing"}
	h := newHandler(spy)
	m := marker.NewLocalMarker(time.Minute)

	if !h.HandleEvent(context.Background(), m, "a") {
		t.Fatal("Expected an ack once the store answered")
	}

	spy.fail = nil
	if !h.HandleEvent(context.Background(), m, "a") {
		t.Fatal("Expected the redelivery to be acked")
	}

	if spy.calls != 1 {
		t.Fatalf("Expected 1 Up call, got %d", spy.calls)
	}
}
