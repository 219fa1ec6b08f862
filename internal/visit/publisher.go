// Package visit publishes visit events for the event-triggered counter and
// keeps track of how many of them the broker accepted.
package visit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Event is the payload of one visit. The subscriber counts deliveries and
// does not look inside.
type Event struct {
	ID   string    `json:"id"`
	Time time.Time `json:"time"`
}

// Result is the pending outcome of one publish; *pubsub.PublishResult satisfies it.
type Result interface {
	Get(ctx context.Context) (serverID string, err error)
}

type PublishFunc func(ctx context.Context, data []byte) Result

// ErrStopped is returned by Publish once a confirmation failed and the
// Publisher stopped taking events.
var ErrStopped = errors.New("visit: publisher stopped")

// Publisher hands events to publish and confirms them on a fixed number of
// goroutines. Publish must not be called after Wait.
type Publisher struct {
	publish   PublishFunc
	chRes     chan Result
	eg        *errgroup.Group
	ctx       context.Context
	published atomic.Int64
	now       func() time.Time
}

func NewPublisher(ctx context.Context, publish PublishFunc, confirmers int) *Publisher {
	eg, ctx := errgroup.WithContext(ctx)
	p := &Publisher{
		publish: publish,
		chRes:   make(chan Result, confirmers),
		eg:      eg,
		ctx:     ctx,
		now:     time.Now,
	}

	for i := 0; i < confirmers; i++ {
		eg.Go(p.confirm)
	}
	return p
}

func (p *Publisher) confirm() error {
	for {
		select {
		case res, ok := <-p.chRes:
			if !ok {
				return nil
			}

			if _, err := res.Get(p.ctx); err != nil {
				return fmt.Errorf("PublishResult.Get: %w", err)
			}
			p.published.Add(1)
		case <-p.ctx.Done():
			return p.ctx.Err()
		}
	}
}

// Publish sends one event. It returns ErrStopped instead of blocking when the
// confirmers have given up.
func (p *Publisher) Publish(ctx context.Context) error {
	b, err := json.Marshal(Event{ID: uuid.NewString(), Time: p.now().UTC()})
	if err != nil {
		return err
	}

	res := p.publish(ctx, b)
	select {
	case p.chRes <- res:
		return nil
	case <-p.ctx.Done():
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Published is the number of events the broker confirmed so far.
func (p *Publisher) Published() int64 {
	return p.published.Load()
}

// Wait confirms what is still pending and returns the number of confirmed
// events with the first confirmation error.
func (p *Publisher) Wait() (int64, error) {
	close(p.chRes)
	err := p.eg.Wait()
	return p.published.Load(), err
}
