package handler

import (
	"context"
	"errors"

	"github.com/tckz/visitor-counter/internal/counter"
	"github.com/tckz/visitor-counter/internal/marker"
	"go.uber.org/zap"
)

// HandleEvent counts one delivered event, at most once per id, and reports
// whether the event should be acked.
//
// The id is given back for the redelivery only when the store is known not to
// have applied the increment (see counter.NotApplied). After any other failure,
// a timeout for one, the id stays marked: if the increment did land the event
// is counted once, if it did not the event is not counted at all.
func (h *CounterHandler) HandleEvent(ctx context.Context, m marker.ProcessMarker, id string) bool {
	logger := h.logger.With(zap.String("msgID", id))

	if got, err := m.Acquire(ctx, id); err != nil {
		logger.Errorf("Acquire: %v", err)
		return false
	} else if !got {
		logger.Infof("already counted")
		return true
	}

	n, err := h.counter.Up(ctx)
	var rce *counter.ResponseConstructionError
	switch {
	case err == nil:
	case errors.As(err, &rce):
		// The store counted it; only the answer was unusable.
		logger.Errorf("Up: %v", err)
		return true
	case counter.NotApplied(err):
		logger.Warnf("Up: %v", err)
		if err := m.Release(ctx, id); err != nil {
			logger.Errorf("Release: %v", err)
		}
		return false
	default:
		logger.Errorf("Up, may or may not be counted: %v", err)
		return false
	}

	if n%1000 == 0 {
		logger.Infof("count=%d", n)
	}
	return true
}
