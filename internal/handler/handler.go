// Package handler turns one invocation into one atomic increment of the
// visitor counter and a JSON response. The same core serves plain HTTP and
// API Gateway events delivered by Lambda.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/tckz/visitor-counter/internal/counter"
	"go.uber.org/zap"
)

const headerRequestID = "X-Request-Id"

// Response is the transport neutral result of an invocation.
type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       string
}

type countBody struct {
	Count int64 `json:"count"`
}

type errorBody struct {
	Error string `json:"error"`
}

type CounterHandler struct {
	counter counter.Counter
	logger  *zap.SugaredLogger
}

// New takes a counter created once per process; the handler itself keeps no state.
func New(c counter.Counter, logger *zap.SugaredLogger) *CounterHandler {
	return &CounterHandler{
		counter: c,
		logger:  logger,
	}
}

func baseHeaders() map[string]string {
	return map[string]string{
		"Access-Control-Allow-Origin": "*",
		"Content-Type":                "application/json",
	}
}

// Invoke increments the counter exactly once. Failures are never retried here.
func (h *CounterHandler) Invoke(ctx context.Context, requestID string) Response {
	logger := h.logger.With(zap.String("requestID", requestID))

	n, err := h.counter.Up(ctx)
	if err != nil {
		return h.failure(logger, err)
	}

	if n < 1 {
		// The increment has been applied but the value is not a valid count.
		return h.failure(logger, &counter.ResponseConstructionError{Source: "handler", Reason: fmt.Sprintf("count %d after increment", n)})
	}

	b, err := json.Marshal(countBody{Count: n})
	if err != nil {
		return h.failure(logger, &counter.ResponseConstructionError{Source: "handler", Reason: err.Error()})
	}

	logger.Debugf("count=%d", n)

	return Response{
		StatusCode: http.StatusOK,
		Headers:    baseHeaders(),
		Body:       string(b),
	}
}

func (h *CounterHandler) failure(logger *zap.SugaredLogger, err error) Response {
	status := http.StatusInternalServerError
	msg := "counter store operation failed"

	var rce *counter.ResponseConstructionError
	switch {
	case counter.IsThrottled(err):
		status = http.StatusServiceUnavailable
		msg = "counter store is throttling requests"
	case errors.As(err, &rce):
		msg = "unexpected counter store response"
	}

	logger.With(zap.Error(err)).Errorf("*** Invoke: status=%d", status)

	b, _ := json.Marshal(errorBody{Error: msg})
	return Response{
		StatusCode: status,
		Headers:    baseHeaders(),
		Body:       string(b),
	}
}
