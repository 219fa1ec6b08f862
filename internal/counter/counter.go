// Package counter holds the visitor counter stores. Every backend applies the
// increment with the store's own atomic primitive and returns the value after
// the increment, so callers never read-modify-write.
package counter

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/datastore"
	"github.com/aws/smithy-go"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	// Key identifies the only counter record.
	Key = "visitors"
	// Field is the numeric attribute incremented on Key.
	Field = "count"
)

type Counter interface {
	// Up adds 1 and returns the value after the increment.
	Up(ctx context.Context) (int64, error)
	// Get returns the current value, 0 if the record does not exist yet.
	Get(ctx context.Context) (int64, error)
	Close() error
}

// StoreOperationError is returned when the call to the store fails.
type StoreOperationError struct {
	Backend   string
	Op        string
	Throttled bool
	Err       error
}

func (e *StoreOperationError) Error() string {
	return fmt.Sprintf("counter: %s %s: %v", e.Backend, e.Op, e.Err)
}

func (e *StoreOperationError) Unwrap() error {
	return e.Err
}

func storeError(backend, op string, err error) error {
	return &StoreOperationError{
		Backend:   backend,
		Op:        op,
		Throttled: throttled(err),
		Err:       err,
	}
}

// ResponseConstructionError is returned when the store answered but the
// answer cannot be turned into a count.
type ResponseConstructionError struct {
	Source string
	Reason string
}

func (e *ResponseConstructionError) Error() string {
	return fmt.Sprintf("counter: %s: unexpected response: %s", e.Source, e.Reason)
}

var throttleCodes = map[string]struct{}{
	"ProvisionedThroughputExceededException": {},
	"ThrottlingException":                    {},
	"RequestLimitExceeded":                   {},
	"TooManyRequestsException":               {},
}

func throttled(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		_, ok := throttleCodes[apiErr.ErrorCode()]
		return ok
	}
	return status.Code(err) == codes.ResourceExhausted
}

// IsThrottled reports whether err is the store refusing work due to load.
func IsThrottled(err error) bool {
	var se *StoreOperationError
	if errors.As(err, &se) {
		return se.Throttled
	}
	return throttled(err)
}

// NotApplied reports whether err proves the store did not apply the increment:
// it refused the call for load or aborted the transaction. Any other failure,
// a timeout included, may come after the store applied it.
func NotApplied(err error) bool {
	return IsThrottled(err) || errors.Is(err, datastore.ErrConcurrentTransaction)
}
