package types

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrNotFound means the provider cannot resolve the symbol.
	ErrNotFound = errors.New("symbol not found")
	// ErrTransientUnavailable covers timeouts, rate limits, provider outages
	// and malformed responses. Callers retry on the next cycle.
	ErrTransientUnavailable = errors.New("price temporarily unavailable")
	// ErrDelivery means a notification could not be handed to the messenger.
	ErrDelivery = errors.New("notification delivery failed")
)

// StoreError is a persistence failure for a single store operation.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Cause() error { return e.Err }

func IsStoreError(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}
