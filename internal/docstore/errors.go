package docstore

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the targeted document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrEmptyBatch indicates a batched commit with no writes.
	ErrEmptyBatch = errors.New("batched commit contains no writes")
)

// TransportError wraps a failure to reach the backing store. Callers surface
// these to the user instead of retrying; there are no automatic retries at
// the operation level.
type TransportError struct {
	Op  string
	Err error
}

// NewTransportError wraps err as a transport failure of the named operation.
func NewTransportError(op string, err error) *TransportError {
	return &TransportError{Op: op, Err: err}
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err is or wraps a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
