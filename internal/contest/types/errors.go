package types

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyDeleted indicates a delete on an event that is already
	// soft-deleted, which would double-count the compensating decrement.
	ErrAlreadyDeleted = errors.New("event is already deleted")
	// ErrNotDeleted indicates a restore on an event that is not deleted.
	ErrNotDeleted = errors.New("event is not deleted")
	// ErrNotOwner indicates a mutation by someone other than the event owner.
	ErrNotOwner = errors.New("actor does not own the event")
)

// ValidationError indicates rejected input. These are raised before any
// write is attempted.
type ValidationError struct {
	Field  string
	Reason string
}

// NewValidationError creates a validation error for the named field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ReconciliationError wraps a failure to repair one participant's
// denormalized total during an aggregate sweep.
type ReconciliationError struct {
	ParticipantID string
	Err           error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("failed to reconcile participant %s: %v", e.ParticipantID, e.Err)
}

func (e *ReconciliationError) Unwrap() error {
	return e.Err
}
