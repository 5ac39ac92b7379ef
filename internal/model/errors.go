package model

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across registries and engines.
var (
	// ErrNotFound indicates a referenced entity id does not exist.
	ErrNotFound = errors.New("not found")

	// ErrCapacityExceeded indicates an agent limit was reached
	// (global or per-sector).
	ErrCapacityExceeded = errors.New("capacity exceeded")

	// ErrOracleUnavailable indicates the reasoning oracle is disabled,
	// timed out, or returned an unparseable response.
	ErrOracleUnavailable = errors.New("oracle unavailable")
)

// ValidationError reports a bad input shape or out-of-range value.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// NewValidationError creates a ValidationError for a field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// IllegalTransitionError reports an attempt to move a discussion backward
// or to skip a state.
type IllegalTransitionError struct {
	From DiscussionStatus
	To   DiscussionStatus
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal discussion transition %s -> %s", e.From, e.To)
}

// StorageError wraps an I/O failure in the persistence layer. The prior
// state of the document remains visible.
type StorageError struct {
	Op  string // "read", "write", "rename", "lock"
	Doc string // document name
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s failed for %q: %v", e.Op, e.Doc, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
