// Package errors provides standardized domain errors that express business intent
// rather than infrastructure details. Batch steps and use cases wrap these sentinels
// so the job orchestrator can tell fatal failures from retryable ones.
package errors

import (
	"errors"
	"fmt"
)

// Standard domain errors that can be used across all domain modules.
var (
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a concurrent write conflict with existing data.
	ErrConflict = errors.New("conflict")

	// ErrInvalidInput indicates the input data is invalid or fails validation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvariantViolation indicates a programmer error such as a state that does not
	// belong to the requested flow. These errors are fatal and must never be retried.
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrRetryable indicates the operation failed on a transient condition and the
	// whole step may be re-run later.
	ErrRetryable = errors.New("retryable")
)

// New creates an unclassified error.
func New(message string) error {
	return errors.New(message)
}

// Wrap wraps an error with additional context while preserving the error chain.
// Use this to add context at each layer without losing the original error type.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf is like Wrap with a formatted message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// IsFatal reports whether err must abort the job without retry.
func IsFatal(err error) bool {
	return errors.Is(err, ErrInvariantViolation)
}

// IsRetryable reports whether the job orchestrator may re-run the failed step.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRetryable) || errors.Is(err, ErrConflict)
}
