// Package common defines shared constants and sentinel errors used across
// the server and client layers of GophDrop. Callers should use errors.Is to
// match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound    = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// Service-level errors.
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// ErrValidation marks bad or oversized input. It is usually wrapped with
	// a message that is safe to show to the caller verbatim.
	ErrValidation = errors.New("validation error")

	// ErrStorageUnavailable marks a failure of an upstream dependency (object
	// store or metadata store). Retryable by the caller.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrPartialFailure means the metadata record was consumed but no
	// download descriptor could be issued.
	ErrPartialFailure = errors.New("partial failure")
)

// ValidationError carries a caller-facing message and matches ErrValidation.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}
