package client

import (
	"errors"
	"fmt"
)

var (
	ErrUnavailable  = errors.New("server unavailable")
	ErrAccessDenied = errors.New("access denied")
	ErrInvalid      = errors.New("invalid request")
)

// APIError is a non-2xx answer from the server. Message is the server's
// "error" field.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrAccessDenied:
		return e.Status == 403
	case ErrUnavailable:
		return e.Status == 503
	case ErrInvalid:
		return e.Status == 400 || e.Status == 413
	}
	return false
}
