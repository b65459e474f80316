package gateway

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration means the gateway cannot talk to the store at all:
	// credentials or the bucket are missing.
	ErrConfiguration = errors.New("object store is not configured")

	// ErrValidation marks requests missing a required field.
	ErrValidation = errors.New("invalid request")
)

// UpstreamError wraps a failure reported by the object store.
type UpstreamError struct {
	Op  string
	Key string
	Err error
}

func (e *UpstreamError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Key, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

func validationError(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}
