package kafka

import (
	"context"
	"errors"

	"service-dispatcher/internal/apperr"
)

// PermanentError is a permanent error.
type PermanentError struct {
	Err error
}

func (e PermanentError) Error() string {
	if e.Err == nil {
		return "permanent error"
	}
	return e.Err.Error()
}

func (e PermanentError) Unwrap() error { return e.Err }

// Permanent returns a permanent error.
func Permanent(err error) error {
	return PermanentError{Err: err}
}

// transient reports whether redelivering the message may succeed.
func transient(err error) bool {
	var perm PermanentError
	if errors.As(err, &perm) {
		return false
	}
	return errors.Is(err, apperr.ErrUnavailable) ||
		errors.Is(err, apperr.ErrTooMuchContention) ||
		errors.Is(err, context.DeadlineExceeded)
}
