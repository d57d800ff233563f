package apperr

import "errors"

// ErrInvalid is returned when the input fails domain validation.
var ErrInvalid = errors.New("invalid input")

// ErrConflict indicates a uniqueness or state conflict (HTTP 409).
var ErrConflict = errors.New("conflict")

// ErrNotFound indicates that the requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidTransition indicates a status change the state machine does not allow.
var ErrInvalidTransition = errors.New("invalid status transition")

// ErrNoDriverAvailable is returned when every candidate driver was busy or full.
var ErrNoDriverAvailable = errors.New("no driver available")

// ErrUnavailable wraps failures of the durable or fast shared store.
var ErrUnavailable = errors.New("backing store unavailable")

// ErrTooMuchContention is returned when an optimistic write kept losing its race.
var ErrTooMuchContention = errors.New("too much contention")
