package shared

import "errors"

// Error classes shared across domains. Domain sentinels wrap one of these so
// the transport layer can map them without importing every domain package.
var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState indicates a workflow transition that is not allowed.
	ErrInvalidState = errors.New("invalid state")
	// ErrConflict indicates a concurrent or duplicate operation.
	ErrConflict = errors.New("conflict")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("validation failed")
	// ErrMissingConfiguration indicates required reference data is absent.
	ErrMissingConfiguration = errors.New("missing configuration")
	// ErrUnavailable indicates an optional integration is not configured.
	ErrUnavailable = errors.New("unavailable")
)

type classified struct {
	msg   string
	class error
}

func (e *classified) Error() string { return e.msg }

func (e *classified) Unwrap() error { return e.class }

// Classify returns a sentinel with its own message that also matches class
// under errors.Is.
func Classify(class error, msg string) error {
	return &classified{msg: msg, class: class}
}
