package core

import "github.com/pkg/errors"

// FieldError ties a validation failure to the offending input field.
type FieldError struct {
	Field string
	Error string
}

// ValidationError reports rejected input. Fields carries the per-field
// breakdown when one exists; Err alone covers whole-payload failures.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

func (err ValidationError) Unwrap() error { return err.Err }

// shutdown marks an error the process cannot recover from in place; the API
// layer turns it into a graceful stop instead of serving on.
type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string { return s.message }

// IsShutdown reports whether err, at its cause, demands a graceful stop.
func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
