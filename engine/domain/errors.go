package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	ErrNotFound           = errors.New("not found")
	ErrMissingID          = errors.New("missing post id")
	ErrNegativeEngagement = errors.New("negative engagement count")
	ErrInvalidText        = errors.New("text is not valid UTF-8")
	ErrMalformedTimestamp = errors.New("malformed timestamp")
	ErrDuplicatePost      = errors.New("duplicate post id")
)

// ValidationError wraps a sentinel with the offending field.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
	Cause   error
}

func (e *ValidationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("validation: %s: %s (value=%q): %v", e.Wrapped, e.Field, e.Value, e.Cause)
	}
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError. cause is optional.
func NewValidationError(field, value string, wrapped error, cause ...error) *ValidationError {
	ve := &ValidationError{Field: field, Value: value, Wrapped: wrapped}
	if len(cause) > 0 {
		ve.Cause = cause[0]
	}
	return ve
}
