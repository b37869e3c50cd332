// Package domain defines the core business entities and errors.
package domain

import (
	"errors"
	"fmt"
)

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidFormat is returned when data is not in the expected format.
	ErrInvalidFormat = fmt.Errorf("%w: invalid format", ErrValidation)

	// ErrInvalidKind is returned for an unknown card kind.
	ErrInvalidKind = fmt.Errorf("%w: invalid card kind", ErrValidation)

	// ErrInvalidContent is returned when a card payload does not decode
	// or disagrees with its declared kind.
	ErrInvalidContent = fmt.Errorf("%w: invalid card content", ErrValidation)

	// ErrInvalidAltitude is returned for an unknown altitude.
	ErrInvalidAltitude = fmt.Errorf("%w: invalid altitude", ErrValidation)

	// ErrInvalidAction is returned for an unknown card action.
	ErrInvalidAction = fmt.Errorf("%w: invalid card action", ErrValidation)

	// ErrInvalidWakeCondition is returned for a malformed wake condition.
	ErrInvalidWakeCondition = fmt.Errorf("%w: invalid wake condition", ErrValidation)
)

// ValidationError names the field that failed validation.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a new ValidationError for field.
func NewValidationError(field, message string, err error) *ValidationError {
	return &ValidationError{Field: field, Message: message, Err: err}
}
