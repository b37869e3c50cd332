package service

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by CardService. Callers check them with
// errors.Is; the API layer maps them to HTTP status codes.
var (
	// ErrActionNotPermitted indicates the action is not in the card's
	// capability set. API layer should map this to HTTP 409 Conflict.
	ErrActionNotPermitted = errors.New("action not permitted for card")

	// ErrCardClosed indicates the card is completed or cancelled and accepts
	// no further transitions. API layer should map this to HTTP 409 Conflict.
	ErrCardClosed = errors.New("card is closed")

	// ErrFeatureDisabled indicates an optional collaborator is not
	// configured. API layer should map this to HTTP 503.
	ErrFeatureDisabled = errors.New("feature not configured")
)

// ServiceError carries the failing operation alongside the cause.
type ServiceError struct {
	Operation string
	Message   string
	Err       error
}

// Error implements the error interface for ServiceError.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("card service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("card service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError creates a new ServiceError.
func NewServiceError(operation, message string, err error) *ServiceError {
	return &ServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
