package store

import (
	"errors"
	"fmt"
)

// Errors shared by every store implementation. Implementations map driver
// errors onto these so callers never see driver types.
var (
	ErrNotFound          = errors.New("entity not found")
	ErrDuplicate         = errors.New("entity already exists")
	ErrInvalidEntity     = errors.New("invalid entity")
	ErrUnavailable       = errors.New("store unavailable")
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrCardNotFound means no snapshot was saved for the card.
	ErrCardNotFound = fmt.Errorf("%w: card", ErrNotFound)
	// ErrThreadNotFound means no card is linked to the chat thread.
	ErrThreadNotFound = fmt.Errorf("%w: thread", ErrNotFound)
)

// IsNotFoundError reports whether err is in the not found family.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// StoreError adds the entity and operation to a failed store call.
type StoreError struct {
	Entity    string // "card", "wake", "thread", "queue_event"
	Operation string // "save", "load", "park", ...
	Message   string
	Err       error
}

func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %s: %v", e.Entity, e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("%s %s: %s", e.Entity, e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a StoreError.
func NewStoreError(entity, operation, message string, err error) *StoreError {
	return &StoreError{Entity: entity, Operation: operation, Message: message, Err: err}
}
