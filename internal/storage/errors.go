package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a URL, content hash, session or pattern does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned for duplicate keys and already-closed records.
	ErrConflict = errors.New("conflict")
	// ErrValidation is returned when a required field is missing or malformed.
	ErrValidation = errors.New("invalid input")
	// ErrStorage is returned when the underlying database fails. The
	// triggering operation has been rolled back.
	ErrStorage = errors.New("storage error")
)

// ValidationError describes which input field was rejected.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field %s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Invalid builds a *ValidationError.
func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// StorageErr tags a database failure with ErrStorage while keeping the cause.
func StorageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}
