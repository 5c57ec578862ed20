package store

import (
	"errors"
	"fmt"
)

// Sentinel errors for common repository failures.
var (
	// ErrNotFound indicates the requested entity does not exist
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity with the same identity exists
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates the request failed validation
	ErrInvalidInput = errors.New("invalid input")
)

// ValidationError provides field-level detail for invalid requests.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// NewValidationError creates a field-level validation error.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
