package model

import (
	"errors"
	"fmt"
)

// Error taxonomy for the sync core. Callers match with errors.Is.
var (
	ErrValidation         = errors.New("validation failed")
	ErrStorage            = errors.New("storage failure")
	ErrDuplicateOperation = errors.New("duplicate operation")
	ErrNotFound           = errors.New("task not found")
)

// ValidationError wraps ErrValidation with the offending field.
func ValidationError(field, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrValidation, field, reason)
}

// StorageError wraps ErrStorage around the backend failure.
func StorageError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}
