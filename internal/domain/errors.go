package domain

import (
	"errors"
	"fmt"
)

// Base error types (sentinel errors).
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")
	ErrUnavailable  = errors.New("service unavailable")
)

// Specific errors.
var (
	ErrCollectionNotFound = fmt.Errorf("collection: %w", ErrNotFound)
	ErrItemNotFound       = fmt.Errorf("item: %w", ErrNotFound)
	ErrInvalidCRS         = fmt.Errorf("crs: %w", ErrInvalidInput)
	ErrInvalidBBox        = fmt.Errorf("bbox: %w", ErrInvalidInput)
	ErrInvalidLimit       = fmt.Errorf("limit: %w", ErrInvalidInput)
	ErrInvalidDatetime    = fmt.Errorf("datetime: %w", ErrInvalidInput)
	ErrMalformedDocument  = fmt.Errorf("malformed document: %w", ErrInvalidInput)
	ErrSourceUnavailable  = fmt.Errorf("document source: %w", ErrUnavailable)
)

// ErrEmptyCatalog reports a build that found zero documents. An empty
// snapshot is valid and queryable; callers decide whether to install it.
var ErrEmptyCatalog = errors.New("empty catalog")

// ValidationError represents a detailed query validation error.
type ValidationError struct {
	Field      string      // Field that failed validation
	Value      interface{} // The invalid value
	Constraint string      // The constraint that was violated
	Message    string      // Human-readable message
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for %s: %s (value: %v, constraint: %s)",
		e.Field, e.Message, e.Value, e.Constraint)
}

// Unwrap returns the underlying error type.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// SourceError represents an error during document source operations.
type SourceError struct {
	Operation string // Operation that failed (list, get, etc.)
	Key       string // Object key
	Err       error  // Underlying error
}

// Error implements the error interface.
func (e *SourceError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("source error during %s for %s: %v",
			e.Operation, e.Key, e.Err)
	}
	return fmt.Sprintf("source error during %s: %v", e.Operation, e.Err)
}

// Unwrap returns the underlying error.
func (e *SourceError) Unwrap() error {
	return e.Err
}
