package docstore

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by backends that distinguish a missing document.
var ErrNotFound = errors.New("document not found")

type (

	// StoreError represents a base error type for document store operations
	StoreError struct {
		Op  string // Operation that failed
		Err error  // The underlying error
	}

	// ValidationError represents an invalid collection, id or document
	ValidationError struct {
		StoreError
		Field string // The field that failed validation
		Value string // The invalid value
	}

	// ResourceError represents an error related to connecting to or closing a backend
	ResourceError struct {
		StoreError
		Resource string // The resource that caused the error
	}
)

// Error implements the error interface
func (e StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Op
}

// Unwrap returns the underlying error
func (e StoreError) Unwrap() error {
	return e.Err
}

// IsValidationError checks if the error is a ValidationError
func IsValidationError(err error) bool {
	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}

// IsResourceError checks if the error is a ResourceError
func IsResourceError(err error) bool {
	var resourceErr *ResourceError
	return errors.As(err, &resourceErr)
}

// IsStoreError checks if the error is any document store error
func IsStoreError(err error) bool {
	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		return true
	}
	return IsValidationError(err) || IsResourceError(err)
}

// ValidateKey checks the collection and id every backend needs.
func ValidateKey(op, collection, id string) error {
	if collection == "" {
		return &ValidationError{
			StoreError: StoreError{Op: op, Err: errors.New("collection cannot be empty")},
			Field:      "collection",
		}
	}
	if id == "" {
		return &ValidationError{
			StoreError: StoreError{Op: op, Err: errors.New("id cannot be empty")},
			Field:      "id",
			Value:      collection,
		}
	}
	return nil
}
