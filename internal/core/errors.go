package core

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is matched by every *ValidationError via errors.Is.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound is returned by stores when an owner-scoped lookup misses.
	ErrNotFound = errors.New("not found")
	// ErrInvalidDate is wrapped when a date string cannot be normalised.
	ErrInvalidDate = errors.New("invalid date format")
	// ErrInvalidMonth is wrapped when a month key is malformed.
	ErrInvalidMonth = errors.New("invalid month")
)

// ValidationError reports a malformed input field.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// RowError describes a single rejected row of a bulk import. Row is the
// 1-based data row number, header excluded.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"error"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}

// BatchParseError means the input could not be decoded at all.
type BatchParseError struct {
	Err error
}

func (e *BatchParseError) Error() string {
	return fmt.Sprintf("CSV parsing error: %v", e.Err)
}

func (e *BatchParseError) Unwrap() error { return e.Err }

// ExternalServiceError wraps a failure of the generative text provider.
// It is logged and triggers the fallback path; callers never see it.
type ExternalServiceError struct {
	Op  string
	Err error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("external service %s: %v", e.Op, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// NotFoundError names the missing resource and matches ErrNotFound.
type NotFoundError struct {
	Resource string
	Key      string
}

func (e *NotFoundError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	return fmt.Sprintf("%s %s not found", e.Resource, e.Key)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }
