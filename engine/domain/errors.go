package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the pipeline.
var (
	ErrInputNotFound     = errors.New("input file not found")
	ErrMissingColumn     = errors.New("missing required column")
	ErrEmptyText         = errors.New("empty text")
	ErrEmptyQuery        = errors.New("empty query")
	ErrQueryTooLong      = errors.New("query too long")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrBatchAbandoned    = errors.New("batch abandoned after retries")
	ErrIndexNotFound     = errors.New("vector index not found")
)

// ValidationError wraps a sentinel with the offending field.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}
