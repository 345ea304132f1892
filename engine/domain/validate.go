package domain

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxQueryLength bounds free-text queries typed into the front end.
const MaxQueryLength = 2000

// ValidateQuery checks a user query before it reaches the embedding service.
func ValidateQuery(q string) error {
	trimmed := strings.TrimSpace(q)
	if trimmed == "" {
		return NewValidationError("query", q, ErrEmptyQuery)
	}
	if utf8.RuneCountInString(trimmed) > MaxQueryLength {
		return NewValidationError("query", trimmed[:32]+"...", ErrQueryTooLong)
	}
	return nil
}

// ValidateVector rejects embeddings that are empty or of the wrong length.
func ValidateVector(v []float32, dim int) error {
	if len(v) == 0 || (dim > 0 && len(v) != dim) {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(v), dim)
	}
	return nil
}
