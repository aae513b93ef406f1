package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors forming the engine's error taxonomy. Only ErrConflict
// and ErrNotFound are fatal to a request; ErrModelUnavailable and
// ErrExplanationUnavailable always degrade gracefully.
var (
	ErrNotFound               = errors.New("record not found")
	ErrConflict               = errors.New("concurrent modification detected")
	ErrModelUnavailable       = errors.New("model artifacts unavailable")
	ErrExplanationUnavailable = errors.New("explanation unavailable")
)

// ValidationError is a guided refusal: the operation was rejected with the
// specific missing or inconsistent fields enumerated.
type ValidationError struct {
	Reason          string
	MissingFields   []string
	Inconsistencies []string
}

func (e *ValidationError) Error() string {
	parts := []string{e.Reason}
	if len(e.MissingFields) > 0 {
		parts = append(parts, "missing: "+strings.Join(e.MissingFields, ", "))
	}
	if len(e.Inconsistencies) > 0 {
		parts = append(parts, "inconsistencies: "+strings.Join(e.Inconsistencies, "; "))
	}
	return strings.Join(parts, "; ")
}

// NewValidationError builds a ValidationError with a formatted reason.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
