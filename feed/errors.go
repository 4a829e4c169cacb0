package feed

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation reports malformed, oversized or unknown input.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound reports an unknown post.
	ErrNotFound = errors.New("post not found")
	// ErrConflict reports a ledger write that lost a race with another writer.
	ErrConflict = errors.New("conflicting update")
	// ErrUnavailable reports a storage failure the client may retry.
	ErrUnavailable = errors.New("storage unavailable")
)

// A ValidationError describes a single rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Is makes every ValidationError match ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
