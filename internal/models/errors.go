package models

import (
	"errors"
	"fmt"
)

// Error taxonomy surfaced to callers of the catalog layer. Compare with errors.Is.
var (
	// ErrNetwork means the remote API was unreachable or answered with a non-2xx status.
	ErrNetwork = errors.New("network error")
	// ErrStorage means the local store failed.
	ErrStorage = errors.New("storage error")
	// ErrValidation means the input was rejected before reaching either store.
	ErrValidation = errors.New("validation error")
	// ErrNotFound means the operation targeted a missing id.
	ErrNotFound = errors.New("not found")
)

// ValidationError describes a rejected field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrValidation, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", ErrValidation, e.Field, e.Message)
}

// Is lets errors.Is(err, ErrValidation) match any *ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NotFound returns an error matching ErrNotFound for the given book id.
func NotFound(id int64) error {
	return fmt.Errorf("book %d: %w", id, ErrNotFound)
}
