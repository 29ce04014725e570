// errors.go - Error types for task submission and lookup

package task

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned for unknown task ids.
	ErrNotFound = errors.New("task not found")

	// ErrInvalidTransition is returned when a status change is not allowed from the current state.
	ErrInvalidTransition = errors.New("invalid task transition")

	// ErrDuplicateID is returned when a task id is registered twice.
	ErrDuplicateID = errors.New("duplicate task id")
)

// ValidationError rejects a submission before it reaches the registry.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// IsValidationError reports whether err is or wraps a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
