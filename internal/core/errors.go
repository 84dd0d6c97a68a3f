package core

import (
	"errors"
	"fmt"
)

// ErrNotFound signals an entity that does not exist or is not owned by the
// requesting user. Both cases look identical to the caller.
var ErrNotFound = errors.New("not found")

// ValidationError rejects malformed input before any state change. Field
// names the offending input field for the user-facing message.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ConflictError signals a uniqueness violation, echoing the offending name.
type ConflictError struct {
	Name string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("a category named %q already exists", e.Name)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}
