package booking

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when no live booking carries the requested id.
var ErrNotFound = errors.New("booking not found")

// ValidationError is a user-facing rejection with a human-readable reason:
// a bad transition, a missing required description, a malformed field
// update. The aggregate is always left unmutated.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func validationErrorf(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a user-facing validation rejection.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
