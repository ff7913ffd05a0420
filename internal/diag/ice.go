package diag

import (
	"errors"
	"fmt"
)

// InternalError signals an invariant broken by an earlier compilation stage.
// It is a compiler bug, not a user error.
type InternalError struct {
	Msg string
}

func (e *InternalError) Error() string {
	return "internal compiler error: " + e.Msg
}

// Internal formats an InternalError.
func Internal(format string, args ...any) error {
	return &InternalError{Msg: fmt.Sprintf(format, args...)}
}

// IsInternal reports whether err or anything it wraps is an InternalError.
func IsInternal(err error) bool {
	var ice *InternalError
	return errors.As(err, &ice)
}
