package errors

import (
	stderrors "errors"
	"fmt"
)

var (
	ErrAccountNotFound     = stderrors.New("account not found")
	ErrAccountRequired     = stderrors.New("account must already exist")
	ErrNetworkAccountUnset = stderrors.New("network account not available")
	ErrStakeRequiredUnset  = stderrors.New("network stake requirement not set")
	ErrInvalidTimestamp    = stderrors.New("Invalid transaction timestamp")
	ErrStateBuilderInUse   = stderrors.New("debug state builder already in use")
)

// FieldError is the structural validation failure raised when a required
// transaction field is missing or has the wrong shape. It aborts validation
// before any semantic check runs.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string { return e.Reason }

// NewFieldError returns the standard "must be a <kind>" error for field.
func NewFieldError(field, kind string) *FieldError {
	return &FieldError{Field: field, Reason: fmt.Sprintf("tx %q field must be a %s.", field, kind)}
}

// IsFieldError reports whether err is a structural field failure.
func IsFieldError(err error) bool {
	var fe *FieldError
	return stderrors.As(err, &fe)
}
