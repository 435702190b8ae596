package lifecycle

import (
	"errors"
	"fmt"

	"github.com/tradebinder/card-market/internal/model"
)

// ErrorKind classifies a transition failure so handlers can map it to an
// HTTP status without string matching.
type ErrorKind string

const (
	KindNotFound        ErrorKind = "NOT_FOUND"
	KindInvalidState    ErrorKind = "INVALID_STATE"
	KindForbidden       ErrorKind = "FORBIDDEN"
	KindInvalidArgument ErrorKind = "INVALID_ARGUMENT"
	KindConflict        ErrorKind = "CONFLICT"
)

// Error is the structured error returned by every Service operation. For
// invalid-state failures, ValidTransitions lists the targets the acting
// role could legally reach from the sale's current status.
type Error struct {
	Kind             ErrorKind
	Message          string
	ValidTransitions []model.SaleStatus
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// AsError unwraps a lifecycle *Error from err, if present.
func AsError(err error) (*Error, bool) {
	var le *Error
	if errors.As(err, &le) {
		return le, true
	}
	return nil, false
}

func errNotFound(saleID uint64) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("sale %d not found", saleID)}
}

func errInvalidState(from, to model.SaleStatus, role model.Role) *Error {
	return &Error{
		Kind:             KindInvalidState,
		Message:          fmt.Sprintf("cannot move sale from %s to %s", from, to),
		ValidTransitions: ValidTransitions(from, role),
	}
}

func errForbidden(msg string) *Error {
	return &Error{Kind: KindForbidden, Message: msg}
}

func errInvalidArgument(msg string) *Error {
	return &Error{Kind: KindInvalidArgument, Message: msg}
}

func errConflict(msg string) *Error {
	return &Error{Kind: KindConflict, Message: msg}
}
