package oracle

import (
	"fmt"
)

// ErrorType represents different classes of driver errors.
type ErrorType int

const (
	// ErrGeneric is a generic error.
	ErrGeneric ErrorType = iota
	// ErrNative is an error reported by the Oracle server or client library.
	// It always carries the ORA error code.
	ErrNative
	// ErrInterface is a contract violation detected by the driver before or
	// instead of a native call: an unresolved or unknown placeholder, a
	// zero-capacity output binding, a wrong statement kind, an already
	// consumed resource, or a busy service context.
	ErrInterface
	// ErrJoin reports a detached cleanup or off-loaded job that could not
	// be joined.
	ErrJoin
)

// Error is the driver error type. Callers can branch on Type to separate
// server-reported faults from driver-side contract violations.
type Error struct {
	Type    ErrorType
	Code    int32
	Message string
}

// Error returns the error message.
func (e *Error) Error() string {
	if e.Type == ErrNative && e.Code != 0 {
		return fmt.Sprintf("ORA-%05d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("oracle: %s", e.Message)
}

// NewError creates a new Error.
func NewError(typ ErrorType, message string) *Error {
	return &Error{
		Type:    typ,
		Message: message,
	}
}

// IsError checks if an error is of a specific type.
func IsError(err error, typ ErrorType) bool {
	oraErr, ok := err.(*Error)
	if !ok {
		return false
	}
	return oraErr.Type == typ
}

// ErrNullValue is returned by typed accessors when the column value is NULL.
var ErrNullValue = &Error{Type: ErrInterface, Message: "value is null"}

// ErrConsumed is returned when a cursor, LOB locator or rowid column is read
// a second time from the same row.
var ErrConsumed = &Error{Type: ErrInterface, Message: "already consumed"}

// ErrContextBusy is returned when an operation is started on a service
// context that already has an operation in flight.
var ErrContextBusy = &Error{Type: ErrInterface, Message: "service context is busy with another operation"}

func interfaceErr(format string, args ...any) *Error {
	return &Error{Type: ErrInterface, Message: fmt.Sprintf(format, args...)}
}

func joinErr(format string, args ...any) *Error {
	return &Error{Type: ErrJoin, Message: fmt.Sprintf(format, args...)}
}

// nativeErr retrieves the error code and message recorded in the error
// handle after a failed call. status is the value the call returned; it is
// used as a fallback when the error sink has nothing to report.
func nativeErr(api nativeAPI, errh uintptr, status int32) *Error {
	switch status {
	case OCISuccess, OCISuccessWithInfo:
		return nil
	}
	code, msg := api.ErrorGet(errh)
	if msg == "" {
		msg = fmt.Sprintf("native call failed with status %d", status)
	}
	return &Error{Type: ErrNative, Code: code, Message: msg}
}
