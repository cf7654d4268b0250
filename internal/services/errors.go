package services

import (
	"errors"
	"fmt"
)

// Error kinds. Handlers map them to err_code/status with errors.Is.
var (
	ErrMissingParameter = errors.New("missing parameter")
	ErrNotFound         = errors.New("not found")
	ErrDuplicateID      = errors.New("duplicate id")
	ErrInvalidValue     = errors.New("invalid value")
	ErrUnauthorized     = errors.New("incorrect password")
	ErrPersistence      = errors.New("persistence failure")
	ErrUpstream         = errors.New("upstream failure")
	ErrParse            = errors.New("parse failure")
)

// Error carries a caller-visible message for one of the kinds above. Cause
// holds the underlying error for logs and is never shown to callers.
type Error struct {
	Kind  error
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Msg + ": " + e.Cause.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Kind, e.Cause}
	}
	return []error{e.Kind}
}

// Message returns the text safe to send to the caller
func Message(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.Msg
	}
	return err.Error()
}

func newError(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func missingParameter(field string) *Error {
	return newError(ErrMissingParameter, "missing %s parameter", field)
}

func idNotFound(id string) *Error {
	return newError(ErrNotFound, "%s id does not exist", id)
}

func persistenceError(cause error) *Error {
	return &Error{Kind: ErrPersistence, Msg: "Error during commit", Cause: cause}
}

func upstreamError(cause error) *Error {
	return &Error{Kind: ErrUpstream, Msg: "chatbot request failed", Cause: cause}
}
