package outcome

import (
	"errors"
	"net/http"
)

// Error is a failed gateway operation. Message is safe to show to the caller.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Kind.String() + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Kind.String() + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the status to answer the caller with.
func (e *Error) HTTPStatus() int {
	if e.Status != 0 {
		return e.Status
	}
	return e.Kind.DefaultStatus()
}

// NewUnauthorized reports a missing or unusable session.
func NewUnauthorized(err error) *Error {
	return &Error{Kind: Unauthorized, Status: http.StatusUnauthorized, Message: "Unauthorized", Err: err}
}

// NewValidation reports caller input that was rejected before any downstream call.
func NewValidation(message string) *Error {
	return &Error{Kind: ValidationError, Status: http.StatusBadRequest, Message: message}
}

// NewUpstream reports a failed call to a third-party API such as Google Calendar.
// A status of 0 maps to 502.
func NewUpstream(status int, message string, err error) *Error {
	if status == 0 {
		status = http.StatusBadGateway
	}
	return &Error{Kind: UpstreamError, Status: status, Message: message, Err: err}
}

// KindOf returns the Kind carried by err, Success for nil and UpstreamError
// for errors that are not an *Error.
func KindOf(err error) Kind {
	if err == nil {
		return Success
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return UpstreamError
}

// AsError converts any error into an *Error, treating unknown errors as
// an internal failure.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: UpstreamError, Status: http.StatusInternalServerError, Message: "Internal server error", Err: err}
}
