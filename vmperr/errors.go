// Package vmperr defines the management protocol's status taxonomy and
// the structured error type used between the engine and its callers.
package vmperr

import (
	"bytes"
	"errors"
	"fmt"
)

// Status represents the protocol response status enumerate.
type Status int

const (
	// StatusOK indicates the command succeeded.
	StatusOK Status = iota
	// StatusOKCreated indicates the command succeeded and created a
	// resource; the response carries its id.
	StatusOKCreated
	// StatusOKRequested indicates the command was accepted and queued
	// for asynchronous execution.
	StatusOKRequested
	// StatusSyntaxError indicates a client-side error: missing or
	// invalid parameters, a bogus command, or failed authentication.
	StatusSyntaxError
	// StatusPermissionDenied indicates access control refused the
	// operation.
	StatusPermissionDenied
	// StatusMissingResource indicates a referenced resource was not
	// found.
	StatusMissingResource
	// StatusInternalError indicates a server-side failure.
	StatusInternalError
	// StatusUnavailable indicates the command or service is disabled
	// or busy.
	StatusUnavailable
)

// Code returns the wire status code.
func (s Status) Code() string {
	switch s {
	case StatusOK:
		return "200"
	case StatusOKCreated:
		return "201"
	case StatusOKRequested:
		return "202"
	case StatusSyntaxError:
		return "400"
	case StatusPermissionDenied:
		return "403"
	case StatusMissingResource:
		return "404"
	case StatusInternalError:
		return "500"
	case StatusUnavailable:
		return "503"
	default:
		return "500"
	}
}

// Text returns the default status_text for the status.
func (s Status) Text() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusOKCreated:
		return "OK, resource created"
	case StatusOKRequested:
		return "OK, request submitted"
	case StatusSyntaxError:
		return "Syntax error"
	case StatusPermissionDenied:
		return "Permission denied"
	case StatusMissingResource:
		return "Failed to find resource"
	case StatusInternalError:
		return "Internal error"
	case StatusUnavailable:
		return "Service unavailable"
	default:
		return "Internal error"
	}
}

func (s Status) String() string { return s.Code() }

func (s Status) MarshalText() ([]byte, error) { return []byte(s.Code()), nil }

func (s *Status) UnmarshalText(b []byte) error {
	switch string(bytes.TrimSpace(b)) {
	case "200":
		*s = StatusOK
	case "201":
		*s = StatusOKCreated
	case "202":
		*s = StatusOKRequested
	case "400":
		*s = StatusSyntaxError
	case "403":
		*s = StatusPermissionDenied
	case "404":
		*s = StatusMissingResource
	case "500":
		*s = StatusInternalError
	case "503":
		*s = StatusUnavailable
	default:
		return errors.New("unknown status code")
	}
	return nil
}

// Error is a structured protocol error. Fatal errors terminate the
// connection's parse; non-fatal errors are converted to a response and
// the engine continues with the next command.
type Error struct {
	Status  Status
	Message string
	Fatal   bool
}

func (e *Error) Error() string {
	s := fmt.Sprintf("vmp error status:%s", e.Status.Code())
	if e.Fatal {
		s += " (fatal)"
	}
	if e.Message != "" {
		s += " " + e.Message
	}
	return s
}

// StatusText returns the status_text for the error, preferring the
// explicit message over the status default.
func (e *Error) StatusText() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Status.Text()
}

// IsFatal reports whether err is (or wraps) a fatal protocol error.
func IsFatal(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Fatal
}

func Syntax(opts ...Option) *Error {
	e := &Error{Status: StatusSyntaxError}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func AuthenticationFailed(opts ...Option) *Error {
	e := &Error{Status: StatusSyntaxError, Message: "Authentication failed"}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// BogusCommand reports an unrecognized top-level command name. It is
// always fatal: the grammar position cannot be recovered.
func BogusCommand(opts ...Option) *Error {
	e := &Error{
		Status:  StatusSyntaxError,
		Message: "Bogus command name",
		Fatal:   true,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func MissingResource(opts ...Option) *Error {
	e := &Error{Status: StatusMissingResource}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func PermissionDenied(opts ...Option) *Error {
	e := &Error{Status: StatusPermissionDenied}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func Unavailable(opts ...Option) *Error {
	e := &Error{Status: StatusUnavailable}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func Internal(opts ...Option) *Error {
	e := &Error{Status: StatusInternalError}
	for _, opt := range opts {
		opt(e)
	}
	return e
}
