package apperr

import (
	"errors"
	"net/http"
)

type Kind string

const (
	KindNotFound        Kind = "not_found"
	KindUnauthorized    Kind = "unauthorized"
	KindForbidden       Kind = "forbidden"
	KindConflict        Kind = "conflict"
	KindInvalid         Kind = "invalid"
	KindUpstreamFailure Kind = "upstream_failure"
	KindInternal        Kind = "internal"
)

// Error carries a taxonomy kind plus a machine code for clients.
// Message is safe to show to admins; public callers get a generic text.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func Wrap(kind Kind, code, message string, err error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: err}
}

func NotFound(code, message string) *Error     { return New(KindNotFound, code, message) }
func Unauthorized(code, message string) *Error { return New(KindUnauthorized, code, message) }
func Forbidden(code, message string) *Error    { return New(KindForbidden, code, message) }
func Conflict(code, message string) *Error     { return New(KindConflict, code, message) }
func Invalid(code, message string) *Error      { return New(KindInvalid, code, message) }

func Upstream(message string, err error) *Error {
	return Wrap(KindUpstreamFailure, "upstream_failure", message, err)
}

func Internal(message string, err error) *Error {
	return Wrap(KindInternal, "internal_error", message, err)
}

// KindOf returns the kind of the first *Error in the chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Code != "" {
		return e.Code
	}
	return "internal_error"
}

var kindStatus = map[Kind]int{
	KindNotFound:        http.StatusNotFound,
	KindUnauthorized:    http.StatusUnauthorized,
	KindForbidden:       http.StatusForbidden,
	KindConflict:        http.StatusConflict,
	KindInvalid:         http.StatusBadRequest,
	KindUpstreamFailure: http.StatusInternalServerError,
	KindInternal:        http.StatusInternalServerError,
}

func HTTPStatus(kind Kind) int {
	if s, ok := kindStatus[kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// PublicMessage is the text shown to non-admin callers.
func PublicMessage(kind Kind) string {
	switch kind {
	case KindNotFound:
		return "Not found"
	case KindUnauthorized:
		return "Unauthorized"
	case KindForbidden:
		return "Access denied"
	case KindUpstreamFailure, KindInternal:
		return "Service temporarily unavailable"
	default:
		return ""
	}
}
