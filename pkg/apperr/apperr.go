// Package apperr defines the error kinds raised by the auth lifecycle and rendered
// by the HTTP error middleware. Dispatch happens on Kind, never on concrete types.
package apperr

import (
	"errors"
	"net/http"
)

type Kind uint8

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindNotFound
	KindAuth
	KindExpired
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindAuth:
		return "auth"
	case KindExpired:
		return "expired"
	default:
		return "internal"
	}
}

// Status returns the default HTTP status for the kind.
func (k Kind) Status() int {
	switch k {
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindAuth, KindExpired:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// Error is the tagged error value carried through the request pipeline.
type Error struct {
	Kind    Kind
	Status  int
	Code    string
	Message string
	Details any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// WithCode sets a machine readable code, e.g. SESSION_EXPIRED.
func (e *Error) WithCode(code string) *Error {
	e.Code = code
	return e
}

func (e *Error) WithDetails(details any) *Error {
	e.Details = details
	return e
}

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Status: kind.Status(), Message: msg}
}

func Validation(msg string) *Error { return newError(KindValidation, msg) }
func Conflict(msg string) *Error   { return newError(KindConflict, msg) }
func NotFound(msg string) *Error   { return newError(KindNotFound, msg) }
func Auth(msg string) *Error       { return newError(KindAuth, msg) }
func Expired(msg string) *Error    { return newError(KindExpired, msg) }

// Internal wraps an unexpected failure. The cause is kept for logs and
// development responses only.
func Internal(msg string, err error) *Error {
	e := newError(KindInternal, msg)
	e.Err = err
	return e
}

// As extracts the tagged error. Untagged errors come back as Internal.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal("something went wrong", err)
}

// KindOf reports the kind of err, KindInternal for untagged errors.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	return As(err).Kind
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
