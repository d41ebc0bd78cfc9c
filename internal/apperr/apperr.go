// Package apperr is the error taxonomy shared by the access gate and the
// link lifecycle. Every failure carries a stable machine-readable Kind that
// the HTTP layer maps to a status code.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindUnauthenticated Kind = "unauthenticated"
	KindForbidden       Kind = "forbidden"
	KindNotFound        Kind = "not_found"
	KindExpired         Kind = "expired"
	KindAlreadyUsed     Kind = "already_used"
	KindValidation      Kind = "validation_failed"
	KindConflict        Kind = "conflict"
	KindPartialFailure  Kind = "partial_failure"
	KindInfrastructure  Kind = "infrastructure_error"
)

type Error struct {
	Kind    Kind
	Message string
	Details map[string]string
	Err     error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the bare sentinel for e's kind, so callers
// can write errors.Is(err, apperr.ErrExpired) against a detailed error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Err == nil && t.Details == nil && t.Kind == e.Kind
}

var (
	ErrUnauthenticated = &Error{Kind: KindUnauthenticated}
	ErrForbidden       = &Error{Kind: KindForbidden}
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrExpired         = &Error{Kind: KindExpired}
	ErrAlreadyUsed     = &Error{Kind: KindAlreadyUsed}
	ErrValidation      = &Error{Kind: KindValidation}
	ErrConflict        = &Error{Kind: KindConflict}
	ErrPartialFailure  = &Error{Kind: KindPartialFailure}
	ErrInfrastructure  = &Error{Kind: KindInfrastructure}
)

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Validation builds a ValidationFailed error with per-field messages.
func Validation(message string, details map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: message, Details: details}
}

// Infra wraps a backend failure. The message is for operators; the HTTP
// layer never shows it to callers.
func Infra(message string, err error) *Error {
	return &Error{Kind: KindInfrastructure, Message: message, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain. Untyped
// errors are infrastructure failures.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInfrastructure
}
