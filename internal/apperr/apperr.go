// Package apperr defines the error kinds returned by the public operations of
// the service. Store and network failures never cross an operation boundary
// as-is; they are logged and replaced by an OperationFailed error.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindUnauthenticated
	KindAccessDenied
	KindNotFound
	KindValidation
	KindOperationFailed
)

func (k Kind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindAccessDenied:
		return "access_denied"
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation_error"
	case KindOperationFailed:
		return "operation_failed"
	}
	return "unknown"
}

// defaultMessage is the user-safe text used when an error carries none.
func (k Kind) defaultMessage() string {
	switch k {
	case KindUnauthenticated:
		return "not authenticated"
	case KindAccessDenied:
		return "access denied"
	case KindNotFound:
		return "not found"
	case KindValidation:
		return "invalid request"
	}
	return "operation failed"
}

type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.defaultMessage()
	}
	return e.Message
}

// Is matches any *Error of the same kind, so callers can write
// errors.Is(err, apperr.ErrNotFound).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrUnauthenticated = &Error{Kind: KindUnauthenticated}
	ErrAccessDenied    = &Error{Kind: KindAccessDenied}
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrValidation      = &Error{Kind: KindValidation}
	ErrOperationFailed = &Error{Kind: KindOperationFailed}
)

func Unauthenticated() error {
	return &Error{Kind: KindUnauthenticated}
}

func AccessDenied(msg string) error {
	return &Error{Kind: KindAccessDenied, Message: msg}
}

func NotFound(what string) error {
	return &Error{Kind: KindNotFound, Message: what + " not found"}
}

func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func OperationFailed(msg string) error {
	return &Error{Kind: KindOperationFailed, Message: msg}
}

// KindOf returns the kind of err, or KindUnknown when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsApp reports whether err already carries an application error kind.
func IsApp(err error) bool {
	return KindOf(err) != KindUnknown
}
