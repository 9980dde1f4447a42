package ledger

import (
	"errors"
	"fmt"
)

// Kind classifies a ledger failure so callers can map it to their own status codes.
type Kind string

const (
	KindNotAuthorized    Kind = "NotAuthorized"
	KindNotFound         Kind = "NotFound"
	KindValidationFailed Kind = "ValidationFailed"
	KindConflict         Kind = "Conflict"
	KindInternal         Kind = "Internal"
)

var (
	ErrNotAuthorized = &Error{Kind: KindNotAuthorized, Message: "not authorized"}
	ErrNotFound      = &Error{Kind: KindNotFound, Message: "not found"}
	ErrValidation    = &Error{Kind: KindValidationFailed, Message: "validation failed"}
	ErrConflict      = &Error{Kind: KindConflict, Message: "conflict"}
)

type Error struct {
	Kind    Kind
	Op      string
	Message string
	Fields  map[string]string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound) works for every not-found.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func notAuthorized(op, format string, args ...any) *Error {
	return &Error{Kind: KindNotAuthorized, Op: op, Message: fmt.Sprintf(format, args...)}
}

func notFound(op, format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Op: op, Message: fmt.Sprintf(format, args...)}
}

func invalid(op, format string, args ...any) *Error {
	return &Error{Kind: KindValidationFailed, Op: op, Message: fmt.Sprintf(format, args...)}
}

func conflict(op, format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Op: op, Message: fmt.Sprintf(format, args...)}
}

// NotFound builds a not-found error; persistence layers use it to report missing rows.
func NotFound(op, format string, args ...any) error {
	return notFound(op, format, args...)
}

// Conflict builds a conflict error; persistence layers use it for uniqueness violations.
func Conflict(op, format string, args ...any) error {
	return conflict(op, format, args...)
}

// Invalid builds a validation error carrying per-field details.
func Invalid(op string, fields map[string]string) error {
	return &Error{Kind: KindValidationFailed, Op: op, Message: "validation failed", Fields: fields}
}

// KindOf reports the kind of err; anything not produced by this package is Internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
