package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for the transport layer. Kinds are terminal for the
// request that produced them, nothing is retried.
type Kind int

const (
	Internal Kind = iota
	ValidationFailed
	NotFound
	AuthorizationDenied
	Unauthenticated
	Conflict
)

func (k Kind) String() string {
	switch k {
	case ValidationFailed:
		return "validation_failed"
	case NotFound:
		return "not_found"
	case AuthorizationDenied:
		return "authorization_denied"
	case Unauthenticated:
		return "unauthenticated"
	case Conflict:
		return "conflict"
	default:
		return "internal"
	}
}

// HTTPStatus is the status code a kind is surfaced with.
func (k Kind) HTTPStatus() int {
	switch k {
	case ValidationFailed:
		return http.StatusUnprocessableEntity
	case NotFound:
		return http.StatusNotFound
	case AuthorizationDenied:
		return http.StatusForbidden
	case Unauthenticated:
		return http.StatusUnauthorized
	case Conflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

type Error struct {
	kind   Kind
	msg    string
	fields map[string]string
	cause  error
}

func (err *Error) Error() string {
	if err.cause == nil {
		return err.msg
	}
	return fmt.Sprintf("%s: %v", err.msg, err.cause)
}

func (err *Error) Unwrap() error { return err.cause }

func (err *Error) Kind() Kind { return err.kind }

func (err *Error) Message() string { return err.msg }

// Fields holds per-field messages of a ValidationFailed error.
func (err *Error) Fields() map[string]string { return err.fields }

type Enricher func(*Error)

func WithCause(cause error) Enricher {
	return func(err *Error) {
		err.cause = cause
	}
}

func WithField(name, msg string) Enricher {
	return func(err *Error) {
		if err.fields == nil {
			err.fields = make(map[string]string)
		}
		err.fields[name] = msg
	}
}

func WithFields(fields map[string]string) Enricher {
	return func(err *Error) {
		for name, msg := range fields {
			WithField(name, msg)(err)
		}
	}
}

func New(kind Kind, msg string, fs ...Enricher) error {
	err := &Error{kind: kind, msg: msg}
	for _, f := range fs {
		f(err)
	}
	return err
}

func EntityNotFound(entity string, id uint) error {
	return New(NotFound, fmt.Sprintf("<%s %d> not found", entity, id))
}

func Denied(action, entity string) error {
	return New(AuthorizationDenied, fmt.Sprintf("permission denied: cannot %s %s", action, entity))
}

func Validation(fields map[string]string) error {
	return New(ValidationFailed, "validation failed", WithFields(fields))
}

// KindOf returns the kind of the first *Error in err's chain, Internal otherwise.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.kind
	}
	return Internal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// FieldsOf returns the validation fields of err, nil if it carries none.
func FieldsOf(err error) map[string]string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.fields
	}
	return nil
}
