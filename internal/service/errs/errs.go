// Package errs holds the error taxonomy shared by the service and transport layers.
package errs

import (
	"context"
	"errors"
)

// Kind classifies a failure for callers and for the HTTP error body.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindUnauthenticated
	KindForbidden
	KindInvalidTransition
	KindConflict
	KindRateLimited
	KindUnavailable
)

var kindNames = map[Kind]string{
	KindInternal:          "internal",
	KindValidation:        "validation",
	KindNotFound:          "not_found",
	KindUnauthenticated:   "unauthenticated",
	KindForbidden:         "forbidden",
	KindInvalidTransition: "invalid_transition",
	KindConflict:          "conflict",
	KindRateLimited:       "rate_limited",
	KindUnavailable:       "unavailable",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}

	return "internal"
}

// Error is a classified error. Msg is safe to show to API callers.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}

	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap classifies err, keeping it in the chain.
func Wrap(kind Kind, err error, msg string) error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func Validation(msg string) error      { return New(KindValidation, msg) }
func NotFound(msg string) error        { return New(KindNotFound, msg) }
func Unauthenticated(msg string) error { return New(KindUnauthenticated, msg) }
func Forbidden(msg string) error       { return New(KindForbidden, msg) }
func Conflict(msg string) error        { return New(KindConflict, msg) }
func RateLimited(msg string) error     { return New(KindRateLimited, msg) }

func InvalidTransition(msg string) error {
	return New(KindInvalidTransition, msg)
}

func Unavailable(err error, msg string) error {
	return Wrap(KindUnavailable, err, msg)
}

// KindOf returns the kind of the first classified error in the chain.
// Context deadlines count as Unavailable.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindUnavailable
	}

	return KindInternal
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the caller-facing message for err. Internal errors are not exposed.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Msg
	}
	if KindOf(err) == KindUnavailable {
		return "service temporarily unavailable"
	}

	return "internal error"
}
