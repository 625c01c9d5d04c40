package domain

import (
	"errors"
	"fmt"
)

// Kind classifies a ledger failure. The set is closed.
type Kind string

const (
	KindNotFound          Kind = "not_found"
	KindConflict          Kind = "conflict"
	KindInsufficientFunds Kind = "insufficient_funds"
	KindInvalidArgument   Kind = "invalid_argument"
	KindInternal          Kind = "internal"
)

// Error is the typed failure returned by every ledger operation.
type Error struct {
	Kind     Kind
	Resource string
	Detail   string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind, so errors.Is(err, &Error{Kind: KindNotFound}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Resource == "" || t.Resource == e.Resource)
}

// NotFound reports a missing resource ("account", "transaction").
func NotFound(resource string) *Error {
	return &Error{Kind: KindNotFound, Resource: resource, Detail: resource + " not found"}
}

func Conflict(detail string) *Error {
	return &Error{Kind: KindConflict, Detail: detail}
}

func InsufficientFunds() *Error {
	return &Error{Kind: KindInsufficientFunds, Detail: "insufficient funds"}
}

func InvalidArgument(detail string) *Error {
	return &Error{Kind: KindInvalidArgument, Detail: detail}
}

// Internal wraps a storage or unit-of-work failure that is not a business rule.
func Internal(detail string, cause error) *Error {
	return &Error{Kind: KindInternal, Detail: detail, Err: cause}
}

// Sentinels for errors.Is checks.
var (
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrConflict          = &Error{Kind: KindConflict}
	ErrInsufficientFunds = &Error{Kind: KindInsufficientFunds}
	ErrInvalidArgument   = &Error{Kind: KindInvalidArgument}
	ErrInternal          = &Error{Kind: KindInternal}
)

// KindOf returns the kind of err. Untyped errors are internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}
