package shopping

import (
	"errors"
	"fmt"
)

// Kind classifies why an intent did not complete.
type Kind int

const (
	// KindStorage covers failures of the record store itself.
	KindStorage Kind = iota
	// KindRender covers failures of the presentation adapter.
	KindRender
	KindNotFound
	KindConflict
	KindLocked
	KindInvalid
)

func (k Kind) String() string {
	switch k {
	case KindStorage:
		return "storage"
	case KindRender:
		return "render"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindLocked:
		return "locked"
	case KindInvalid:
		return "invalid"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is the error type returned by every Service operation.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Rejected reports whether the requester should be told the intent was refused.
// Storage and render failures are only logged.
func (e *Error) Rejected() bool {
	switch e.Kind {
	case KindNotFound, KindConflict, KindLocked, KindInvalid:
		return true
	}
	return false
}

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: "NOT PERMITTED! " + message}
}

func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: "NOT PERMITTED! " + message}
}

func Locked(message string) *Error {
	return &Error{Kind: KindLocked, Message: "NOT PERMITTED! " + message}
}

func Invalid(message string) *Error {
	return &Error{Kind: KindInvalid, Message: "NOT PERMITTED! " + message}
}

func storageFailure(op string, err error) *Error {
	return &Error{Kind: KindStorage, Message: op, Err: err}
}

func renderFailure(view string, err error) *Error {
	return &Error{Kind: KindRender, Message: "render " + view, Err: err}
}

// KindOf returns the Kind of err. Errors that did not come from this package
// count as storage failures.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStorage
}
