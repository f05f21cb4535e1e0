package entity

import (
	"errors"
	"fmt"
)

// Kind classifies store failures so callers never match on message text.
type Kind int

const (
	KindUnknown Kind = iota
	// KindNotFound: identifier absent, or soft-deleted on a read path.
	KindNotFound
	// KindInvalidState: mutating an entity in the wrong lifecycle state.
	KindInvalidState
	// KindInvalidInput: unusable query or payload.
	KindInvalidInput
	// KindInternal: unexpected fault caught at the store boundary.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInvalidState:
		return "invalid_state"
	case KindInvalidInput:
		return "invalid_input"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is the failure returned by every Store operation.
type Error struct {
	Kind    Kind
	Op      string
	ID      string
	Message string
	Err     error
}

// Sentinels for errors.Is; they match any *Error of the same Kind.
var (
	ErrNotFound     = &Error{Kind: KindNotFound, Message: "Entity not found"}
	ErrInvalidState = &Error{Kind: KindInvalidState, Message: "Invalid entity state"}
	ErrInvalidInput = &Error{Kind: KindInvalidInput, Message: "Invalid input"}
	ErrInternal     = &Error{Kind: KindInternal, Message: "Internal error"}
)

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := e.Message
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.ID != "" {
		msg = fmt.Sprintf("%s (id=%s)", msg, e.ID)
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches sentinels by Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil {
		return false
	}
	return e.Kind == t.Kind
}

// KindOf returns the Kind of err, or KindUnknown when err is not a store error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Cause returns the wrapped fault, if any, for envelope detail.
func Cause(err error) error {
	var e *Error
	if errors.As(err, &e) {
		return e.Err
	}
	return err
}

// Message returns the human-readable message for err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

func notFound(op, id string) error {
	return &Error{Kind: KindNotFound, Op: op, ID: id, Message: "Entity not found"}
}

func invalidState(op, id, msg string) error {
	return &Error{Kind: KindInvalidState, Op: op, ID: id, Message: msg}
}

func invalidInput(op, msg string, err error) error {
	return &Error{Kind: KindInvalidInput, Op: op, Message: msg, Err: err}
}

func internal(op, id, msg string, err error) error {
	return &Error{Kind: KindInternal, Op: op, ID: id, Message: msg, Err: err}
}
