// Package service holds the scheduling core: the transaction scope
// contract, the consistency validator, worker/role synchronization and the
// slot reservation guard.  Handlers talk to this package only; storage is
// reached through the Scope and Tx interfaces.
package service

import (
	"errors"
	"fmt"
)

// Kind is a stable, machine readable error category.  Handlers map kinds to
// HTTP status codes; callers decide whether to retry based on the kind.
type Kind string

const (
	KindNotFound        Kind = "not_found"
	KindInvalidInput    Kind = "invalid_input"
	KindInvalidState    Kind = "invalid_state"
	KindAlreadyAssigned Kind = "already_assigned"
	KindRoleConflict    Kind = "role_conflict"
	KindSlotConflict    Kind = "slot_conflict"
	KindStoreFailure    Kind = "store_failure"
)

// Error carries a Kind, a human readable message safe to return to clients
// and an optional wrapped cause that is only ever logged.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrSlotConflict)
// holds regardless of message or cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is comparisons.
var (
	ErrNotFound        = &Error{Kind: KindNotFound, Message: "not found"}
	ErrInvalidInput    = &Error{Kind: KindInvalidInput, Message: "invalid input"}
	ErrInvalidState    = &Error{Kind: KindInvalidState, Message: "invalid state"}
	ErrAlreadyAssigned = &Error{Kind: KindAlreadyAssigned, Message: "already assigned"}
	ErrRoleConflict    = &Error{Kind: KindRoleConflict, Message: "role conflict"}
	ErrSlotConflict    = &Error{Kind: KindSlotConflict, Message: "slot already booked"}
	ErrStoreFailure    = &Error{Kind: KindStoreFailure, Message: "store failure"}
)

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func notFound(format string, args ...any) error { return newError(KindNotFound, format, args...) }
func invalidInput(format string, args ...any) error {
	return newError(KindInvalidInput, format, args...)
}
func invalidState(format string, args ...any) error {
	return newError(KindInvalidState, format, args...)
}

// StoreFailure wraps an unexpected storage error.  The cause is kept for
// logging; clients only see the generic message.
func StoreFailure(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return &Error{Kind: KindStoreFailure, Message: "store failure", Err: fmt.Errorf("%s: %w", op, err)}
}

var errMissingAfterWrite = errors.New("row missing after write")

// finish normalizes whatever a scope returned into an *Error.
func finish(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return StoreFailure(op, err)
}

// KindOf returns the kind of err, or KindStoreFailure for errors that did
// not originate in this package.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindStoreFailure
}

// MessageOf returns the client-safe message for err.
func MessageOf(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.Message
	}
	return ErrStoreFailure.Message
}

// IsRetryable reports whether the caller may safely retry the operation.
// Slot contention is transient; every other kind reflects the input.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrSlotConflict)
}
