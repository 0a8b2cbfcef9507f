// Package domain holds the error taxonomy and small shared value types used
// across the booking service layers.
package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies an AppError so transport layers can map it without
// inspecting message text.
type ErrorKind string

const (
	KindNotFound           ErrorKind = "NOT_FOUND"
	KindTerminalState      ErrorKind = "TERMINAL_STATE"
	KindInvalidTransition  ErrorKind = "INVALID_TRANSITION"
	KindUnauthorizedActor  ErrorKind = "UNAUTHORIZED_ACTOR"
	KindPreconditionNotMet ErrorKind = "PRECONDITION_NOT_MET"
	KindInvariantViolation ErrorKind = "INVARIANT_VIOLATION"
	KindPersistence        ErrorKind = "PERSISTENCE_FAILURE"
	KindConflict           ErrorKind = "CONFLICT"
	KindValidation         ErrorKind = "VALIDATION"
	KindForbidden          ErrorKind = "FORBIDDEN"
	KindInternal           ErrorKind = "INTERNAL"
)

// AppError is the structured error returned by domain and application code.
type AppError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// Error returns the human-readable message, followed by the cause if present.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap exposes the underlying cause.
func (e *AppError) Unwrap() error { return e.Err }

// NewNotFoundError reports a missing entity.
func NewNotFoundError(entity, id string) *AppError {
	return &AppError{Kind: KindNotFound, Message: fmt.Sprintf("%s not found: %s", entity, id)}
}

// NewValidationError reports malformed input.
func NewValidationError(msg string) *AppError {
	return &AppError{Kind: KindValidation, Message: msg}
}

// NewConflictError reports a lost optimistic-concurrency race.
func NewConflictError(msg string) *AppError {
	return &AppError{Kind: KindConflict, Message: msg}
}

// NewForbiddenError reports an actor acting on something they do not own.
func NewForbiddenError(msg string) *AppError {
	return &AppError{Kind: KindForbidden, Message: msg}
}

// NewTerminalStateError reports an attempt to modify a closed booking.
func NewTerminalStateError(status string) *AppError {
	return &AppError{
		Kind:    KindTerminalState,
		Message: fmt.Sprintf("booking is in terminal state %s and cannot be modified further", status),
	}
}

// NewInvalidTransitionError reports an edge missing from the transition graph.
func NewInvalidTransitionError(msg string) *AppError {
	return &AppError{Kind: KindInvalidTransition, Message: msg}
}

// NewUnauthorizedActorError reports a graph-legal edge the actor may not trigger.
func NewUnauthorizedActorError(msg string) *AppError {
	return &AppError{Kind: KindUnauthorizedActor, Message: msg}
}

// NewPreconditionError reports an unmet payment or inspection precondition.
func NewPreconditionError(msg string) *AppError {
	return &AppError{Kind: KindPreconditionNotMet, Message: msg}
}

// NewInvariantError reports a business invariant that the request would break.
func NewInvariantError(msg string) *AppError {
	return &AppError{Kind: KindInvariantViolation, Message: msg}
}

// NewPersistenceError wraps a storage failure.
func NewPersistenceError(msg string, err error) *AppError {
	return &AppError{Kind: KindPersistence, Message: msg, Err: err}
}

// KindOf returns the kind of the first AppError in err's chain, or
// KindInternal when there is none.
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
