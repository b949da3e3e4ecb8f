package req

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is matching against the typed errors below.
var (
	ErrValidation    = errors.New("validation failed")
	ErrRejected      = errors.New("rejected by script")
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrScriptFailure = errors.New("script failure")
)

// ValidationError reports bad input. No state was changed.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Message
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// RejectedError is returned when a pre_* trigger vetoed a mutation.
type RejectedError struct {
	Script string
	Reason string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("script '%s' rejected: %s", e.Script, e.Reason)
}

func (e *RejectedError) Is(target error) bool { return target == ErrRejected }

// NotFoundError names the missing entity.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ConflictError reports a mutation that is inconsistent with current state,
// such as a stale expected version or a reparent that would form a cycle.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return "conflict: " + e.Message }

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// ScriptFailureError wraps an uncaught script error or an exceeded budget.
type ScriptFailureError struct {
	Script string
	Err    error
}

func (e *ScriptFailureError) Error() string {
	return fmt.Sprintf("script '%s' failed: %v", e.Script, e.Err)
}

func (e *ScriptFailureError) Is(target error) bool { return target == ErrScriptFailure }

func (e *ScriptFailureError) Unwrap() error { return e.Err }

func validationf(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func notFound(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

func conflictf(format string, args ...any) error {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}
