package todo

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes core errors.
type ErrorCode string

const (
	// ErrCodeNotFound indicates an absent todo, snapshot, citation, or
	// trigger id. Recoverable; the caller decides the fallback.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeInvalidHierarchy indicates a tier/parent mismatch. Rejected,
	// never partially applied.
	ErrCodeInvalidHierarchy ErrorCode = "INVALID_HIERARCHY"

	// ErrCodeValidation indicates a malformed field or a scope violation
	// under block-mode enforcement.
	ErrCodeValidation ErrorCode = "VALIDATION_ERROR"

	// ErrCodeConflict indicates rollback conflicts of blocking severity.
	ErrCodeConflict ErrorCode = "CONFLICT"

	// ErrCodeNotSuppressible indicates an attempt to suppress a trigger
	// that opted out of suppression.
	ErrCodeNotSuppressible ErrorCode = "NOT_SUPPRESSIBLE"
)

// Error is the structured error type shared by every docket component.
//
// Rejected mutations carry enough detail (field, reason, violations) for
// the caller to present actionable feedback; nothing is silently dropped.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Feature identifies the affected feature partition, when known.
	Feature string

	// TodoID identifies the affected todo, when known.
	TodoID string

	// Field names the offending field (for validation errors).
	Field string

	// Violations carries scope findings for block-mode rejections.
	Violations []ScopeViolation

	// Conflicts carries the blocking conflicts for rollback rejections.
	Conflicts []RollbackConflict

	// Details contains additional context.
	Details map[string]string
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.TodoID != "" && e.Feature != "":
		return fmt.Sprintf("%s: %s (feature=%s, todo=%s)", e.Code, e.Message, e.Feature, e.TodoID)
	case e.TodoID != "":
		return fmt.Sprintf("%s: %s (todo=%s)", e.Code, e.Message, e.TodoID)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// codeIs reports whether err is (or wraps) an *Error with the given code.
func codeIs(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool { return codeIs(err, ErrCodeNotFound) }

// IsInvalidHierarchy reports whether err is a tier/parent mismatch.
func IsInvalidHierarchy(err error) bool { return codeIs(err, ErrCodeInvalidHierarchy) }

// IsValidation reports whether err is a validation rejection.
func IsValidation(err error) bool { return codeIs(err, ErrCodeValidation) }

// IsConflict reports whether err is a rollback conflict rejection.
func IsConflict(err error) bool { return codeIs(err, ErrCodeConflict) }

// IsNotSuppressible reports whether err rejects a suppression attempt.
func IsNotSuppressible(err error) bool { return codeIs(err, ErrCodeNotSuppressible) }

// NewNotFound creates a not-found error for a record in a feature.
func NewNotFound(feature, kind, id string) *Error {
	return &Error{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s %q not found", kind, id),
		Feature: feature,
		Details: map[string]string{"kind": kind, "id": id},
	}
}

// NewInvalidHierarchy creates an error for a tier/parent mismatch.
func NewInvalidHierarchy(feature, todoID, message string) *Error {
	return &Error{
		Code:    ErrCodeInvalidHierarchy,
		Message: message,
		Feature: feature,
		TodoID:  todoID,
	}
}

// NewValidationError creates a validation rejection for one field.
func NewValidationError(feature, todoID, field, message string) *Error {
	return &Error{
		Code:    ErrCodeValidation,
		Message: message,
		Feature: feature,
		TodoID:  todoID,
		Field:   field,
	}
}

// NewScopeError creates a block-mode scope rejection carrying the findings.
func NewScopeError(feature, todoID string, violations []ScopeViolation) *Error {
	return &Error{
		Code:       ErrCodeValidation,
		Message:    fmt.Sprintf("scope enforcement blocked save: %d violation(s)", len(violations)),
		Feature:    feature,
		TodoID:     todoID,
		Violations: violations,
	}
}

// NewConflictError creates a rollback rejection carrying the blocking conflicts.
func NewConflictError(feature, todoID string, conflicts []RollbackConflict) *Error {
	return &Error{
		Code:      ErrCodeConflict,
		Message:   fmt.Sprintf("rollback blocked by %d conflict(s)", len(conflicts)),
		Feature:   feature,
		TodoID:    todoID,
		Conflicts: conflicts,
	}
}

// NewNotSuppressible creates a rejection for suppressing a non-suppressible trigger.
func NewNotSuppressible(feature, triggerID string) *Error {
	return &Error{
		Code:    ErrCodeNotSuppressible,
		Message: fmt.Sprintf("trigger %q is not suppressible", triggerID),
		Feature: feature,
		Details: map[string]string{"trigger_id": triggerID},
	}
}
