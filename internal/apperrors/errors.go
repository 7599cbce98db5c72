package apperrors

import (
	"errors"
	"fmt"
	"strings"
)

// The engine surfaces four caller-visible failure kinds. Handlers map these to
// HTTP statuses; everything else is treated as an internal error.

// ValidationError carries field-level detail about malformed input.
// Nothing is persisted when one is returned.
type ValidationError struct {
	Errors []FieldError
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// NewValidation builds a ValidationError from field/message pairs.
func NewValidation(pairs ...string) *ValidationError {
	ve := &ValidationError{}
	for i := 0; i+1 < len(pairs); i += 2 {
		ve.Errors = append(ve.Errors, FieldError{Field: pairs[i], Message: pairs[i+1]})
	}
	return ve
}

func (e *ValidationError) Add(field, message string) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: message})
}

func (e *ValidationError) Empty() bool { return len(e.Errors) == 0 }

// ErrAuthorization is deliberately detail-free: callers must not learn which
// check failed.
var ErrAuthorization = errors.New("authorization failed")

// ErrNotFound signals an absent referenced resource.
var ErrNotFound = errors.New("not found")

// ConflictError signals a rejected state change (invalid state-machine event,
// restricted delete, duplicate unique value). The source record is unchanged.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string {
	if e.Reason == "" {
		return "conflict"
	}
	return "conflict: " + e.Reason
}

func Conflictf(format string, args ...any) *ConflictError {
	return &ConflictError{Reason: fmt.Sprintf(format, args...)}
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

func IsAuthorization(err error) bool { return errors.Is(err, ErrAuthorization) }
