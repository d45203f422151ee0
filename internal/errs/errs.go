// Package errs defines the error taxonomy shared by the chart-of-accounts services.
//
// ValidationError marks structural or invariant violations; UserError marks
// business-rule refusals the caller must resolve by changing intent. Both abort
// the enclosing transaction and are never retried.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrAllocationExhausted is returned when no free account code could be derived.
	ErrAllocationExhausted = errors.New("cannot generate an unused account code")
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when the caller lacks write access.
	ErrForbidden = errors.New("forbidden")
)

// ValidationError describes a single invariant violation.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Message
	}
	return fmt.Sprintf("validation [%s]: %s", e.Field, e.Message)
}

// Validationf builds a ValidationError for field.
func Validationf(field, format string, args ...any) error {
	return ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// UserError describes a business-rule refusal, surfaced verbatim.
type UserError struct {
	Message string
}

func (e UserError) Error() string {
	return e.Message
}

// Userf builds a UserError.
func Userf(format string, args ...any) error {
	return UserError{Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err wraps a ValidationError.
func IsValidation(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

// IsUser reports whether err wraps a UserError.
func IsUser(err error) bool {
	var ue UserError
	return errors.As(err, &ue)
}
