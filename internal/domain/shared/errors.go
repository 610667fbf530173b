// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")

	// State errors
	ErrInvalidState = errors.New("invalid state")

	// Authorization errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Storage errors
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrMissingColumn          = errors.New("column missing in store schema")

	// External service errors
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
	ErrRateLimited        = errors.New("rate limited")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "progression", "profile"
	Op      string // Operation that failed, e.g., "AwardXP", "UpdateStreak"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Profile errors
var (
	ErrProfileNotFound      = NewDomainError("profile", "Find", ErrNotFound, "profile not found")
	ErrProfileAlreadyExists = NewDomainError("profile", "Create", ErrAlreadyExists, "profile already exists")
	ErrInvalidUserID        = NewDomainError("profile", "Validate", ErrInvalidID, "invalid user ID")
)

// Progression errors
var (
	ErrNegativeXPGain    = NewDomainError("progression", "ApplyXPGain", ErrNegativeValue, "xp gain cannot be negative")
	ErrNegativeCorrect   = NewDomainError("progression", "AwardForQuiz", ErrNegativeValue, "correct answers cannot be negative")
	ErrUnknownXPSource   = NewDomainError("progression", "Award", ErrInvalidInput, "unknown xp source")
	ErrInvalidCurve      = NewDomainError("progression", "NewCurve", ErrValueOutOfRange, "curve needs base > 0 and scaling >= 1")
	ErrLevelOutOfRange   = NewDomainError("progression", "LevelTable", ErrValueOutOfRange, "level out of range")
	ErrInconsistentLevel = NewDomainError("progression", "Validate", ErrInvalidState, "stored level does not match xp")
	ErrFeatureDisabled   = NewDomainError("progression", "Award", ErrForbidden, "feature is disabled")
	ErrTooManyCorrect    = NewDomainError("progression", "AwardForQuiz", ErrValueOutOfRange, "too many correct answers")
	ErrXPGainTooLarge    = NewDomainError("progression", "Award", ErrValueOutOfRange, "xp gain too large")
	ErrXPOverflow        = NewDomainError("progression", "ApplyXPGain", ErrValueOutOfRange, "xp total would overflow")
)

// Auth errors
var (
	ErrInvalidToken = NewDomainError("auth", "Verify", ErrUnauthorized, "invalid or expired token")
	ErrMissingToken = NewDomainError("auth", "Verify", ErrUnauthorized, "missing bearer token")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsForbidden checks if the caller may not perform the operation.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

// IsUnauthorized checks if the error is an authentication failure.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsMissingColumn reports whether the store lacks a column the operation needs.
func IsMissingColumn(err error) bool {
	return errors.Is(err, ErrMissingColumn)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrConcurrentModification)
}
