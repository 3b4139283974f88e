package executor

import (
	"errors"
	"fmt"
)

// EngineError represents a classified failure from the scripting engine.
//
// Engine failures are expected operating conditions, not program bugs:
// the executor returns them inside a Result instead of propagating them
// as Go errors. Classification drives retry policy - only transient
// codes are ever retried.
type EngineError struct {
	// Code identifies the failure category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Raw is the engine's original error text (stderr), kept for
	// diagnostics.
	Raw string

	// Hint suggests a remediation for failures the caller can act on
	// (currently only permission denials).
	Hint string
}

// ErrorCode categorizes engine failures.
type ErrorCode string

const (
	// ErrCodeSyntax indicates a malformed generated command. This is a
	// command-builder defect; retrying the same text cannot succeed.
	ErrCodeSyntax ErrorCode = "SYNTAX"

	// ErrCodeReferenceNotFound indicates the command's target no longer
	// exists in the application. Not retried.
	ErrCodeReferenceNotFound ErrorCode = "REFERENCE_NOT_FOUND"

	// ErrCodePermissionDenied indicates automation access has not been
	// granted to this process. Not retried; surfaced with a hint.
	ErrCodePermissionDenied ErrorCode = "PERMISSION_DENIED"

	// ErrCodeAppUnavailable indicates the application is not running or
	// not responding. Transient: retried with backoff.
	ErrCodeAppUnavailable ErrorCode = "APP_UNAVAILABLE"

	// ErrCodeTimeout indicates the call exceeded its wall-clock deadline
	// and was aborted. Transient: retried up to the attempt bound.
	ErrCodeTimeout ErrorCode = "TIMEOUT"

	// ErrCodeUnknown is the fallback for unrecognized engine errors.
	ErrCodeUnknown ErrorCode = "UNKNOWN"
)

// Transient reports whether failures with this code are expected to
// resolve on retry.
func (c ErrorCode) Transient() bool {
	return c == ErrCodeTimeout || c == ErrCodeAppUnavailable
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Hint)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Transient reports whether the error is expected to resolve on retry.
func (e *EngineError) Transient() bool {
	return e.Code.Transient()
}

// IsTimeout returns true if err is a timeout engine error.
// Uses errors.As to handle wrapped errors.
func IsTimeout(err error) bool {
	var ee *EngineError
	return errors.As(err, &ee) && ee.Code == ErrCodeTimeout
}

// IsTransient returns true if err is a transient engine error.
func IsTransient(err error) bool {
	var ee *EngineError
	return errors.As(err, &ee) && ee.Transient()
}
