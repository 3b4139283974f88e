package calendar

import (
	"errors"
	"fmt"
)

// InvalidDateError reports date input that could not be normalized.
//
// Invalid dates are a caller problem, never an engine problem: they are
// surfaced immediately and are never retried. The Code field separates
// the three failure classes so callers can give targeted feedback.
type InvalidDateError struct {
	// Code identifies the failure class.
	Code InvalidDateCode

	// Input is the original (pre-normalization) input string.
	Input string

	// Message is a human-readable description.
	Message string
}

// InvalidDateCode categorizes date normalization failures.
type InvalidDateCode string

const (
	// ErrCodeMalformed indicates input matching no supported date form.
	ErrCodeMalformed InvalidDateCode = "MALFORMED"

	// ErrCodeOutOfRange indicates a structurally valid form with impossible
	// field values (Feb 30, month 13, hour 25).
	ErrCodeOutOfRange InvalidDateCode = "OUT_OF_RANGE"

	// ErrCodeAmbiguous indicates input readable as both US and European
	// field order. Such input always fails unless the caller supplies an
	// explicit format hint; the normalizer never guesses.
	ErrCodeAmbiguous InvalidDateCode = "AMBIGUOUS"
)

// Error implements the error interface.
func (e *InvalidDateError) Error() string {
	if e.Input != "" {
		return fmt.Sprintf("%s: %s (input=%q)", e.Code, e.Message, e.Input)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsAmbiguous returns true if err is an ambiguous-date error.
// Uses errors.As to handle wrapped errors.
func IsAmbiguous(err error) bool {
	var ide *InvalidDateError
	return errors.As(err, &ide) && ide.Code == ErrCodeAmbiguous
}

// IsInvalidDate returns true if err is any date normalization failure.
func IsInvalidDate(err error) bool {
	var ide *InvalidDateError
	return errors.As(err, &ide)
}

func newMalformedError(input, msg string) *InvalidDateError {
	return &InvalidDateError{Code: ErrCodeMalformed, Input: input, Message: msg}
}

func newOutOfRangeError(input, msg string) *InvalidDateError {
	return &InvalidDateError{Code: ErrCodeOutOfRange, Input: input, Message: msg}
}

func newAmbiguousError(input string) *InvalidDateError {
	return &InvalidDateError{
		Code:    ErrCodeAmbiguous,
		Input:   input,
		Message: "date is ambiguous between US and European field order; pass an explicit format hint",
	}
}
