package errors

import (
	"errors"
	"fmt"
)

// Error codes as constants
const (
	ErrCodeParse            = "PARSE_ERROR"
	ErrCodeRange            = "RANGE_ERROR"
	ErrCodeMixedSentinel    = "MIXED_SENTINEL_ERROR"
	ErrCodeFormat           = "FORMAT_ERROR"
	ErrCodeRequirement      = "REQUIREMENT_ERROR"
	ErrCodeNotFound         = "NOT_FOUND_ERROR"
	ErrCodeUnsupportedModel = "UNSUPPORTED_MODEL"
	ErrCodeEngine           = "ENGINE_ERROR"
	ErrCodeInternal         = "INTERNAL_ERROR"
)

// Error is the structured error type used across the autotune packages.
// Every validation failure carries a stable code so the command boundary
// can translate it once, instead of each call site formatting its own exit.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports code equality so errors.Is can match sentinel instances.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// New creates a structured error with the given code and message.
func New(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a structured error with a formatted message.
func Newf(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// Code extracts the structured code from err, or ErrCodeInternal when err
// carries none.
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}

// IsCode reports whether err carries the given code anywhere in its chain.
func IsCode(err error, code string) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
