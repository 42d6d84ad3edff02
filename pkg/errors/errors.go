// Package errors provides the coded error type shared by wheelwright's CLI
// and HTTP API.
//
// Library packages return sentinel or typed errors (for example
// [github.com/matzehuels/wheelwright/pkg/resolve.ConflictError]). Anything
// that crosses a user-facing boundary is classified by a [Code] so callers
// can pick an exit status or HTTP status without string matching.
//
// # Error Codes
//
//   - INVALID_*: malformed versions, requirements or input files
//   - PACKAGE_NOT_FOUND, FETCH_FAILED, NETWORK_ERROR, TIMEOUT, RATE_LIMITED:
//     metadata acquisition failures
//   - CONFLICT, CYCLE_ESCALATION: resolution found no consistent assignment
//   - CANCELED: the operation was interrupted
//   - INTERNAL_ERROR: anything unexpected
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidRequirement, "bad line %d", n)
//	if errors.Is(err, errors.ErrCodeInvalidRequirement) {
//	    // Handle validation error
//	}
//
// Typed errors from other packages participate by implementing Code():
//
//	func (e *ConflictError) Code() errors.Code { return errors.ErrCodeConflict }
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput       Code = "INVALID_INPUT"
	ErrCodeInvalidVersion     Code = "INVALID_VERSION"
	ErrCodeInvalidRequirement Code = "INVALID_REQUIREMENT"
	ErrCodeInvalidManifest    Code = "INVALID_MANIFEST"
	ErrCodeInvalidPackage     Code = "INVALID_PACKAGE"
	ErrCodeInvalidPath        Code = "INVALID_PATH"

	// Metadata acquisition errors
	ErrCodePackageNotFound Code = "PACKAGE_NOT_FOUND"
	ErrCodeFetchFailed     Code = "FETCH_FAILED"
	ErrCodeNetwork         Code = "NETWORK_ERROR"
	ErrCodeTimeout         Code = "TIMEOUT"
	ErrCodeRateLimited     Code = "RATE_LIMITED"

	// Resolution errors
	ErrCodeConflict        Code = "CONFLICT"
	ErrCodeCycleEscalation Code = "CYCLE_ESCALATION"
	ErrCodeCanceled        Code = "CANCELED"
	ErrCodeNotFound        Code = "NOT_FOUND"

	// Internal errors
	ErrCodeInternal Code = "INTERNAL_ERROR"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Coder is implemented by typed errors that carry their own code.
type Coder interface {
	Code() Code
}

// Is reports whether err has the given error code.
func Is(err error, code Code) bool {
	return err != nil && GetCode(err) == code
}

// GetCode extracts the error code from an error chain. The outermost *Error
// or [Coder] wins. Returns empty string if neither is found.
func GetCode(err error) Code {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Code
		}
		if c, ok := err.(Coder); ok {
			return c.Code()
		}
		switch u := err.(type) {
		case interface{ Unwrap() error }:
			err = u.Unwrap()
		case interface{ Unwrap() []error }:
			for _, inner := range u.Unwrap() {
				if code := GetCode(inner); code != "" {
					return code
				}
			}
			return ""
		default:
			return ""
		}
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// RateLimitedError is returned when the index answers 429.
type RateLimitedError struct {
	RetryAfter int // Seconds to wait before retrying
	Message    string
}

// Error implements the error interface.
func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited: retry after %d seconds", e.RetryAfter)
	}
	return "rate limited"
}

// Code returns the error code for this error type.
func (e *RateLimitedError) Code() Code {
	return ErrCodeRateLimited
}

// ExitCode maps an error to a process exit status: 0 for nil, 2 for
// resolution conflicts, 3 for metadata acquisition failures, 130 for
// cancellation and 1 for everything else.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch GetCode(err) {
	case ErrCodeConflict, ErrCodeCycleEscalation:
		return 2
	case ErrCodeFetchFailed, ErrCodePackageNotFound, ErrCodeNetwork, ErrCodeTimeout, ErrCodeRateLimited:
		return 3
	case ErrCodeCanceled:
		return 130
	default:
		return 1
	}
}

// HTTPStatus maps an error code to the status returned by the API server.
func HTTPStatus(code Code) int {
	switch code {
	case ErrCodeInvalidInput, ErrCodeInvalidVersion, ErrCodeInvalidRequirement,
		ErrCodeInvalidManifest, ErrCodeInvalidPackage, ErrCodeInvalidPath:
		return 400
	case ErrCodeNotFound, ErrCodePackageNotFound:
		return 404
	case ErrCodeConflict, ErrCodeCycleEscalation:
		return 409
	case ErrCodeRateLimited:
		return 429
	case ErrCodeFetchFailed, ErrCodeNetwork:
		return 502
	case ErrCodeTimeout:
		return 504
	case ErrCodeCanceled:
		return 499
	default:
		return 500
	}
}
