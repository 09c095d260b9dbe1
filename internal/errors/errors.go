// Package errors provides the structured error type used across cts.
// Errors carry a Code identifying the stage that failed, an operation name and
// an optional cause, and work with errors.Is() and errors.As().
package errors

import (
	"errors"
	"fmt"
)

// Code represents error categories for classifying different types of failures.
type Code int

const (
	// Unknown indicates an unclassified error.
	Unknown Code = iota
	// DeviceProbe indicates the device enumeration pre-flight step failed.
	DeviceProbe
	// DataUnavailable indicates the reference data could not be made available.
	DataUnavailable
	// ReportWrite indicates the final report could not be written.
	ReportWrite
	// Configuration indicates a configuration error.
	Configuration
	// Validation indicates invalid input (flags, catalog files).
	Validation
	// Execution indicates a child process could not be started.
	Execution
	// Timeout indicates an operation exceeded its time limit.
	Timeout
	// NotFound indicates a required resource was not found.
	NotFound
	// Network indicates a network-related failure.
	Network
	// Cancelled indicates the operation was interrupted.
	Cancelled
)

// String returns the string representation of the error code.
func (c Code) String() string {
	switch c {
	case Unknown:
		return "Unknown"
	case DeviceProbe:
		return "DeviceProbe"
	case DataUnavailable:
		return "DataUnavailable"
	case ReportWrite:
		return "ReportWrite"
	case Configuration:
		return "Configuration"
	case Validation:
		return "Validation"
	case Execution:
		return "Execution"
	case Timeout:
		return "Timeout"
	case NotFound:
		return "NotFound"
	case Network:
		return "Network"
	case Cancelled:
		return "Cancelled"
	default:
		return fmt.Sprintf("Code(%d)", c)
	}
}

// Stage returns the user-facing name of the run stage a fatal code belongs to.
// Codes that are not tied to a stage return "cts".
func (c Code) Stage() string {
	switch c {
	case DeviceProbe:
		return "device probe"
	case DataUnavailable:
		return "test data"
	case ReportWrite:
		return "report"
	case Configuration, Validation:
		return "configuration"
	default:
		return "cts"
	}
}

// Error represents a structured application error with code, message,
// operation context, and optional cause for error chaining.
type Error struct {
	Code    Code   // Error category
	Message string // Human-readable error message
	Op      string // Operation that failed (e.g., "device.Probe")
	Cause   error  // Underlying error, if any
}

// New creates a new Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a new Error with a formatted message.
func Newf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with additional context.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Wrapf wraps an existing error with a formatted message.
func Wrapf(code Code, cause error, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// WithOp adds operation context to the error and returns the modified error.
func (e *Error) WithOp(op string) *Error {
	e.Op = op
	return e
}

// Error implements the error interface.
// The format varies based on whether Op and Cause are set:
//   - With Op and Cause: "op: message: cause"
//   - With Op only: "op: message"
//   - With Cause only: "message: cause"
//   - Message only: "message"
func (e *Error) Error() string {
	if e.Op != "" {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Cause)
		}
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// GetCode extracts the error code from an error.
// Returns Unknown if the error is not an *Error type.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return Unknown
}

// IsCode checks if an error has a specific code.
func IsCode(err error, code Code) bool {
	return GetCode(err) == code
}

// Describe renders err as the single line shown to the user when a run aborts:
// "<stage>: <cause>".
func Describe(err error) string {
	if err == nil {
		return ""
	}
	return GetCode(err).Stage() + ": " + err.Error()
}

// Sentinel errors for common cases.
var (
	// ErrNoEnumerator indicates the device enumeration executable is missing.
	ErrNoEnumerator = New(DeviceProbe, "device enumeration executable not found")
	// ErrTimeout indicates an operation exceeded its allowed time.
	ErrTimeout = New(Timeout, "operation timed out")
	// ErrCancelled indicates an operation was cancelled by the user.
	ErrCancelled = New(Cancelled, "operation cancelled")
)
