// Package errors provides the coded error type shared by planbench components.
package errors

import (
	"errors"
	"fmt"
)

// Error codes. Only connectivity and configuration failures reach the process
// exit code; the rest are per-query or diagnostic.
const (
	CodeConnectivityFailure = "CONNECTIVITY_FAILURE"
	CodeUnknownQuery        = "UNKNOWN_QUERY"
	CodeCaptureFailed       = "CAPTURE_FAILED"
	CodeExtractionAmbiguity = "EXTRACTION_AMBIGUITY"
	CodeEncodingDefect      = "ENCODING_DEFECT"
	CodeInvalidConfig       = "INVALID_CONFIG"
	CodePersistFailed       = "PERSIST_FAILED"
	CodeInternal            = "INTERNAL_ERROR"
)

// Error is a planbench error with code, message, and optional details.
type Error struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithDetails replaces the error details.
func (e *Error) WithDetails(details map[string]interface{}) *Error {
	e.Details = details
	return e
}

// WithDetail adds a single detail to the error.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Sentinels for errors.Is comparisons.
var (
	ErrConnectivity  = &Error{Code: CodeConnectivityFailure, Message: "engine connectivity failed"}
	ErrUnknownQuery  = &Error{Code: CodeUnknownQuery, Message: "query not found in catalog"}
	ErrCaptureFailed = &Error{Code: CodeCaptureFailed, Message: "explain capture failed"}
	ErrInvalidConfig = &Error{Code: CodeInvalidConfig, Message: "invalid configuration"}
)

// New creates a new Error with the given code and message.
func New(code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps err with a coded Error. It returns nil when err is nil.
func Wrap(err error, code, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, code, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   err,
	}
}

// IsConnectivityFailure checks if an error aborted the run before any query executed.
func IsConnectivityFailure(err error) bool {
	return hasCode(err, CodeConnectivityFailure)
}

// IsCaptureFailed checks if an error came from an engine explain call.
func IsCaptureFailed(err error) bool {
	return hasCode(err, CodeCaptureFailed)
}

// IsInvalidConfig checks if an error is a configuration error.
func IsInvalidConfig(err error) bool {
	return hasCode(err, CodeInvalidConfig)
}

func hasCode(err error, code string) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error.
func GetCode(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// GetMessage extracts the error message from an error.
func GetMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
