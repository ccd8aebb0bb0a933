package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents stable error codes for all build diagnostics
type ErrorCode string

const (
	// ConfigInvalid indicates a missing or malformed plugin/CLI option
	ConfigInvalid ErrorCode = "CONFIG_INVALID"
	// JSONMalformed indicates a JSON payload that could not be parsed
	JSONMalformed ErrorCode = "JSON_MALFORMED"
	// AmbiguousUsage indicates an accessor call that cannot be optimized
	AmbiguousUsage ErrorCode = "AMBIGUOUS_USAGE"
	// UnknownKey indicates an accessor call referencing a key no JSON file has
	UnknownKey ErrorCode = "UNKNOWN_KEY"
	// KeySetMismatch indicates JSON files that disagree on their key sets
	KeySetMismatch ErrorCode = "KEY_SET_MISMATCH"
	// RebuildFailed indicates a module rebuild that could not complete
	RebuildFailed ErrorCode = "REBUILD_FAILED"
	// ModuleNotFound indicates an import that could not be resolved
	ModuleNotFound ErrorCode = "MODULE_NOT_FOUND"
	// ParseFailed indicates a script or JSON module the parser rejected
	ParseFailed ErrorCode = "PARSE_FAILED"
	// CacheFailure indicates the persistent build cache could not be used
	CacheFailure ErrorCode = "CACHE_FAILURE"
	// InternalError indicates unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// Severity tells whether a diagnostic fails the build
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Error is a coded diagnostic. The message is what users see; the code is
// for tooling (report output, cache persistence, errors.As matching).
type Error struct {
	Code     ErrorCode `json:"code"`
	Message  string    `json:"message"`
	Resource string    `json:"resource,omitempty"`
	cause    error     // Underlying error (not exported to JSON)
}

// New creates a new Error without a cause
func New(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a new Error with a formatted message
func Newf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a new Error that wraps cause
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.cause
}

// WithResource records the module the diagnostic belongs to
func (e *Error) WithResource(resource string) *Error {
	e.Resource = resource
	return e
}

// Is matches another *Error by code, so sentinel-style checks work:
//
//	errors.Is(err, errors.New(errors.UnknownKey, ""))
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// CodeOf returns the code of the first *Error in err's chain, or InternalError.
func CodeOf(err error) ErrorCode {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return InternalError
}

// Diagnostic is the serializable form of a module warning or error
type Diagnostic struct {
	Code     ErrorCode `json:"code"`
	Message  string    `json:"message"`
	Resource string    `json:"resource,omitempty"`
	Severity Severity  `json:"severity"`
}

// ToDiagnostic flattens err into a Diagnostic
func ToDiagnostic(err error, severity Severity) Diagnostic {
	d := Diagnostic{Code: CodeOf(err), Message: err.Error(), Severity: severity}
	var e *Error
	if stderrors.As(err, &e) {
		d.Resource = e.Resource
	}
	return d
}

// FromDiagnostic rebuilds an *Error from its serialized form
func FromDiagnostic(d Diagnostic) *Error {
	return &Error{Code: d.Code, Message: d.Message, Resource: d.Resource}
}
