package errors

import (
	stderrors "errors"
	"fmt"
)

// Error is the structured error type for textdex.
// It provides rich context for error handling, logging, and user presentation.
type Error struct {
	// Code is the unique error code (e.g., "ERR_602_INDEX_NOT_FOUND").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Lifecycle, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Sentinels for errors.Is. Matching is by code, so any Error carrying the
// same code satisfies errors.Is against these.
var (
	ErrIndexAlreadyExists = New(ErrCodeIndexExists, "index already exists", nil)
	ErrIndexNotFound      = New(ErrCodeIndexNotFound, "index not found", nil)
	ErrIndexUnavailable   = New(ErrCodeIndexUnavailable, "index unavailable", nil)
	ErrAlreadyUnloading   = New(ErrCodeAlreadyUnloading, "index already unloading", nil)
	ErrClosed             = New(ErrCodeClosed, "closed", nil)
	ErrSchema             = New(ErrCodeInvalidSchema, "invalid field schema", nil)
	ErrFieldCoercion      = New(ErrCodeFieldCoercion, "field coercion failed", nil)
	ErrQuerySyntax        = New(ErrCodeInvalidQuery, "invalid query syntax", nil)
)

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with Error.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *Error) WithDetail(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
// Returns the error for method chaining.
func (e *Error) WithSuggestion(suggestion string) *Error {
	e.Suggestion = suggestion
	return e
}

// New creates a new Error with the given code and message.
// Category and severity are derived from the code.
func New(code string, message string, cause error) *Error {
	return &Error{
		Code:     code,
		Message:  message,
		Category: categoryFromCode(code),
		Severity: severityFromCode(code),
		Cause:    cause,
	}
}

// Wrap creates an Error from an existing error.
// The error's message becomes the Error message.
func Wrap(code string, err error) *Error {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *Error {
	return New(ErrCodeConfigInvalid, message, cause)
}

// IOError creates an I/O-related error.
func IOError(message string, cause error) *Error {
	return New(ErrCodeFileNotFound, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *Error {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *Error {
	return New(ErrCodeInternal, message, cause)
}

// IndexExists reports that storage for name is already present.
func IndexExists(name string) *Error {
	return New(ErrCodeIndexExists, fmt.Sprintf("index %q already exists", name), nil).
		WithDetail("index", name).
		WithSuggestion("Choose a different index name or remove the existing index first")
}

// IndexNotFound reports that name has never been created (or was removed).
func IndexNotFound(name string) *Error {
	return New(ErrCodeIndexNotFound, fmt.Sprintf("index %q not found", name), nil).
		WithDetail("index", name)
}

// IndexUnavailable reports that name is being unloaded or was deleted.
func IndexUnavailable(name string, state string) *Error {
	return New(ErrCodeIndexUnavailable, fmt.Sprintf("index %q is %s", name, state), nil).
		WithDetail("index", name).
		WithDetail("state", state)
}

// Closed reports use of a component after Close.
func Closed(component string) *Error {
	return New(ErrCodeClosed, fmt.Sprintf("%s is closed", component), nil).
		WithDetail("component", component)
}

// AlreadyUnloading reports a second concurrent unload of the same index.
func AlreadyUnloading(name string) *Error {
	return New(ErrCodeAlreadyUnloading, fmt.Sprintf("index %q is already unloading", name), nil).
		WithDetail("index", name)
}

// SchemaError reports an invalid or missing field schema.
func SchemaError(message string) *Error {
	return New(ErrCodeInvalidSchema, message, nil)
}

// InvalidIndexName reports a name that cannot address a storage location.
func InvalidIndexName(name string) *Error {
	return New(ErrCodeInvalidIndexName, fmt.Sprintf("invalid index name %q", name), nil).
		WithDetail("index", name).
		WithSuggestion("Use letters, digits, '-' or '_' and start with a letter or digit")
}

// As returns the first Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	if e, ok := As(err); ok {
		return e.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from an Error anywhere in the chain.
// Returns empty string if there is none.
func GetCode(err error) string {
	if e, ok := As(err); ok {
		return e.Code
	}
	return ""
}

// GetCategory extracts the category from an Error anywhere in the chain.
// Returns empty string if there is none.
func GetCategory(err error) Category {
	if e, ok := As(err); ok {
		return e.Category
	}
	return ""
}
