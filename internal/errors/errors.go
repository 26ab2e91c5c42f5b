package errors

import (
	stderrors "errors"
	"fmt"
)

// SeekError is the structured error type for seekhost.
// It provides rich context for error handling, logging, and user presentation.
type SeekError struct {
	// Code is the unique error code (e.g., "ERR_302_INDEX_NOT_FOUND").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, NotFound, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *SeekError) Error() string {
	if e.Cause != nil && e.Cause.Error() != e.Message {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *SeekError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with SeekError.
func (e *SeekError) Is(target error) bool {
	if t, ok := target.(*SeekError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *SeekError) WithDetail(key, value string) *SeekError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
// Returns the error for method chaining.
func (e *SeekError) WithSuggestion(suggestion string) *SeekError {
	e.Suggestion = suggestion
	return e
}

// New creates a new SeekError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *SeekError {
	return &SeekError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a SeekError from an existing error.
// The error's message becomes the SeekError message.
func Wrap(code string, err error) *SeekError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *SeekError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// IOFailure creates an I/O error. The code must be in the 2XX range.
func IOFailure(code, message string, cause error) *SeekError {
	return New(code, message, cause)
}

// NotFound creates a not-found error. The code must be in the 3XX range.
func NotFound(code, message string) *SeekError {
	return New(code, message, nil)
}

// EngineFailure creates an error for a failure reported by the search engine.
func EngineFailure(message string, cause error) *SeekError {
	return New(ErrCodeEngineFailure, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *SeekError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *SeekError {
	return New(ErrCodeInternal, message, cause)
}

// As returns the first SeekError in err's chain.
func As(err error) (*SeekError, bool) {
	var se *SeekError
	if stderrors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	se, ok := As(err)
	return ok && se.Retryable
}

// IsNotFound reports whether err refers to an unknown apikey, index or document.
func IsNotFound(err error) bool {
	return GetCategory(err) == CategoryNotFound
}

// IsIOFailure reports whether err is a filesystem failure.
func IsIOFailure(err error) bool {
	return GetCategory(err) == CategoryIO
}

// IsEngineFailure reports whether err was reported by the search engine.
func IsEngineFailure(err error) bool {
	return GetCategory(err) == CategoryEngine
}

// GetCode extracts the error code from a SeekError.
// Returns empty string if not a SeekError.
func GetCode(err error) string {
	if se, ok := As(err); ok {
		return se.Code
	}
	return ""
}

// GetCategory extracts the category from a SeekError.
// Returns empty string if not a SeekError.
func GetCategory(err error) Category {
	if se, ok := As(err); ok {
		return se.Category
	}
	return ""
}
