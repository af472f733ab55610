package errors

import (
	stderrors "errors"
	"fmt"
)

// TaxidxError is the structured error type for taxidx.
// It carries enough context to decide whether a failure aborts the job,
// stops a single worker, or only skips one input line.
type TaxidxError struct {
	// Code is the unique error code (e.g., "ERR_201_READ_FAILED").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Parse, Internal).
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

// Error implements the error interface.
func (e *TaxidxError) Error() string {
	if e.Cause != nil && e.Cause.Error() != e.Message {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *TaxidxError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with TaxidxError.
func (e *TaxidxError) Is(target error) bool {
	if t, ok := target.(*TaxidxError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *TaxidxError) WithDetail(key, value string) *TaxidxError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *TaxidxError) WithSuggestion(suggestion string) *TaxidxError {
	e.Suggestion = suggestion
	return e
}

// New creates a new TaxidxError with the given code and message.
// Category and severity are derived from the code.
func New(code string, message string, cause error) *TaxidxError {
	return &TaxidxError{
		Code:     code,
		Message:  message,
		Category: categoryFromCode(code),
		Severity: severityFromCode(code),
		Cause:    cause,
	}
}

// Wrap creates a TaxidxError from an existing error.
// The error's message becomes the TaxidxError message.
func Wrap(code string, err error) *TaxidxError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *TaxidxError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// IOError creates an I/O-related error.
func IOError(message string, cause error) *TaxidxError {
	return New(ErrCodeReadFailed, message, cause)
}

// ParseError creates an error for one malformed input line.
func ParseError(message string, cause error) *TaxidxError {
	return New(ErrCodeParseFailed, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *TaxidxError {
	return New(ErrCodeInternal, message, cause)
}

// As returns the first TaxidxError in err's chain.
func As(err error) (*TaxidxError, bool) {
	var te *TaxidxError
	if stderrors.As(err, &te) {
		return te, true
	}
	return nil, false
}

// IsConfig reports whether err is a configuration error.
func IsConfig(err error) bool {
	return GetCategory(err) == CategoryConfig
}

// IsIO reports whether err is an I/O error.
func IsIO(err error) bool {
	return GetCategory(err) == CategoryIO
}

// IsParse reports whether err is a parse error.
func IsParse(err error) bool {
	return GetCategory(err) == CategoryParse
}

// IsFatal checks if an error has fatal severity.
// Fatal errors abort the job before any worker starts.
func IsFatal(err error) bool {
	if te, ok := As(err); ok {
		return te.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a TaxidxError.
// Returns empty string if err carries no TaxidxError.
func GetCode(err error) string {
	if te, ok := As(err); ok {
		return te.Code
	}
	return ""
}

// GetCategory extracts the category from a TaxidxError.
// Returns empty string if err carries no TaxidxError.
func GetCategory(err error) Category {
	if te, ok := As(err); ok {
		return te.Category
	}
	return ""
}
