// Package errors provides the error taxonomy for the MMIF object model.
// It includes error classification, standard error variables, and helper functions
// for consistent error wrapping and classification across packages.
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorClass represents the classification of errors for handling purposes
type ErrorClass int

const (
	// ErrorInvalid represents errors caused by the caller's input: duplicate
	// identifiers, lookups that miss, reserved names, schema findings.
	ErrorInvalid ErrorClass = iota
	// ErrorFatal represents errors that must be surfaced immediately and
	// never recovered from, such as malformed JSON.
	ErrorFatal
	// ErrorTransient represents temporary errors that may be retried,
	// e.g. a remote document that could not be fetched.
	ErrorTransient
)

// String returns the string representation of ErrorClass
func (ec ErrorClass) String() string {
	switch ec {
	case ErrorTransient:
		return "transient"
	case ErrorInvalid:
		return "invalid"
	case ErrorFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Standard error variables for common conditions
var (
	// Deserialization errors
	ErrStructural         = errors.New("structural error")
	ErrUndeclaredProperty = errors.New("undeclared property")
	ErrInvalidValue       = errors.New("unsupported property value")

	// Identifier errors
	ErrDuplicateID  = errors.New("duplicate identifier")
	ErrNotFound     = errors.New("not found")
	ErrMalformedID  = errors.New("malformed identifier")
	ErrReservedName = errors.New("reserved name")
	ErrImmutableID  = errors.New("identifier is immutable")

	// Document location errors
	ErrNoResolver      = errors.New("unresolvable location scheme")
	ErrInvalidLocation = errors.New("invalid document location")
	ErrFetchFailed     = errors.New("document fetch failed")

	// Validation errors
	ErrSchemaViolation = errors.New("schema violation")
	ErrInvalidConfig   = errors.New("invalid configuration")
)

// ClassifiedError wraps an error with its classification
type ClassifiedError struct {
	Class     ErrorClass
	Err       error
	Message   string
	Component string
	Operation string
}

// Error implements the error interface
func (ce *ClassifiedError) Error() string {
	if ce.Message != "" {
		return ce.Message
	}
	return ce.Err.Error()
}

// Unwrap returns the underlying error
func (ce *ClassifiedError) Unwrap() error {
	return ce.Err
}

// IsTransient checks if an error is transient and should be retried
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorTransient
	}

	if errors.Is(err, ErrFetchFailed) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	// Network errors from net/http rarely carry a sentinel
	errStr := strings.ToLower(err.Error())
	transientPatterns := []string{
		"timeout",
		"connection reset",
		"connection refused",
		"temporary",
		"unavailable",
	}

	for _, pattern := range transientPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// IsFatal checks if an error is fatal and should stop processing
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorFatal
	}

	return errors.Is(err, ErrStructural) ||
		errors.Is(err, ErrNoResolver) ||
		errors.Is(err, ErrInvalidConfig)
}

// IsInvalid checks if an error is due to invalid input
func IsInvalid(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorInvalid
	}

	return errors.Is(err, ErrDuplicateID) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrMalformedID) ||
		errors.Is(err, ErrReservedName) ||
		errors.Is(err, ErrImmutableID) ||
		errors.Is(err, ErrUndeclaredProperty) ||
		errors.Is(err, ErrInvalidValue) ||
		errors.Is(err, ErrInvalidLocation) ||
		errors.Is(err, ErrSchemaViolation)
}

// Classify returns the error class for an error.
// Unknown errors are treated as invalid input.
func Classify(err error) ErrorClass {
	if err == nil {
		return ErrorInvalid
	}

	if IsFatal(err) {
		return ErrorFatal
	}
	if IsTransient(err) {
		return ErrorTransient
	}
	return ErrorInvalid
}

// newClassified creates a new classified error
// This is an internal helper - use WrapTransient(), WrapFatal(), or WrapInvalid() instead.
func newClassified(class ErrorClass, err error, component, operation, message string) *ClassifiedError {
	return &ClassifiedError{
		Class:     class,
		Err:       err,
		Message:   message,
		Component: component,
		Operation: operation,
	}
}

// Wrap creates a standardized error with context following the pattern:
// "component.method: action failed: %w"
func Wrap(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %s failed: %w", component, method, action, err)
}

// WrapTransient wraps an error as transient with context
func WrapTransient(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorTransient, wrappedErr, component, method, wrappedErr.Error())
}

// WrapFatal wraps an error as fatal with context
func WrapFatal(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorFatal, wrappedErr, component, method, wrappedErr.Error())
}

// WrapInvalid wraps an error as invalid with context
func WrapInvalid(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorInvalid, wrappedErr, component, method, wrappedErr.Error())
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// New returns an error that formats as the given text.
func New(text string) error {
	return errors.New(text)
}
