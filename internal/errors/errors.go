// LOCATION: internal/errors/errors.go
//
// This file provides:
// - Consumer surface error codes
// - Sentinel errors for all error conditions
// - Error category checking functions
// - ErrorToCode mapping
// - Error wrapping utilities

package errors

import (
	"errors"
	"fmt"
)

// ============================================================================
// Error codes - reported by the consumer surface (CLI exit codes, journal)
// ============================================================================

const (
	CodeUnknown       int32 = 1
	CodeNotFound      int32 = 2
	CodeConfiguration int32 = 3
	CodeIO            int32 = 4
	CodeFormat        int32 = 5
	CodeInvalidInput  int32 = 6
	CodeInternal      int32 = 7
)

// CodeName returns a human-readable name for an error code.
func CodeName(code int32) string {
	switch code {
	case CodeUnknown:
		return "Unknown"
	case CodeNotFound:
		return "NotFound"
	case CodeConfiguration:
		return "Configuration"
	case CodeIO:
		return "IO"
	case CodeFormat:
		return "Format"
	case CodeInvalidInput:
		return "InvalidInput"
	case CodeInternal:
		return "Internal"
	default:
		return fmt.Sprintf("Code(%d)", code)
	}
}

// ============================================================================
// Sentinel errors for common conditions
// ============================================================================

var (
	// Not found errors
	ErrNotFound         = errors.New("not found")
	ErrNodeNotFound     = errors.New("storage node not found")
	ErrFragmentNotFound = errors.New("fragment not found")

	// Metadata errors. A required key is missing or cannot be parsed.
	ErrConfiguration = errors.New("configuration error")
	ErrMissingKey    = errors.New("missing required key")

	// Backend read or write failure: disk, archive or remote mount.
	ErrIO = errors.New("io error")

	// Byte layout violates the codec schema.
	ErrFormat            = errors.New("format error")
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrBadEnvelope       = errors.New("malformed envelope")

	// Duplicate or missing point index. Never returned, only logged.
	ErrOrdering = errors.New("point ordering")

	// Validation errors
	ErrInvalidName   = errors.New("invalid name")
	ErrInvalidPath   = errors.New("invalid path")
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrMissingField  = errors.New("missing required field")

	// Tree shape errors
	ErrNotShelf  = errors.New("node is not a shelf")
	ErrNotLoader = errors.New("node is not a loader")
	ErrReadOnly  = errors.New("backend is read-only")

	// Lifecycle
	ErrClosed   = errors.New("closed")
	ErrInternal = errors.New("internal error")
)

// ============================================================================
// Helper functions for error checking
// ============================================================================

// Is is a convenience wrapper for errors.Is
var Is = errors.Is

// As is a convenience wrapper for errors.As
var As = errors.As

// Join is a convenience wrapper for errors.Join
var Join = errors.Join

// New is a convenience wrapper for errors.New
var New = errors.New

// IsNotFound returns true if err is a not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrNodeNotFound) ||
		errors.Is(err, ErrFragmentNotFound)
}

// IsConfiguration returns true if err is a metadata error.
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration) ||
		errors.Is(err, ErrMissingKey)
}

// IsIO returns true if err is a backend failure.
func IsIO(err error) bool {
	return errors.Is(err, ErrIO)
}

// IsFormat returns true if err is a codec layout error.
func IsFormat(err error) bool {
	return errors.Is(err, ErrFormat) ||
		errors.Is(err, ErrUnsupportedFormat) ||
		errors.Is(err, ErrBadEnvelope)
}

// IsValidation returns true if err is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidName) ||
		errors.Is(err, ErrInvalidPath) ||
		errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrMissingField) ||
		errors.Is(err, ErrNotShelf) ||
		errors.Is(err, ErrNotLoader) ||
		errors.Is(err, ErrReadOnly)
}

// ============================================================================
// Error to code mapping
// ============================================================================

// ErrorToCode maps a sentinel error to its surface code.
func ErrorToCode(err error) int32 {
	if err == nil {
		return CodeUnknown
	}

	switch {
	case IsNotFound(err):
		return CodeNotFound
	case IsConfiguration(err):
		return CodeConfiguration
	case IsFormat(err):
		return CodeFormat
	case IsIO(err):
		return CodeIO
	case IsValidation(err):
		return CodeInvalidInput
	default:
		return CodeInternal
	}
}

// ============================================================================
// Error wrapping utilities
// ============================================================================

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// WrapIO marks err as a backend failure while keeping the original cause.
func WrapIO(err error, op, path string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrIO) {
		return fmt.Errorf("%s %s: %w", op, path, err)
	}
	return fmt.Errorf("%s %s: %w: %w", op, path, ErrIO, err)
}

// ============================================================================
// Error constructors with context
// ============================================================================

// NewNotFound creates a not-found error with context.
func NewNotFound(entityType, identifier string) error {
	return fmt.Errorf("%s '%s': %w", entityType, identifier, ErrNotFound)
}

// NewMissingKey reports an absent metadata key.
func NewMissingKey(key string) error {
	return fmt.Errorf("%s: %w: %w", key, ErrMissingKey, ErrConfiguration)
}

// NewBadValue reports a metadata key that cannot be parsed.
func NewBadValue(key string, value interface{}, reason string) error {
	return fmt.Errorf("key %s value '%v': %s: %w", key, value, reason, ErrConfiguration)
}

// NewFormat creates a codec layout error with context.
func NewFormat(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrFormat)
}

// NewValidation creates a validation error with context.
func NewValidation(field, reason string) error {
	return fmt.Errorf("invalid %s: %s: %w", field, reason, ErrInvalidConfig)
}

// NewMissingField creates a missing field error.
func NewMissingField(field string) error {
	return fmt.Errorf("%s: %w", field, ErrMissingField)
}

// NewInvalidValue creates an invalid value error.
func NewInvalidValue(field string, value interface{}, reason string) error {
	return fmt.Errorf("invalid %s '%v': %s: %w", field, value, reason, ErrInvalidConfig)
}

// ============================================================================
// Validation Errors Collection
// ============================================================================

// ValidationErrors collects multiple validation errors.
type ValidationErrors struct {
	Errors []error
}

// NewValidationErrors creates a new ValidationErrors collector.
func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{}
}

// Add adds an error to the collection.
func (v *ValidationErrors) Add(err error) {
	if err != nil {
		v.Errors = append(v.Errors, err)
	}
}

// AddField adds a field validation error.
func (v *ValidationErrors) AddField(field, reason string) {
	v.Errors = append(v.Errors, NewValidation(field, reason))
}

// AddMissing adds a missing field error.
func (v *ValidationErrors) AddMissing(field string) {
	v.Errors = append(v.Errors, NewMissingField(field))
}

// HasErrors returns true if there are any errors.
func (v *ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
}

// Error implements the error interface.
func (v *ValidationErrors) Error() string {
	if len(v.Errors) == 0 {
		return ""
	}
	if len(v.Errors) == 1 {
		return v.Errors[0].Error()
	}

	msg := fmt.Sprintf("validation failed with %d errors:", len(v.Errors))
	for _, err := range v.Errors {
		msg += "\n  - " + err.Error()
	}
	return msg
}

// Err returns nil if no errors, otherwise returns the ValidationErrors.
func (v *ValidationErrors) Err() error {
	if len(v.Errors) == 0 {
		return nil
	}
	return v
}

// Unwrap returns the collected errors for errors.Is/As support.
func (v *ValidationErrors) Unwrap() []error {
	return v.Errors
}
