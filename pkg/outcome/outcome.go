// Package outcome defines the result and error taxonomy shared by the
// location and meetup services: success/warning results for state changes
// and business-rule no-ops, plus not-found, validation and conflict errors.
package outcome

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Level classifies a human-readable status message
type Level string

const (
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
)

// Result is returned by operations that completed without error. A warning
// result with Changed=false is a business-rule no-op.
type Result struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
	Changed bool   `json:"changed"`
}

// Success builds a result for an operation that changed state
func Success(format string, args ...interface{}) *Result {
	return &Result{Level: LevelSuccess, Message: fmt.Sprintf(format, args...), Changed: true}
}

// Warning builds a result for an operation that left state untouched
func Warning(format string, args ...interface{}) *Result {
	return &Result{Level: LevelWarning, Message: fmt.Sprintf(format, args...), Changed: false}
}

// IsNoOp reports whether the result is a business-rule no-op
func (r *Result) IsNoOp() bool {
	return r != nil && !r.Changed
}

var (
	// ErrNotFound is matched by every *NotFoundError
	ErrNotFound = errors.New("not found")

	// ErrConflict reports a uniqueness violation (duplicate name or slug)
	ErrConflict = errors.New("conflict")

	// ErrValidation is matched by every *ValidationError
	ErrValidation = errors.New("validation failed")
)

// NotFoundError reports a referenced entity that does not exist
type NotFoundError struct {
	Resource string
	Key      string
}

// NotFound creates a NotFoundError for the resource identified by key
func NotFound(resource, key string) *NotFoundError {
	return &NotFoundError{Resource: resource, Key: key}
}

func (e *NotFoundError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	return fmt.Sprintf("%s not found: %s", e.Resource, e.Key)
}

// Is makes errors.Is(err, ErrNotFound) hold for any NotFoundError
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// IsNotFound checks if an error is a not-found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// ValidationError carries field-level validation messages
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError creates an empty validation error
func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string]string)}
}

// Add records a message for a field, keeping the first message per field
func (e *ValidationError) Add(field, message string) {
	if _, exists := e.Fields[field]; !exists {
		e.Fields[field] = message
	}
}

// HasErrors reports whether any field failed validation
func (e *ValidationError) HasErrors() bool {
	return len(e.Fields) > 0
}

// OrNil returns the error when it has fields, nil otherwise
func (e *ValidationError) OrNil() error {
	if e.HasErrors() {
		return e
	}
	return nil
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Is makes errors.Is(err, ErrValidation) hold for any ValidationError
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// AsValidationError extracts a ValidationError from an error chain
func AsValidationError(err error) (*ValidationError, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}
