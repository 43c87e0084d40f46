package errors

import (
	stderrors "errors"
	"fmt"
)

// Category represents the type of error.
type Category string

const (
	CategoryProtocol   Category = "protocol"
	CategoryRegistry   Category = "registry"
	CategoryConnection Category = "connection"
	CategoryExec       Category = "exec"
	CategoryNavigation Category = "navigation"
	CategoryDrift      Category = "drift"
	CategoryConfig     Category = "config"
)

// SyncError is a structured error with a stable code, detail and suggestion.
type SyncError struct {
	// Code is a unique error identifier (e.g., "E201").
	Code string

	// Category is the error type (protocol, registry, etc.).
	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation of the error.
	Detail string

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// Attrs carries structured key/value context (uid, opcode, ...).
	Attrs map[string]any

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *SyncError) Error() string {
	msg := e.Message
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Code != "" {
		msg = e.Code + ": " + msg
	}
	if e.Wrapped != nil {
		msg += ": " + e.Wrapped.Error()
	}
	return msg
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *SyncError) Unwrap() error {
	return e.Wrapped
}

// Is reports whether target is a *SyncError with the same code.
func (e *SyncError) Is(target error) bool {
	t, ok := target.(*SyncError)
	if !ok || t.Code == "" {
		return false
	}
	return t.Code == e.Code
}

// WithSuggestion adds a fix suggestion to the error.
func (e *SyncError) WithSuggestion(s string) *SyncError {
	e.Suggestion = s
	return e
}

// WithDetail adds a detailed explanation to the error.
func (e *SyncError) WithDetail(d string) *SyncError {
	e.Detail = d
	return e
}

// WithDetailf adds a formatted detail to the error.
func (e *SyncError) WithDetailf(format string, args ...any) *SyncError {
	e.Detail = fmt.Sprintf(format, args...)
	return e
}

// With attaches a structured attribute.
func (e *SyncError) With(key string, value any) *SyncError {
	if e.Attrs == nil {
		e.Attrs = make(map[string]any, 2)
	}
	e.Attrs[key] = value
	return e
}

// Wrap wraps another error.
func (e *SyncError) Wrap(err error) *SyncError {
	e.Wrapped = err
	return e
}

// LogAttrs flattens the error into slog-style key/value pairs.
func (e *SyncError) LogAttrs() []any {
	out := make([]any, 0, 4+2*len(e.Attrs))
	out = append(out, "code", e.Code, "category", string(e.Category))
	for k, v := range e.Attrs {
		out = append(out, k, v)
	}
	return out
}

// New creates a SyncError from a registered error code.
func New(code string) *SyncError {
	template, ok := registry[code]
	if !ok {
		return &SyncError{
			Code:    code,
			Message: "Unknown error",
		}
	}
	return &SyncError{
		Code:     code,
		Category: template.Category,
		Message:  template.Message,
	}
}

// Newf creates a new SyncError with a formatted message (no code).
func Newf(category Category, format string, args ...any) *SyncError {
	return &SyncError{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError wraps a standard error in a SyncError.
func FromError(err error, code string) *SyncError {
	if err == nil {
		return nil
	}
	var se *SyncError
	if stderrors.As(err, &se) {
		return se
	}
	return New(code).Wrap(err)
}

// Is is errors.Is re-exported so callers need a single import.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As is errors.As re-exported so callers need a single import.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}
