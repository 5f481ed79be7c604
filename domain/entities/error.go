package entities

import "fmt"

// ErrorDetail is the structured form of an engine error. The CLI renders it
// when a command fails, as JSON or as text.
// Types: "unbound", "capability", "hook_type", "lookup", "declaration", "config", "internal"
type ErrorDetail struct {
	// Type categorizes the error.
	Type string `json:"type"`

	// Code names the unit, hook type, key or field the error is about.
	Code string `json:"code,omitempty"`

	// Message is the full error text.
	Message string `json:"message"`

	// Details carries extra context, such as the members a host lacks.
	Details map[string]any `json:"details,omitempty"`

	// NotFound marks lookups of units or hosts that do not exist.
	NotFound bool `json:"not_found,omitempty"`
}

// NewErrorDetail creates an ErrorDetail of the given type.
func NewErrorDetail(errorType, message string) *ErrorDetail {
	return &ErrorDetail{Type: errorType, Message: message}
}

// Error implements the error interface.
func (e *ErrorDetail) Error() string {
	if e == nil {
		return ""
	}
	if e.Type == "" || e.Type == "internal" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// WithCode sets the code and returns e.
func (e *ErrorDetail) WithCode(code string) *ErrorDetail {
	e.Code = code
	return e
}

// WithDetail adds one entry to Details and returns e.
func (e *ErrorDetail) WithDetail(key string, value any) *ErrorDetail {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// MarkNotFound sets NotFound and returns e.
func (e *ErrorDetail) MarkNotFound() *ErrorDetail {
	e.NotFound = true
	return e
}
