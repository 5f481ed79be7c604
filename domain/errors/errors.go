// Package errors provides the error taxonomy of the composition engine.
// All error types support error unwrapping via errors.As() and errors.Is().
package errors

import (
	stdErrors "errors"
	"fmt"

	"github.com/reglet-dev/reglet-compose/domain/entities"
)

// ErrorDetail is an alias to entities.ErrorDetail for convenience.
type ErrorDetail = entities.ErrorDetail

// DetailedError is an interface for custom error types that can convert themselves
// to a structured ErrorDetail. New error types only need to implement this
// interface without modifying ToErrorDetail.
type DetailedError interface {
	error
	ToErrorDetail() *entities.ErrorDetail
}

// ToErrorDetail converts a Go error to our structured ErrorDetail.
// The first DetailedError in the chain categorizes it; the message is always
// the full text of err, so wrapping context is kept.
func ToErrorDetail(err error) *entities.ErrorDetail {
	if err == nil {
		return nil
	}

	var e *entities.ErrorDetail
	if stdErrors.As(err, &e) {
		return e
	}

	var de DetailedError
	if stdErrors.As(err, &de) {
		detail := de.ToErrorDetail()
		detail.Message = err.Error()
		return detail
	}

	// Generic error (including errors returned by hooks) - categorize as internal
	return entities.NewErrorDetail("internal", err.Error())
}

// UnboundError is returned when a unit prototype is asked for its parent.
// Prototypes are never bound and never executed.
type UnboundError struct {
	Unit string
}

func (e *UnboundError) Error() string {
	return fmt.Sprintf("unit %q is not bound to a parent", e.Unit)
}

// ToErrorDetail implements DetailedError.
func (e *UnboundError) ToErrorDetail() *entities.ErrorDetail {
	return entities.NewErrorDetail("unbound", e.Error()).WithCode(e.Unit)
}

// ParentGoneError is returned when a bound unit outlives its host.
type ParentGoneError struct {
	Unit string
}

func (e *ParentGoneError) Error() string {
	return fmt.Sprintf("parent of unit %q no longer exists", e.Unit)
}

// ToErrorDetail implements DetailedError.
func (e *ParentGoneError) ToErrorDetail() *entities.ErrorDetail {
	return entities.NewErrorDetail("unbound", e.Error()).WithCode(e.Unit).MarkNotFound()
}

// CapabilityError reports that a host does not satisfy the members a unit
// requires. Capability mismatches are always fatal.
type CapabilityError struct {
	Report *entities.MismatchReport
}

func (e *CapabilityError) Error() string {
	if e.Report == nil {
		return "capability check failed"
	}
	return fmt.Sprintf("unit %q requires members missing on %s: %s", e.Report.Unit, e.Report.Host, e.Report)
}

// Unit returns the name of the offending unit.
func (e *CapabilityError) Unit() string {
	if e.Report == nil {
		return ""
	}
	return e.Report.Unit
}

// ToErrorDetail implements DetailedError.
func (e *CapabilityError) ToErrorDetail() *entities.ErrorDetail {
	detail := entities.NewErrorDetail("capability", e.Error()).WithCode(e.Unit())
	if e.Report != nil {
		detail.WithDetail("host", e.Report.Host).WithDetail("members", e.Report.Members())
	}
	return detail
}

// EventTypeError reports a hook registered for an event type that its
// owner never declared.
type EventTypeError struct {
	Owner string
	Type  entities.EventType
	Hook  string
}

func (e *EventTypeError) Error() string {
	if e.Hook != "" {
		return fmt.Sprintf("unregistered hook type %q in %s (hook %s)", e.Type, e.Owner, e.Hook)
	}
	return fmt.Sprintf("unregistered hook type %q in %s", e.Type, e.Owner)
}

// ToErrorDetail implements DetailedError.
func (e *EventTypeError) ToErrorDetail() *entities.ErrorDetail {
	return entities.NewErrorDetail("hook_type", e.Error()).WithCode(string(e.Type))
}

// LookupError is returned when a manager has no unit for a name or index.
type LookupError struct {
	Manager string
	Key     string
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("%s: no unit %s", e.Manager, e.Key)
}

// ToErrorDetail implements DetailedError.
func (e *LookupError) ToErrorDetail() *entities.ErrorDetail {
	return entities.NewErrorDetail("lookup", e.Error()).WithCode(e.Key).MarkNotFound()
}

// DeclarationError reports a malformed unit or hook declaration, such as a
// hook marker pointing at a missing method or an invalid index filter.
type DeclarationError struct {
	Err   error
	Unit  string
	Field string
}

func (e *DeclarationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid declaration %s.%s: %v", e.Unit, e.Field, e.Err)
	}
	return fmt.Sprintf("invalid declaration %s: %v", e.Unit, e.Err)
}

func (e *DeclarationError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *DeclarationError) ToErrorDetail() *entities.ErrorDetail {
	detail := entities.NewErrorDetail("declaration", e.Error()).WithCode(e.Unit)
	if e.Field != "" {
		detail.WithDetail("field", e.Field)
	}
	return detail
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Err   error
	Field string
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config validation failed for field '%s': %v", e.Field, e.Err)
	}
	return fmt.Sprintf("config validation failed: %v", e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *ConfigError) ToErrorDetail() *entities.ErrorDetail {
	return entities.NewErrorDetail("config", e.Error()).WithCode(e.Field)
}
