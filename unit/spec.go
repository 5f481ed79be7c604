package unit

import (
	"context"
	"reflect"
	"strings"

	"github.com/reglet-dev/reglet-compose/capability"
	"github.com/reglet-dev/reglet-compose/domain/entities"
)

// Spec is the static declaration of a unit type.
type Spec struct {
	// Name identifies the unit for lookups and diagnostics. Defaults to the
	// lower-cased type name.
	Name string

	// HookTypes are the event types the unit declares. Hooks of other types
	// are subject to the check policy.
	HookTypes []entities.EventType

	// Requires lists the host members the unit depends on.
	Requires capability.Protocol

	// Policy overrides the host's check policy for this unit when set.
	Policy entities.CheckPolicy
}

// Types returns the declared hook types as a set.
func (s Spec) Types() entities.EventSet {
	return entities.NewEventSet(s.HookTypes...)
}

// Declarer is implemented by unit types that declare a Spec.
type Declarer interface {
	Declare() Spec
}

// Closer is implemented by units holding resources released when their host
// closes.
type Closer interface {
	Close(ctx context.Context) error
}

// SpecOf returns the declared spec of u with its name filled in.
func SpecOf(u any) Spec {
	var s Spec
	if d, ok := u.(Declarer); ok {
		s = d.Declare()
	}
	if s.Name == "" {
		s.Name = typeName(u)
	}
	return s
}

func typeName(v any) string {
	t := reflect.TypeOf(v)
	if t == nil {
		return ""
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return strings.ToLower(t.Name())
}
