package unit

import (
	"fmt"

	"github.com/reglet-dev/reglet-compose/domain/errors"
	"github.com/reglet-dev/reglet-compose/hook"
	"github.com/reglet-dev/reglet-compose/internal/weakref"
)

// State is a unit's lifecycle stage.
type State int

const (
	StatePrototype State = iota
	StateBound
	StateChecked
	StateActive
	StateDisabled
)

func (s State) String() string {
	switch s {
	case StateBound:
		return "bound"
	case StateChecked:
		return "checked"
	case StateActive:
		return "active"
	case StateDisabled:
		return "disabled"
	default:
		return "prototype"
	}
}

// Unit is implemented by every type embedding Base.
type Unit interface {
	unitBase() *Base
}

// Base carries the binding state of a unit. The zero value is a prototype.
type Base struct {
	name     string
	spec     Spec
	parent   weakref.Ref
	hooks    *hook.Table
	bound    bool
	disabled bool
	active   bool
}

func (b *Base) unitBase() *Base { return b }

// Name returns the unit name assigned at bind time.
func (b *Base) Name() string {
	return b.name
}

// Hooks returns the unit's hook table. Prototypes have none.
func (b *Base) Hooks() *hook.Table {
	return b.hooks
}

// Bound reports whether the unit is a bound copy.
func (b *Base) Bound() bool {
	return b.bound
}

// Parent returns the host the unit is bound to.
func (b *Base) Parent() (any, error) {
	if !b.parent.Bound() {
		return nil, &errors.UnboundError{Unit: b.name}
	}
	v, ok := b.parent.Value()
	if !ok {
		return nil, &errors.ParentGoneError{Unit: b.name}
	}
	return v, nil
}

// State returns the lifecycle stage.
func (b *Base) State() State {
	switch {
	case !b.bound:
		return StatePrototype
	case b.hooks == nil || !b.hooks.Checked():
		return StateBound
	case b.disabled:
		return StateDisabled
	case b.active:
		return StateActive
	default:
		return StateChecked
	}
}

// ParentAs returns u's host asserted to P.
func ParentAs[P any](u Unit) (P, error) {
	var zero P
	v, err := u.unitBase().Parent()
	if err != nil {
		return zero, err
	}
	p, ok := v.(P)
	if !ok {
		return zero, fmt.Errorf("unit %q: parent is %T, not %T", u.unitBase().name, v, zero)
	}
	return p, nil
}

// NameOf returns the bound name of u.
func NameOf(u Unit) string {
	return u.unitBase().name
}

// HooksOf returns the hook table of u.
func HooksOf(u Unit) *hook.Table {
	return u.unitBase().hooks
}

// DeclaredSpec returns the spec u was bound with.
func DeclaredSpec(u Unit) Spec {
	return u.unitBase().spec
}

// IsEnabled reports whether u takes part in dispatch.
func IsEnabled(u Unit) bool {
	return !u.unitBase().disabled
}

// SetEnabled toggles u.
func SetEnabled(u Unit, enabled bool) {
	u.unitBase().disabled = !enabled
}
