package unit

import (
	"context"
	stdErrors "errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/reglet-dev/reglet-compose/capability"
	"github.com/reglet-dev/reglet-compose/domain/entities"
	"github.com/reglet-dev/reglet-compose/domain/errors"
	"github.com/reglet-dev/reglet-compose/hook"
)

// Group is the ordered collection of bound units behind the mixin and
// plugin managers.
type Group[U Unit] struct {
	kind  string
	units []U
}

// NewGroup creates an empty group. kind names the group in lookup errors.
func NewGroup[U Unit](kind string) *Group[U] {
	return &Group[U]{kind: kind}
}

// Add appends a bound unit.
func (g *Group[U]) Add(u U) {
	g.units = append(g.units, u)
}

// Run dispatches inv to every unit's hook table in order, skipping units
// for which skip returns true. The first hook error aborts the run.
func (g *Group[U]) Run(ctx context.Context, inv *hook.Invocation, skip func(U) bool) error {
	for _, u := range g.units {
		if skip != nil && skip(u) {
			continue
		}
		if err := u.unitBase().hooks.RunInvocation(ctx, inv); err != nil {
			return err
		}
	}
	return nil
}

// Check validates each unit's hook types against types(u) under the
// unit's policy, then verifies the unit's requirements against its host.
// Capability mismatches are always returned as *errors.CapabilityError.
func (g *Group[U]) Check(checker *capability.Checker, types func(U) entities.EventSet) error {
	for _, u := range g.units {
		b := u.unitBase()
		if err := b.hooks.Check(types(u)); err != nil {
			return err
		}

		host, err := b.Parent()
		if err != nil {
			return err
		}
		if report := checker.Verify(b.name, host, b.spec.Requires); !report.OK() {
			return &errors.CapabilityError{Report: report}
		}
		b.active = true
	}
	return nil
}

// Get returns the first unit whose name matches name case-insensitively.
func (g *Group[U]) Get(name string) (U, error) {
	for _, u := range g.units {
		if strings.EqualFold(u.unitBase().name, name) {
			return u, nil
		}
	}
	var zero U
	return zero, &errors.LookupError{Manager: g.kind, Key: strconv.Quote(name)}
}

// At returns the i-th unit.
func (g *Group[U]) At(i int) (U, error) {
	if i < 0 || i >= len(g.units) {
		var zero U
		return zero, &errors.LookupError{Manager: g.kind, Key: fmt.Sprintf("at index %d", i)}
	}
	return g.units[i], nil
}

// Len returns the number of units.
func (g *Group[U]) Len() int {
	return len(g.units)
}

// All returns the units in dispatch order.
func (g *Group[U]) All() []U {
	return append([]U(nil), g.units...)
}

// Types returns the union of the units' declared hook types.
func (g *Group[U]) Types() entities.EventSet {
	out := entities.NewEventSet()
	for _, u := range g.units {
		out.Add(u.unitBase().spec.HookTypes...)
	}
	return out
}

// Protocol returns the merged requirements of every unit.
func (g *Group[U]) Protocol() capability.Protocol {
	var p capability.Protocol
	for _, u := range g.units {
		p = p.Merge(u.unitBase().spec.Requires)
	}
	return p
}

// Close releases resources of units implementing Closer, in reverse order.
func (g *Group[U]) Close(ctx context.Context) error {
	var errs []error
	for i := len(g.units) - 1; i >= 0; i-- {
		if c, ok := any(g.units[i]).(Closer); ok {
			if err := c.Close(ctx); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", g.units[i].unitBase().name, err))
			}
		}
	}
	return stdErrors.Join(errs...)
}
