package hook

import (
	"context"

	"github.com/reglet-dev/reglet-compose/domain/entities"
)

// Func is the normalized hook callable.
type Func func(ctx context.Context, inv *Invocation) error

// Query selects which hooks a run fires. An empty Type matches every type;
// HasIndex false matches every index.
type Query struct {
	Type     entities.EventType
	Index    int
	HasIndex bool
}

// Hook is a callable subscribed to one event type, restricted by an index
// filter. Hooks start enabled.
type Hook struct {
	// Type is the event type the hook subscribes to.
	Type entities.EventType

	// Filter restricts the indices the hook fires for. Empty means all.
	Filter entities.IndexFilter

	// Name identifies the hook for lookups and diagnostics. Tag-declared
	// hooks are named after their method.
	Name string

	fn       Func
	disabled bool
}

// New creates an enabled hook.
func New(typ entities.EventType, fn Func, ranges ...entities.IndexRange) *Hook {
	return &Hook{Type: typ, Filter: entities.IndexFilter(ranges), fn: fn}
}

// Enabled reports whether the hook takes part in runs.
func (h *Hook) Enabled() bool {
	return !h.disabled
}

// SetEnabled toggles the hook.
func (h *Hook) SetEnabled(enabled bool) {
	h.disabled = !enabled
}

// Fires reports whether the hook should run for q.
func (h *Hook) Fires(q Query) bool {
	if h.disabled {
		return false
	}
	if q.Type != "" && q.Type != h.Type {
		return false
	}
	if q.HasIndex && !h.Filter.Accepts(q.Index) {
		return false
	}
	return true
}

// Invoke calls the hook wrapped in mw, regardless of its filter and
// enabled flag.
func (h *Hook) Invoke(ctx context.Context, inv *Invocation, mw ...Middleware) error {
	fn := chain(h.fn, mw)
	if fn == nil {
		return nil
	}
	return fn(ctx, inv)
}

func (h *Hook) String() string {
	return h.Name + "[" + string(h.Type) + " " + h.Filter.String() + "]"
}
