package hook

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/reglet-dev/reglet-compose/domain/entities"
	"github.com/reglet-dev/reglet-compose/domain/errors"
)

// Table stores hooks grouped by event type, preserving registration order
// within each type and the order in which types first appeared.
type Table struct {
	mu      sync.RWMutex
	owner   string
	cfg     tableConfig
	order   []entities.EventType
	buckets map[entities.EventType][]*Hook
	allowed entities.EventSet
	checked bool
	seq     int
}

// TableOption configures a Table.
type TableOption func(*tableConfig)

type tableConfig struct {
	policy     entities.CheckPolicy
	declared   func() entities.EventSet
	logger     *slog.Logger
	middleware []Middleware
}

func defaultTableConfig() tableConfig {
	return tableConfig{
		policy:   entities.DefaultCheckPolicy,
		declared: func() entities.EventSet { return nil },
		logger:   slog.Default(),
	}
}

// WithPolicy sets the policy applied to undeclared event types.
func WithPolicy(p entities.CheckPolicy) TableOption {
	return func(c *tableConfig) {
		if p.Valid() {
			c.policy = p
		}
	}
}

// WithDeclaredTypes sets the provider of the types Check validates against
// when it is not given an explicit set.
func WithDeclaredTypes(fn func() entities.EventSet) TableOption {
	return func(c *tableConfig) {
		if fn != nil {
			c.declared = fn
		}
	}
}

// WithLogger sets the logger used by the log policy.
func WithLogger(l *slog.Logger) TableOption {
	return func(c *tableConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMiddleware appends middleware wrapped around every invocation.
func WithMiddleware(mw ...Middleware) TableOption {
	return func(c *tableConfig) {
		c.middleware = append(c.middleware, mw...)
	}
}

// NewTable creates an empty table for owner.
func NewTable(owner string, opts ...TableOption) *Table {
	cfg := defaultTableConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Table{
		owner:   owner,
		cfg:     cfg,
		buckets: make(map[entities.EventType][]*Hook),
	}
}

// Owner returns the name the table reports in errors and logs.
func (t *Table) Owner() string {
	return t.owner
}

// Policy returns the table's check policy.
func (t *Table) Policy() entities.CheckPolicy {
	return t.cfg.policy
}

// Register adds h to the table. A filter with an invalid range is
// rejected with a DeclarationError. Once the table has been checked,
// registering a type outside the checked set is subject to the policy; with
// the raise policy the hook is rejected.
func (t *Table) Register(h *Hook) error {
	if h == nil {
		return fmt.Errorf("%s: nil hook", t.owner)
	}
	if err := h.Filter.Validate(); err != nil {
		return &errors.DeclarationError{Unit: t.owner, Field: string(h.Type), Err: err}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.checked && !t.allowed.Has(h.Type) {
		if err := t.enforce(h); err != nil {
			return err
		}
	}

	t.seq++
	if h.Name == "" {
		h.Name = fmt.Sprintf("%s#%d", h.Type, t.seq)
	}
	if _, ok := t.buckets[h.Type]; !ok {
		t.order = append(t.order, h.Type)
	}
	t.buckets[h.Type] = append(t.buckets[h.Type], h)
	return nil
}

// Declare starts a runtime hook declaration for typ.
func (t *Table) Declare(typ entities.EventType, ranges ...entities.IndexRange) *Declaration {
	return &Declaration{table: t, typ: typ, filter: append(entities.IndexFilter(nil), ranges...)}
}

// Run invokes every enabled hook matching the run options, in order. With
// no type, all types are dispatched in the order they were first
// registered. The first hook error aborts the run and is returned as is.
func (t *Table) Run(ctx context.Context, opts ...RunOption) error {
	return t.RunInvocation(ctx, NewInvocation(opts...))
}

// RunInvocation is Run with a prepared invocation.
func (t *Table) RunInvocation(ctx context.Context, inv *Invocation) error {
	q := inv.Query()
	for _, h := range t.snapshot(q) {
		call := *inv
		call.Type = h.Type
		if err := h.Invoke(ctx, &call, t.cfg.middleware...); err != nil {
			return err
		}
	}
	return nil
}

func (t *Table) snapshot(q Query) []*Hook {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []*Hook
	collect := func(bucket []*Hook) {
		for _, h := range bucket {
			if h.Fires(q) {
				out = append(out, h)
			}
		}
	}
	if q.Type != "" {
		collect(t.buckets[q.Type])
		return out
	}
	for _, typ := range t.order {
		collect(t.buckets[typ])
	}
	return out
}

// Check validates every registered hook's type against types, or against
// the declared types when types is nil, and marks the table as checked.
func (t *Table) Check(types entities.EventSet) error {
	if types == nil {
		types = t.cfg.declared()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.checked = true
	t.allowed = types.Union()

	if t.cfg.policy == entities.PolicyIgnore {
		return nil
	}
	for _, typ := range t.order {
		if types.Has(typ) {
			continue
		}
		for _, h := range t.buckets[typ] {
			if err := t.enforce(h); err != nil {
				return err
			}
		}
	}
	return nil
}

// enforce applies the policy to a hook of an undeclared type.
func (t *Table) enforce(h *Hook) error {
	switch t.cfg.policy {
	case entities.PolicyIgnore:
		return nil
	case entities.PolicyLog:
		t.cfg.logger.Error("unregistered hook type",
			slog.String("owner", t.owner),
			slog.String("type", string(h.Type)),
			slog.String("hook", h.Name))
		return nil
	default:
		return &errors.EventTypeError{Owner: t.owner, Type: h.Type, Hook: h.Name}
	}
}

// Checked reports whether Check has run.
func (t *Table) Checked() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.checked
}

// Hook returns the first hook with the given name.
func (t *Table) Hook(name string) (*Hook, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, typ := range t.order {
		for _, h := range t.buckets[typ] {
			if h.Name == name {
				return h, true
			}
		}
	}
	return nil, false
}

// Hooks returns the hooks registered for typ, or every hook when typ is
// empty.
func (t *Table) Hooks(typ entities.EventType) []*Hook {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if typ != "" {
		return append([]*Hook(nil), t.buckets[typ]...)
	}
	var out []*Hook
	for _, et := range t.order {
		out = append(out, t.buckets[et]...)
	}
	return out
}

// Types returns the event types that have at least one hook.
func (t *Table) Types() entities.EventSet {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return entities.NewEventSet(t.order...)
}

// Len returns the number of registered hooks.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, b := range t.buckets {
		n += len(b)
	}
	return n
}

// Declaration builds a hook registered at runtime.
type Declaration struct {
	table  *Table
	typ    entities.EventType
	filter entities.IndexFilter
	name   string
}

// Index refines the declaration. Every call adds ranges to the filter; the
// implicit "every index" default only applies while no range was given.
func (d *Declaration) Index(ranges ...entities.IndexRange) *Declaration {
	d.filter = append(d.filter, ranges...)
	return d
}

// Named sets the hook name.
func (d *Declaration) Named(name string) *Declaration {
	d.name = name
	return d
}

// Do registers fn.
func (d *Declaration) Do(fn Func) (*Hook, error) {
	h := &Hook{Type: d.typ, Filter: d.filter, Name: d.name, fn: fn}
	if err := d.table.Register(h); err != nil {
		return nil, err
	}
	return h, nil
}

// Call registers any supported function shape, see Wrap.
func (d *Declaration) Call(fn any) (*Hook, error) {
	wrapped, err := Wrap(fn)
	if err != nil {
		return nil, &errors.DeclarationError{Unit: d.table.owner, Field: string(d.typ), Err: err}
	}
	return d.Do(wrapped)
}
