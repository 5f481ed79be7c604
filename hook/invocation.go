package hook

import (
	"fmt"

	"github.com/reglet-dev/reglet-compose/domain/entities"
)

// Invocation carries the event a hook is fired for and the payload passed
// by the caller of the run.
type Invocation struct {
	Type     entities.EventType
	Index    int
	HasIndex bool
	Args     []any
	Kwargs   map[string]any
}

// Arg returns the i-th positional argument.
func (inv *Invocation) Arg(i int) (any, bool) {
	if i < 0 || i >= len(inv.Args) {
		return nil, false
	}
	return inv.Args[i], true
}

// Kwarg returns a keyword argument.
func (inv *Invocation) Kwarg(name string) (any, bool) {
	v, ok := inv.Kwargs[name]
	return v, ok
}

// Query returns the dispatch query described by the invocation.
func (inv *Invocation) Query() Query {
	return Query{Type: inv.Type, Index: inv.Index, HasIndex: inv.HasIndex}
}

// ArgAs returns the i-th positional argument asserted to T.
func ArgAs[T any](inv *Invocation, i int) (T, error) {
	var zero T
	v, ok := inv.Arg(i)
	if !ok {
		return zero, fmt.Errorf("hook %s: missing argument %d", inv.Type, i)
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("hook %s: argument %d is %T, want %T", inv.Type, i, v, zero)
	}
	return t, nil
}

// RunOption configures a run.
type RunOption func(*Invocation)

// OfType restricts a run to one event type.
func OfType(t entities.EventType) RunOption {
	return func(inv *Invocation) {
		inv.Type = t
	}
}

// AtIndex restricts a run to hooks whose filter accepts i.
func AtIndex(i int) RunOption {
	return func(inv *Invocation) {
		inv.Index = i
		inv.HasIndex = true
	}
}

// WithArgs appends positional arguments passed to every fired hook.
func WithArgs(args ...any) RunOption {
	return func(inv *Invocation) {
		inv.Args = append(inv.Args, args...)
	}
}

// WithKwarg sets a keyword argument passed to every fired hook.
func WithKwarg(name string, v any) RunOption {
	return func(inv *Invocation) {
		if inv.Kwargs == nil {
			inv.Kwargs = make(map[string]any)
		}
		inv.Kwargs[name] = v
	}
}

// WithKwargs sets several keyword arguments.
func WithKwargs(kwargs map[string]any) RunOption {
	return func(inv *Invocation) {
		for k, v := range kwargs {
			WithKwarg(k, v)(inv)
		}
	}
}

// NewInvocation applies opts to an empty invocation.
func NewInvocation(opts ...RunOption) *Invocation {
	inv := &Invocation{}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}
