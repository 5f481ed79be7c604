package unit

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"unsafe"

	"github.com/huandu/go-clone"
	"github.com/jinzhu/copier"

	"github.com/reglet-dev/reglet-compose/domain/entities"
	"github.com/reglet-dev/reglet-compose/domain/errors"
	"github.com/reglet-dev/reglet-compose/hook"
	"github.com/reglet-dev/reglet-compose/internal/weakref"
)

// BindOption configures Bind.
type BindOption func(*bindConfig)

type bindConfig struct {
	policy     entities.CheckPolicy
	logger     *slog.Logger
	middleware []hook.Middleware
}

// WithPolicy sets the check policy of the bound unit's hook table. A policy
// declared in the unit's Spec takes precedence.
func WithPolicy(p entities.CheckPolicy) BindOption {
	return func(c *bindConfig) {
		c.policy = p
	}
}

// WithLogger sets the logger of the bound unit's hook table.
func WithLogger(l *slog.Logger) BindOption {
	return func(c *bindConfig) {
		c.logger = l
	}
}

// WithMiddleware wraps every hook of the bound unit.
func WithMiddleware(mw ...hook.Middleware) BindOption {
	return func(c *bindConfig) {
		c.middleware = append(c.middleware, mw...)
	}
}

// Bind creates an independent copy of proto attached to parent.
//
// The copy is a new value of proto's concrete type, allocated without
// running any constructor. All state is deep copied: exported fields by
// copier, unexported fields by go-clone. Fields tagged `copier:"-"` are
// copied shallowly and stay shared with the prototype. The copy gets a
// fresh hook table holding the hooks declared on it, so every hook acts on
// the copy and never on the prototype.
func Bind[U Unit](ctx context.Context, proto U, parent weakref.Ref, opts ...BindOption) (U, error) {
	var zero U
	cfg := bindConfig{policy: entities.DefaultCheckPolicy, logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	src := reflect.ValueOf(proto)
	if !src.IsValid() || src.Kind() != reflect.Pointer || src.IsNil() || src.Elem().Kind() != reflect.Struct {
		return zero, &errors.DeclarationError{Unit: typeName(proto), Err: fmt.Errorf("unit must be a non-nil pointer to struct, got %T", proto)}
	}
	spec := SpecOf(proto)

	dst := reflect.New(src.Elem().Type())
	copyFields(dst.Elem(), src.Elem())
	if err := copier.CopyWithOption(dst.Interface(), src.Interface(), copier.Option{DeepCopy: true}); err != nil {
		return zero, &errors.DeclarationError{Unit: spec.Name, Err: fmt.Errorf("copy state: %w", err)}
	}

	clone, ok := dst.Interface().(U)
	if !ok {
		return zero, &errors.DeclarationError{Unit: spec.Name, Err: fmt.Errorf("copy of %T does not implement %T", proto, zero)}
	}

	declared := spec.Types()
	b := clone.unitBase()
	*b = Base{
		name:   spec.Name,
		spec:   spec,
		parent: parent,
		bound:  true,
		hooks: hook.NewTable(spec.Name,
			hook.WithPolicy(spec.Policy.Or(cfg.policy)),
			hook.WithLogger(cfg.logger),
			hook.WithMiddleware(cfg.middleware...),
			hook.WithDeclaredTypes(func() entities.EventSet { return declared }),
		),
	}

	if err := hook.Discover(b.hooks, clone); err != nil {
		return zero, err
	}
	if d, ok := any(clone).(hook.Declarer); ok {
		if err := d.DeclareHooks(ctx, b.hooks); err != nil {
			return zero, fmt.Errorf("unit %s: declare hooks: %w", spec.Name, err)
		}
	}

	cfg.logger.Debug("unit bound",
		slog.String("unit", spec.Name),
		slog.String("parent", parent.Kind()),
		slog.Int("hooks", b.hooks.Len()))
	return clone, nil
}

var baseType = reflect.TypeOf(Base{})

// copyFields copies the fields copier cannot rebuild: shared fields tagged
// `copier:"-"` and unexported state, which is deep cloned. The embedded Base
// is skipped because Bind resets it.
func copyFields(dst, src reflect.Value) {
	t := src.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Type == baseType || f.Name == "_" {
			continue
		}
		sv, dv := src.Field(i), dst.Field(i)
		if f.Anonymous && f.Type.Kind() == reflect.Struct {
			copyFields(dv, sv)
			continue
		}
		if sv.IsZero() {
			continue
		}
		switch {
		case f.Tag.Get("copier") == "-":
			settable(dv).Set(settable(sv))
		case !f.IsExported():
			settable(dv).Set(reflect.ValueOf(clone.Clone(settable(sv).Interface())))
		}
	}
}

// settable returns an addressable field usable regardless of export.
func settable(v reflect.Value) reflect.Value {
	return reflect.NewAt(v.Type(), unsafe.Pointer(v.UnsafeAddr())).Elem() //nolint:gosec // v is a field of an addressable struct
}
