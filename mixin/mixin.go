// Package mixin implements units that extend their host's behavior and
// widen the set of event types the host accepts. Mixins always run; they
// cannot be disabled individually.
package mixin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/reglet-dev/reglet-compose/capability"
	"github.com/reglet-dev/reglet-compose/domain/entities"
	"github.com/reglet-dev/reglet-compose/hook"
	"github.com/reglet-dev/reglet-compose/internal/weakref"
	"github.com/reglet-dev/reglet-compose/unit"
)

// Mixin is implemented by types embedding Base.
type Mixin interface {
	unit.Unit
	isMixin()
}

// Base is embedded by mixin types.
type Base struct {
	unit.Base
}

func (*Base) isMixin() {}

// Slot names the position a mixin prototype occupies in a host class.
// Derived classes replace a base class mixin by reusing its slot name.
type Slot struct {
	Name  string
	Proto Mixin
}

// Manager binds and dispatches the mixins of one host.
type Manager struct {
	group     *unit.Group[Mixin]
	slots     []string
	hostTypes entities.EventSet
	checker   *capability.Checker
	logger    *slog.Logger
}

// Option configures a Manager.
type Option func(*managerConfig)

type managerConfig struct {
	hostTypes entities.EventSet
	checker   *capability.Checker
	logger    *slog.Logger
	bindOpts  []unit.BindOption
}

// WithHostTypes sets the event types declared by the host itself.
func WithHostTypes(types entities.EventSet) Option {
	return func(c *managerConfig) {
		c.hostTypes = types
	}
}

// WithChecker sets the capability checker.
func WithChecker(checker *capability.Checker) Option {
	return func(c *managerConfig) {
		if checker != nil {
			c.checker = checker
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *managerConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithBindOptions forwards options to every unit.Bind call.
func WithBindOptions(opts ...unit.BindOption) Option {
	return func(c *managerConfig) {
		c.bindOpts = append(c.bindOpts, opts...)
	}
}

// NewManager binds every slot's prototype to parent, in slot order.
func NewManager(ctx context.Context, parent weakref.Ref, slots []Slot, opts ...Option) (*Manager, error) {
	cfg := managerConfig{
		hostTypes: entities.NewEventSet(),
		checker:   capability.NewChecker(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	m := &Manager{
		group:     unit.NewGroup[Mixin]("mixins"),
		hostTypes: cfg.hostTypes,
		checker:   cfg.checker,
		logger:    cfg.logger,
	}
	for _, slot := range slots {
		bound, err := unit.Bind(ctx, slot.Proto, parent, cfg.bindOpts...)
		if err != nil {
			return nil, fmt.Errorf("bind mixin %s: %w", slot.Name, err)
		}
		m.group.Add(bound)
		m.slots = append(m.slots, slot.Name)
	}
	return m, nil
}

// Types returns the host's types widened by every mixin's declared types.
func (m *Manager) Types() entities.EventSet {
	return m.hostTypes.Union(m.group.Types())
}

// Run dispatches to every mixin in order.
func (m *Manager) Run(ctx context.Context, opts ...hook.RunOption) error {
	return m.RunInvocation(ctx, hook.NewInvocation(opts...))
}

// RunInvocation is Run with a prepared invocation.
func (m *Manager) RunInvocation(ctx context.Context, inv *hook.Invocation) error {
	return m.group.Run(ctx, inv, nil)
}

// Check validates every mixin's hooks against types, or against the
// widened universe when types is nil, then verifies each mixin's
// requirements against the host.
func (m *Manager) Check(types entities.EventSet) error {
	universe := types
	if universe == nil {
		universe = m.Types()
	}
	if err := m.group.Check(m.checker, func(Mixin) entities.EventSet { return universe }); err != nil {
		return err
	}
	m.logger.Debug("mixins checked", slog.Int("count", m.group.Len()), slog.String("types", universe.String()))
	return nil
}

// Get returns the mixin bound in slot, or the first mixin whose unit name
// matches when no slot has that name.
func (m *Manager) Get(name string) (Mixin, error) {
	for i, slot := range m.slots {
		if slot == name {
			return m.group.At(i)
		}
	}
	return m.group.Get(name)
}

// At returns the i-th mixin.
func (m *Manager) At(i int) (Mixin, error) {
	return m.group.At(i)
}

// Len returns the number of mixins.
func (m *Manager) Len() int {
	return m.group.Len()
}

// All returns the mixins in dispatch order.
func (m *Manager) All() []Mixin {
	return m.group.All()
}

// Slots returns the slot names in dispatch order.
func (m *Manager) Slots() []string {
	return append([]string(nil), m.slots...)
}

// Protocol returns the merged requirements of every mixin.
func (m *Manager) Protocol() capability.Protocol {
	return m.group.Protocol()
}

// Close releases mixin resources.
func (m *Manager) Close(ctx context.Context) error {
	return m.group.Close(ctx)
}

// Inject assigns bound mixins to the fields of host tagged `mixin:"<slot>"`.
// A missing slot is an error unless the tag reads `mixin:"<slot>,optional"`.
// Fields whose type cannot hold the mixin are reported as errors.
func (m *Manager) Inject(host any) error {
	rv := reflect.ValueOf(host)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("inject mixins: host must be a pointer to struct, got %T", host)
	}
	return m.inject(rv.Elem())
}

func (m *Manager) inject(v reflect.Value) error {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Anonymous && f.Type.Kind() == reflect.Struct {
			if err := m.inject(v.Field(i)); err != nil {
				return err
			}
			continue
		}
		tag, ok := f.Tag.Lookup("mixin")
		if !ok {
			continue
		}
		slot, opt, _ := strings.Cut(tag, ",")
		mx, err := m.Get(slot)
		if err != nil {
			if opt == "optional" {
				continue
			}
			return err
		}
		fv := v.Field(i)
		mv := reflect.ValueOf(mx)
		if !fv.CanSet() || !mv.Type().AssignableTo(f.Type) {
			return fmt.Errorf("inject mixins: field %s (%s) cannot hold %T", f.Name, f.Type, mx)
		}
		fv.Set(mv)
	}
	return nil
}
