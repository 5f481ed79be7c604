// Package plugin implements optional units that observe and augment a host.
// Plugins are collected along the host's class chain, most-base first, and
// can be disabled individually.
package plugin

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/reglet-dev/reglet-compose/capability"
	"github.com/reglet-dev/reglet-compose/domain/entities"
	"github.com/reglet-dev/reglet-compose/hook"
	"github.com/reglet-dev/reglet-compose/internal/weakref"
	"github.com/reglet-dev/reglet-compose/unit"
)

// Plugin is implemented by types embedding Base.
type Plugin interface {
	unit.Unit
	Enabled() bool
	SetEnabled(enabled bool)
}

// Base is embedded by plugin types.
type Base struct {
	unit.Base
}

// Enabled reports whether the plugin takes part in dispatch.
func (b *Base) Enabled() bool {
	return unit.IsEnabled(&b.Base)
}

// SetEnabled enables or disables the plugin. Disabled plugins are skipped
// entirely by the manager.
func (b *Base) SetEnabled(enabled bool) {
	unit.SetEnabled(&b.Base, enabled)
}

// Manager binds and dispatches the plugins of one host.
type Manager struct {
	group     *unit.Group[Plugin]
	hostTypes func() entities.EventSet
	checker   *capability.Checker
	logger    *slog.Logger
}

// Option configures a Manager.
type Option func(*managerConfig)

type managerConfig struct {
	hostTypes func() entities.EventSet
	checker   *capability.Checker
	logger    *slog.Logger
	bindOpts  []unit.BindOption
}

// WithHostTypes sets the provider of the host's event universe.
func WithHostTypes(fn func() entities.EventSet) Option {
	return func(c *managerConfig) {
		if fn != nil {
			c.hostTypes = fn
		}
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

// NewManager binds the prototypes to parent in the given order.
func NewManager(ctx context.Context, parent weakref.Ref, protos []Plugin, opts ...Option) (*Manager, error) {
	cfg := managerConfig{
		hostTypes: func() entities.EventSet { return entities.NewEventSet() },
		checker:   capability.NewChecker(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	m := &Manager{
		group:     unit.NewGroup[Plugin]("plugins"),
		hostTypes: cfg.hostTypes,
		checker:   cfg.checker,
		logger:    cfg.logger,
	}
	for _, proto := range protos {
		bound, err := unit.Bind(ctx, proto, parent, cfg.bindOpts...)
		if err != nil {
			return nil, fmt.Errorf("bind plugin %s: %w", unit.SpecOf(proto).Name, err)
		}
		m.group.Add(bound)
	}
	return m, nil
}

// Run dispatches to every enabled plugin in order.
func (m *Manager) Run(ctx context.Context, opts ...hook.RunOption) error {
	return m.RunInvocation(ctx, hook.NewInvocation(opts...))
}

// RunInvocation is Run with a prepared invocation.
func (m *Manager) RunInvocation(ctx context.Context, inv *hook.Invocation) error {
	return m.group.Run(ctx, inv, func(p Plugin) bool { return !p.Enabled() })
}

// Check validates each plugin's hooks against types, or against the host
// universe plus the plugin's own declared types when types is nil, then
// verifies each plugin's requirements against the host.
func (m *Manager) Check(types entities.EventSet) error {
	host := m.hostTypes()
	err := m.group.Check(m.checker, func(p Plugin) entities.EventSet {
		if types != nil {
			return types
		}
		return host.Union(unit.DeclaredSpec(p).Types())
	})
	if err != nil {
		return err
	}
	m.logger.Debug("plugins checked", slog.Int("count", m.group.Len()))
	return nil
}

// Get returns the first plugin whose name matches case-insensitively.
func (m *Manager) Get(name string) (Plugin, error) {
	return m.group.Get(name)
}

// At returns the i-th plugin.
func (m *Manager) At(i int) (Plugin, error) {
	return m.group.At(i)
}

// Len returns the number of plugins.
func (m *Manager) Len() int {
	return m.group.Len()
}

// All returns the plugins in dispatch order.
func (m *Manager) All() []Plugin {
	return m.group.All()
}

// Enabled returns the plugins currently enabled.
func (m *Manager) Enabled() []Plugin {
	var out []Plugin
	for _, p := range m.group.All() {
		if p.Enabled() {
			out = append(out, p)
		}
	}
	return out
}

// Protocol returns the merged requirements of every plugin.
func (m *Manager) Protocol() capability.Protocol {
	return m.group.Protocol()
}

// Close releases plugin resources.
func (m *Manager) Close(ctx context.Context) error {
	return m.group.Close(ctx)
}

// Find returns the plugin named name from m asserted to P.
func Find[P Plugin](m *Manager, name string) (P, error) {
	var zero P
	p, err := m.Get(name)
	if err != nil {
		return zero, err
	}
	typed, ok := p.(P)
	if !ok {
		return zero, fmt.Errorf("plugin %q is %T, not %T", name, p, zero)
	}
	return typed, nil
}
