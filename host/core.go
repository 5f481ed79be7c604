package host

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/reglet-dev/reglet-compose/capability"
	"github.com/reglet-dev/reglet-compose/domain/entities"
	"github.com/reglet-dev/reglet-compose/domain/errors"
	"github.com/reglet-dev/reglet-compose/hook"
	"github.com/reglet-dev/reglet-compose/internal/weakref"
	"github.com/reglet-dev/reglet-compose/mixin"
	"github.com/reglet-dev/reglet-compose/plugin"
	"github.com/reglet-dev/reglet-compose/unit"
)

// Core is the composition state of one host value.
type Core struct {
	class    *Class
	self     weakref.Ref
	cfg      config
	hooks    *hook.Table
	mixins   *mixin.Manager
	plugins  *plugin.Manager
	registry *capability.Registry
	quit     atomic.Bool
}

// Attach builds the Core of self: it discovers the hooks declared on self,
// binds the class chain's mixins and plugins to self and assigns mixins to
// fields tagged `mixin:"<slot>"`. All units are bound when Attach returns.
func Attach[T any](ctx context.Context, self *T, class *Class, opts ...Option) (*Core, error) {
	if self == nil {
		return nil, fmt.Errorf("attach: nil host")
	}
	if class == nil {
		return nil, fmt.Errorf("attach %T: nil class", self)
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	c := &Core{
		class:    class,
		self:     weakref.Make(self),
		cfg:      cfg,
		registry: capability.NewRegistry(capability.WithStrictMode(false)),
	}
	logger := cfg.logger.With(slog.String("host", class.Name))

	c.hooks = hook.NewTable(class.Name,
		hook.WithPolicy(cfg.policy),
		hook.WithLogger(logger),
		hook.WithMiddleware(cfg.middleware...),
		hook.WithDeclaredTypes(c.Types),
	)
	if err := hook.Discover(c.hooks, self); err != nil {
		return nil, err
	}

	bindOpts := []unit.BindOption{
		unit.WithPolicy(cfg.policy),
		unit.WithLogger(logger),
		unit.WithMiddleware(cfg.middleware...),
	}

	var err error
	c.mixins, err = mixin.NewManager(ctx, c.self, class.MixinSlots(),
		mixin.WithHostTypes(class.EventTypes()),
		mixin.WithChecker(cfg.checker),
		mixin.WithLogger(logger),
		mixin.WithBindOptions(bindOpts...),
	)
	if err != nil {
		return nil, err
	}
	if err := c.mixins.Inject(self); err != nil {
		return nil, err
	}

	c.plugins, err = plugin.NewManager(ctx, c.self, class.PluginPrototypes(),
		plugin.WithHostTypes(c.Types),
		plugin.WithChecker(cfg.checker),
		plugin.WithLogger(logger),
		plugin.WithBindOptions(bindOpts...),
	)
	if err != nil {
		return nil, err
	}

	if err := c.registerProtocols(); err != nil {
		return nil, err
	}

	logger.Debug("host attached",
		slog.Int("hooks", c.hooks.Len()),
		slog.Int("mixins", c.mixins.Len()),
		slog.Int("plugins", c.plugins.Len()))
	return c, nil
}

func (c *Core) registerProtocols() error {
	if err := c.registry.Register(c.class.Name, c.class.Protocol()); err != nil {
		return err
	}
	for _, m := range c.mixins.All() {
		if err := c.registry.Register(unit.NameOf(m), unit.DeclaredSpec(m).Requires); err != nil {
			return err
		}
	}
	for _, p := range c.plugins.All() {
		if err := c.registry.Register(unit.NameOf(p), unit.DeclaredSpec(p).Requires); err != nil {
			return err
		}
	}
	return nil
}

// Name returns the class name.
func (c *Core) Name() string {
	return c.class.Name
}

// Class returns the host's class.
func (c *Core) Class() *Class {
	return c.class
}

// Hooks returns the host's own hook table.
func (c *Core) Hooks() *hook.Table {
	return c.hooks
}

// Mixins returns the mixin manager.
func (c *Core) Mixins() *mixin.Manager {
	return c.mixins
}

// Plugins returns the plugin manager.
func (c *Core) Plugins() *plugin.Manager {
	return c.plugins
}

// Registry returns the per-unit requirement registry.
func (c *Core) Registry() *capability.Registry {
	return c.registry
}

// Logger returns the host logger.
func (c *Core) Logger() *slog.Logger {
	return c.cfg.logger
}

// Policy returns the host check policy.
func (c *Core) Policy() entities.CheckPolicy {
	return c.cfg.policy
}

// Types returns the host's event universe: the class chain's types widened
// by every mixin.
func (c *Core) Types() entities.EventSet {
	types := c.class.EventTypes()
	if c.mixins != nil {
		types = c.mixins.Types()
	}
	return types
}

// Protocol returns the requirements of the class and all its units.
func (c *Core) Protocol() capability.Protocol {
	return c.class.Protocol().Merge(c.mixins.Protocol(), c.plugins.Protocol())
}

// RunHook dispatches an event to the host's hooks, then every mixin, then
// every enabled plugin. The first hook error aborts the dispatch.
func (c *Core) RunHook(ctx context.Context, opts ...hook.RunOption) error {
	inv := hook.NewInvocation(opts...)
	if err := c.hooks.RunInvocation(ctx, inv); err != nil {
		return err
	}
	if err := c.mixins.RunInvocation(ctx, inv); err != nil {
		return err
	}
	return c.plugins.RunInvocation(ctx, inv)
}

// Check validates the host's hooks and every unit, then verifies the class
// requirements against the host itself. Event type violations follow the
// check policy; capability mismatches always fail.
func (c *Core) Check() error {
	universe := c.Types()
	if err := c.hooks.Check(universe); err != nil {
		return err
	}
	if err := c.mixins.Check(universe); err != nil {
		return err
	}
	if err := c.plugins.Check(nil); err != nil {
		return err
	}

	self, ok := c.self.Value()
	if !ok {
		return &errors.ParentGoneError{Unit: c.class.Name}
	}
	if report := c.cfg.checker.Verify(c.class.Name, self, c.class.Protocol()); !report.OK() {
		return &errors.CapabilityError{Report: report}
	}
	return nil
}

// Quit requests a cooperative stop. Loops poll Quitting between steps.
func (c *Core) Quit() {
	c.quit.Store(true)
}

// Quitting reports whether a stop was requested.
func (c *Core) Quitting() bool {
	return c.quit.Load()
}

// ResetQuit clears a previous stop request.
func (c *Core) ResetQuit() {
	c.quit.Store(false)
}

// Close releases plugin then mixin resources.
func (c *Core) Close(ctx context.Context) error {
	return stdErrors.Join(c.plugins.Close(ctx), c.mixins.Close(ctx))
}
