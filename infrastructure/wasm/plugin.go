package wasm

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/reglet-dev/reglet-compose/domain/entities"
	"github.com/reglet-dev/reglet-compose/hook"
	"github.com/reglet-dev/reglet-compose/plugin"
	"github.com/reglet-dev/reglet-compose/unit"
)

// NoIndex is passed to hook exports for events fired without an index.
const NoIndex int64 = -1

// HookError reports a non-zero status returned by a guest hook.
type HookError struct {
	Plugin string
	Export string
	Status uint32
}

func (e *HookError) Error() string {
	return fmt.Sprintf("wasm plugin %s: %s returned status %d", e.Plugin, e.Export, e.Status)
}

// PluginOption configures a Plugin prototype.
type PluginOption func(*Plugin)

// WithIndex restricts the hook of the given type to the filter.
func WithIndex(typ entities.EventType, filter entities.IndexFilter) PluginOption {
	return func(p *Plugin) {
		p.filters[typ] = filter
	}
}

// WithName overrides the unit name, which defaults to the module name.
func WithName(name string) PluginOption {
	return func(p *Plugin) {
		p.name = name
	}
}

// Plugin is a plugin prototype backed by a compiled guest module. Each
// bound copy instantiates the module on its own, so guest state is never
// shared between hosts.
type Plugin struct {
	plugin.Base

	module  *Module `copier:"-"`
	name    string
	filters map[entities.EventType]entities.IndexFilter

	mu       sync.Mutex
	instance api.Module
}

// NewPlugin creates a prototype for m.
func NewPlugin(m *Module, opts ...PluginOption) *Plugin {
	p := &Plugin{
		module:  m,
		name:    m.Name(),
		filters: make(map[entities.EventType]entities.IndexFilter),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Declare names the unit after the module and declares one hook type per
// hook export.
func (p *Plugin) Declare() unit.Spec {
	return unit.Spec{Name: p.name, HookTypes: p.module.HookTypes()}
}

// DeclareHooks instantiates the guest for this copy and registers its
// exports.
func (p *Plugin) DeclareHooks(ctx context.Context, t *hook.Table) error {
	p.mu = sync.Mutex{}
	p.instance = nil

	instanceName := fmt.Sprintf("%s-%s", p.name, uuid.NewString())
	mod, err := p.module.runtime.rt.InstantiateModule(ctx, p.module.compiled,
		wazero.NewModuleConfig().WithName(instanceName))
	if err != nil {
		return fmt.Errorf("failed to instantiate %s: %w", p.name, err)
	}
	if init := mod.ExportedFunction("_initialize"); init != nil {
		if _, err := init.Call(ctx); err != nil {
			_ = mod.Close(ctx)
			return fmt.Errorf("failed to call _initialize: %w", err)
		}
	}
	p.instance = mod

	for _, typ := range p.module.HookTypes() {
		export := p.module.exports[typ]
		if _, err := t.Declare(typ, p.filters[typ]...).
			Named(fmt.Sprintf("%s.%s", p.name, export)).
			Do(p.hookFunc(export)); err != nil {
			return err
		}
	}
	return nil
}

func (p *Plugin) hookFunc(export string) hook.Func {
	return func(ctx context.Context, inv *hook.Invocation) error {
		index := NoIndex
		if inv.HasIndex {
			index = int64(inv.Index)
		}
		results, err := p.Call(ctx, export, api.EncodeI64(index))
		if err != nil {
			return err
		}
		if status := api.DecodeU32(results[0]); status != 0 {
			return &HookError{Plugin: p.name, Export: export, Status: status}
		}
		return nil
	}
}

// Call invokes a guest export on this copy's instance.
func (p *Plugin) Call(ctx context.Context, export string, params ...uint64) ([]uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.instance == nil {
		return nil, fmt.Errorf("wasm plugin %s is not instantiated", p.name)
	}
	fn := p.instance.ExportedFunction(export)
	if fn == nil {
		return nil, fmt.Errorf("export %q not found", export)
	}
	results, err := fn.Call(WithPluginName(ctx, p.name), params...)
	if err != nil {
		return nil, fmt.Errorf("wasm plugin %s: %s: %w", p.name, export, err)
	}
	return results, nil
}

// Close releases this copy's instance.
func (p *Plugin) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.instance == nil {
		return nil
	}
	err := p.instance.Close(ctx)
	p.instance = nil
	return err
}

var (
	_ plugin.Plugin = (*Plugin)(nil)
	_ hook.Declarer = (*Plugin)(nil)
	_ unit.Closer   = (*Plugin)(nil)
)
