// Package wasm runs plugins compiled to WebAssembly. Every export named
// hook_<type> with signature (i64) -> i32 becomes a hook of that type: the
// argument is the event index (-1 when the event has none) and a non-zero
// result is reported as a hook error.
package wasm

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/reglet-dev/reglet-compose/domain/entities"
)

// HookExportPrefix prefixes guest exports that become hooks.
const HookExportPrefix = "hook_"

// HostModuleName is the import module guests use for host functions.
const HostModuleName = "reglet_host"

type runtimeConfig struct {
	logger         *slog.Logger
	maxMessageSize uint32
	wasi           bool
}

func defaultRuntimeConfig() runtimeConfig {
	return runtimeConfig{
		logger:         slog.Default(),
		maxMessageSize: 64 * 1024,
		wasi:           true,
	}
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*runtimeConfig)

// WithLogger sets the logger receiving guest log messages.
func WithLogger(l *slog.Logger) RuntimeOption {
	return func(c *runtimeConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMaxMessageSize limits the size of a guest log message read from
// guest memory. Default is 64KiB.
func WithMaxMessageSize(n uint32) RuntimeOption {
	return func(c *runtimeConfig) {
		c.maxMessageSize = n
	}
}

// WithWASI enables or disables the WASI preview1 imports. Default is true.
func WithWASI(enabled bool) RuntimeOption {
	return func(c *runtimeConfig) {
		c.wasi = enabled
	}
}

// Runtime owns a wazero runtime and the host module guests import.
type Runtime struct {
	rt     wazero.Runtime
	config runtimeConfig
}

// NewRuntime creates a runtime with the host module instantiated.
func NewRuntime(ctx context.Context, opts ...RuntimeOption) (*Runtime, error) {
	cfg := defaultRuntimeConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	rt := wazero.NewRuntime(ctx)
	if cfg.wasi {
		wasi_snapshot_preview1.MustInstantiate(ctx, rt)
	}
	r := &Runtime{rt: rt, config: cfg}

	if err := r.registerHostFunctions(ctx); err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("failed to register host functions: %w", err)
	}
	return r, nil
}

// registerHostFunctions exports log_message(i64 packed ptr/len) which logs
// the guest string at info level.
func (r *Runtime) registerHostFunctions(ctx context.Context) error {
	maxSize := r.config.maxMessageSize
	logger := r.config.logger

	_, err := r.rt.NewHostModuleBuilder(HostModuleName).
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			ptr, length := unpackPtrLen(stack[0])
			name := pluginName(ctx, mod)
			if length > maxSize {
				logger.WarnContext(ctx, "wasm: log message too large", slog.String("plugin", name), slog.Any("size", length))
				return
			}
			msg, ok := mod.Memory().Read(ptr, length)
			if !ok {
				logger.WarnContext(ctx, "wasm: log message out of bounds", slog.String("plugin", name))
				return
			}
			logger.InfoContext(ctx, string(msg), slog.String("plugin", name))
		}), []api.ValueType{api.ValueTypeI64}, nil).
		Export("log_message").
		Instantiate(ctx)
	return err
}

// Compile validates and compiles a guest binary. The module name is used as
// the unit name of plugins built from it.
func (r *Runtime) Compile(ctx context.Context, name string, wasmBytes []byte) (*Module, error) {
	compiled, err := r.rt.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to compile module %s: %w", name, err)
	}

	m := &Module{name: name, compiled: compiled, runtime: r, exports: make(map[entities.EventType]string)}
	for export, def := range compiled.ExportedFunctions() {
		if !strings.HasPrefix(export, HookExportPrefix) {
			continue
		}
		if !hookSignature(def) {
			_ = compiled.Close(ctx)
			return nil, fmt.Errorf("module %s: export %s must have signature (i64) -> i32", name, export)
		}
		m.exports[entities.EventType(strings.TrimPrefix(export, HookExportPrefix))] = export
	}
	return m, nil
}

// Close releases the runtime and every module instantiated in it.
func (r *Runtime) Close(ctx context.Context) error {
	return r.rt.Close(ctx)
}

func hookSignature(def api.FunctionDefinition) bool {
	params, results := def.ParamTypes(), def.ResultTypes()
	return len(params) == 1 && params[0] == api.ValueTypeI64 &&
		len(results) == 1 && results[0] == api.ValueTypeI32
}

// Module is a compiled guest binary.
type Module struct {
	name     string
	compiled wazero.CompiledModule
	runtime  *Runtime
	exports  map[entities.EventType]string
}

// Name returns the module name.
func (m *Module) Name() string {
	return m.name
}

// HookTypes returns the event types the guest exports hooks for, sorted.
func (m *Module) HookTypes() []entities.EventType {
	types := make([]entities.EventType, 0, len(m.exports))
	for t := range m.exports {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Close releases the compiled code.
func (m *Module) Close(ctx context.Context) error {
	return m.compiled.Close(ctx)
}

func unpackPtrLen(packed uint64) (ptr, length uint32) {
	ptr = uint32(packed >> 32)           //nolint:gosec // G115: packed format stores 32-bit values
	length = uint32(packed & 0xFFFFFFFF) //nolint:gosec // G115: packed format stores 32-bit values
	return ptr, length
}
