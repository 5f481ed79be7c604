package host

import (
	"context"
	"os"
	"runtime"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/reglet-compose/capability"
	"github.com/reglet-dev/reglet-compose/domain/entities"
	"github.com/reglet-dev/reglet-compose/domain/errors"
	"github.com/reglet-dev/reglet-compose/hook"
	"github.com/reglet-dev/reglet-compose/mixin"
	"github.com/reglet-dev/reglet-compose/plugin"
	"github.com/reglet-dev/reglet-compose/unit"
)

type tracer interface {
	Trace(entry string)
}

type app struct {
	*Core
	trace []string

	Loop *loopMixin `mixin:"loop"`

	_ hook.On `hook:"step" method:"OnStep"`
}

func (a *app) Trace(entry string) { a.trace = append(a.trace, entry) }
func (a *app) OnStep()            { a.Trace("host") }
func (a *app) Infer(x any) any    { return x }

type loopMixin struct {
	mixin.Base
	label string

	_ hook.On `hook:"step" method:"OnStep"`
	_ hook.On `hook:"loop_end" method:"OnLoopEnd"`
}

func (l *loopMixin) Declare() unit.Spec {
	return unit.Spec{Name: "loop", HookTypes: []entities.EventType{"loop_end"}}
}

func (l *loopMixin) OnStep() error {
	t, err := unit.ParentAs[tracer](l)
	if err != nil {
		return err
	}
	t.Trace("mixin:" + l.label)
	return nil
}

func (l *loopMixin) OnLoopEnd() {}

type tracePlugin struct {
	plugin.Base
	Label  string
	closed *int `copier:"-"`

	_ hook.On `hook:"step" index:"::2" method:"OnStep"`
}

func (p *tracePlugin) Declare() unit.Spec {
	return unit.Spec{Name: "trace-" + p.Label}
}

func (p *tracePlugin) OnStep(ctx context.Context, inv *hook.Invocation) error {
	t, err := unit.ParentAs[tracer](p)
	if err != nil {
		return err
	}
	t.Trace("plugin:" + p.Label)
	return nil
}

func (p *tracePlugin) Close(context.Context) error {
	if p.closed != nil {
		*p.closed++
	}
	return nil
}

func classes(closed *int) (*Class, *Class) {
	base := &Class{
		Name:      "base",
		HookTypes: []entities.EventType{"step"},
		Mixins:    []mixin.Slot{{Name: "loop", Proto: &loopMixin{label: "base"}}},
		Plugins:   []plugin.Plugin{&tracePlugin{Label: "base", closed: closed}},
	}
	derived := &Class{
		Name:     "derived",
		Base:     base,
		Requires: capability.NewProtocol(capability.Method("Infer", (func(any) any)(nil))),
		Mixins:   []mixin.Slot{{Name: "loop", Proto: &loopMixin{label: "derived"}}},
		Plugins:  []plugin.Plugin{&tracePlugin{Label: "derived", closed: closed}},
	}
	return base, derived
}

func TestClass_Chain(t *testing.T) {
	base, derived := classes(nil)

	chain := derived.Chain()
	require.Len(t, chain, 2)
	assert.Same(t, base, chain[0])

	slots := derived.MixinSlots()
	require.Len(t, slots, 1)
	assert.Equal(t, "derived", slots[0].Proto.(*loopMixin).label)

	protos := derived.PluginPrototypes()
	require.Len(t, protos, 2)
	assert.Equal(t, "base", protos[0].(*tracePlugin).Label)

	assert.Equal(t, entities.NewEventSet("step"), derived.EventTypes())
	assert.Equal(t, 1, derived.Protocol().Len())

	loop := &Class{Name: "loop"}
	loop.Base = loop
	assert.Len(t, loop.Chain(), 1)
}

func TestAttach_RunHookFanOut(t *testing.T) {
	_, derived := classes(nil)
	a := &app{}
	core, err := Attach(context.Background(), a, derived, WithPolicy(entities.PolicyRaise))
	require.NoError(t, err)
	a.Core = core

	require.NoError(t, a.Check())
	require.NotNil(t, a.Loop, "mixin injected into tagged field")

	require.NoError(t, a.RunHook(context.Background(), hook.OfType("step"), hook.AtIndex(0)))
	assert.Equal(t, []string{"host", "mixin:derived", "plugin:base", "plugin:derived"}, a.trace)

	a.trace = nil
	require.NoError(t, a.RunHook(context.Background(), hook.OfType("step"), hook.AtIndex(1)))
	assert.Equal(t, []string{"host", "mixin:derived"}, a.trace)

	a.trace = nil
	p, err := a.Plugins().Get("trace-base")
	require.NoError(t, err)
	p.SetEnabled(false)
	require.NoError(t, a.RunHook(context.Background(), hook.OfType("step"), hook.AtIndex(2)))
	assert.Equal(t, []string{"host", "mixin:derived", "plugin:derived"}, a.trace)
}

func TestAttach_Universe(t *testing.T) {
	_, derived := classes(nil)
	a := &app{}
	core, err := Attach(context.Background(), a, derived)
	require.NoError(t, err)

	assert.Equal(t, entities.NewEventSet("step", "loop_end"), core.Types())

	_, err = core.Hooks().Declare("loop_end").Call(func() {})
	require.NoError(t, err)
	assert.NoError(t, core.Check(), "host hooks may use types contributed by mixins")

	_, err = core.Hooks().Declare("unknown").Call(func() {})
	var typeErr *errors.EventTypeError
	assert.ErrorAs(t, err, &typeErr, "registration after check is policy gated")
}

type bare struct {
	*Core
}

func TestAttach_CheckCapabilities(t *testing.T) {
	_, derived := classes(nil)
	b := &bare{}
	core, err := Attach(context.Background(), b, &Class{Name: "bare", Base: derived})
	require.NoError(t, err)
	b.Core = core

	err = b.Check()
	var capErr *errors.CapabilityError
	require.ErrorAs(t, err, &capErr)

	withLenientPolicy, err := Attach(context.Background(), b, &Class{Name: "bare", Base: derived}, WithPolicy(entities.PolicyIgnore))
	require.NoError(t, err)
	assert.ErrorAs(t, withLenientPolicy.Check(), &capErr, "capability mismatches ignore the policy")
	runtime.KeepAlive(b)
}

func TestAttach_Errors(t *testing.T) {
	_, err := Attach[app](context.Background(), nil, &Class{})
	assert.Error(t, err)

	_, err = Attach(context.Background(), &app{}, nil)
	assert.Error(t, err)
}

func TestCore_RegistryAndProtocol(t *testing.T) {
	_, derived := classes(nil)
	core, err := Attach(context.Background(), &app{}, derived)
	require.NoError(t, err)

	assert.Equal(t, []string{"derived", "loop", "trace-base", "trace-derived"}, core.Registry().List())
	_, ok := core.Protocol().Lookup("Infer")
	assert.True(t, ok)
}

func TestCore_Close(t *testing.T) {
	closed := 0
	_, derived := classes(&closed)
	core, err := Attach(context.Background(), &app{}, derived)
	require.NoError(t, err)

	require.NoError(t, core.Close(context.Background()))
	assert.Equal(t, 2, closed)
}

func TestCore_Quit(t *testing.T) {
	core, err := Attach(context.Background(), &app{}, &Class{Name: "app"})
	require.NoError(t, err)

	assert.False(t, core.Quitting())
	core.Quit()
	assert.True(t, core.Quitting())
	core.ResetQuit()
	assert.False(t, core.Quitting())
}

func TestCore_WatchSignals(t *testing.T) {
	core, err := Attach(context.Background(), &app{}, &Class{Name: "app"})
	require.NoError(t, err)

	stop := core.WatchSignals(context.Background())
	defer stop()

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGINT))
	assert.Eventually(t, core.Quitting, time.Second, 10*time.Millisecond)

	stop()
	stop()
}
