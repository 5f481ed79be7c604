package mixin

import (
	"context"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/reglet-compose/capability"
	"github.com/reglet-dev/reglet-compose/domain/entities"
	"github.com/reglet-dev/reglet-compose/domain/errors"
	"github.com/reglet-dev/reglet-compose/hook"
	"github.com/reglet-dev/reglet-compose/internal/weakref"
	"github.com/reglet-dev/reglet-compose/unit"
)

type host struct {
	Loop   *loop `mixin:"loop"`
	Engine Mixin `mixin:"engine"`
}

func (h *host) Infer(data any) (any, error) { return data, nil }

type loop struct {
	Base
	Calls []string

	_ hook.On `hook:"c" method:"OnC"`
}

func (l *loop) Declare() unit.Spec {
	return unit.Spec{
		HookTypes: []entities.EventType{"c"},
		Requires:  capability.NewProtocol(capability.Method("Infer", (func(any) (any, error))(nil))),
	}
}

func (l *loop) OnC() { l.Calls = append(l.Calls, "c") }

type engine struct {
	Base
}

func (e *engine) Declare() unit.Spec {
	return unit.Spec{HookTypes: []entities.EventType{"d"}}
}

type bareHost struct{}

func slots() []Slot {
	return []Slot{{Name: "loop", Proto: &loop{}}, {Name: "engine", Proto: &engine{}}}
}

func TestManager_WidensUniverse(t *testing.T) {
	h := &host{}
	m, err := NewManager(context.Background(), weakref.Make(h), slots(),
		WithHostTypes(entities.NewEventSet("a", "b")))
	require.NoError(t, err)

	assert.Equal(t, entities.NewEventSet("a", "b", "c", "d"), m.Types())
	require.NoError(t, m.Check(nil))

	require.NoError(t, m.Run(context.Background(), hook.OfType("c")))
	l, err := m.Get("loop")
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, l.(*loop).Calls)
	assert.Equal(t, []string{"loop", "engine"}, m.Slots())
	runtime.KeepAlive(h)
}

func TestManager_ExplicitTypesRejectMixinHooks(t *testing.T) {
	h := &host{}
	m, err := NewManager(context.Background(), weakref.Make(h), slots(),
		WithHostTypes(entities.NewEventSet("a", "b")))
	require.NoError(t, err)

	var typeErr *errors.EventTypeError
	require.ErrorAs(t, m.Check(entities.NewEventSet("a", "b")), &typeErr)
	assert.Equal(t, entities.EventType("c"), typeErr.Type)
	runtime.KeepAlive(h)
}

func TestManager_CapabilityMismatch(t *testing.T) {
	h := &bareHost{}
	m, err := NewManager(context.Background(), weakref.Make(h), slots())
	require.NoError(t, err)

	var capErr *errors.CapabilityError
	require.ErrorAs(t, m.Check(nil), &capErr)
	assert.Equal(t, "loop", capErr.Unit())
	assert.Equal(t, []string{"Infer"}, capErr.Report.Members())
	runtime.KeepAlive(h)
}

func TestManager_CapabilityMismatchIgnoresPolicy(t *testing.T) {
	h := &bareHost{}
	m, err := NewManager(context.Background(), weakref.Make(h), slots(),
		WithBindOptions(unit.WithPolicy(entities.PolicyIgnore)))
	require.NoError(t, err)

	var capErr *errors.CapabilityError
	assert.ErrorAs(t, m.Check(nil), &capErr)
	runtime.KeepAlive(h)
}

func TestManager_Inject(t *testing.T) {
	h := &host{}
	m, err := NewManager(context.Background(), weakref.Make(h), slots())
	require.NoError(t, err)

	require.NoError(t, m.Inject(h))
	require.NotNil(t, h.Loop)
	first, _ := m.At(0)
	assert.Same(t, first, Mixin(h.Loop))
	assert.Equal(t, "engine", unit.NameOf(h.Engine))

	type wrongField struct {
		Loop *engine `mixin:"loop"`
	}
	assert.Error(t, m.Inject(&wrongField{}))
	assert.Error(t, m.Inject(wrongField{}))

	type unknownSlot struct {
		X Mixin `mixin:"nope"`
	}
	var lookupErr *errors.LookupError
	assert.ErrorAs(t, m.Inject(&unknownSlot{}), &lookupErr)

	type optionalSlot struct {
		X Mixin `mixin:"nope,optional"`
		L *loop `mixin:"loop,optional"`
	}
	opt := &optionalSlot{}
	require.NoError(t, m.Inject(opt))
	assert.Nil(t, opt.X)
	assert.NotNil(t, opt.L)
	runtime.KeepAlive(h)
}

func TestManager_BindIsolation(t *testing.T) {
	proto := &loop{}
	h1, h2 := &host{}, &host{}
	m1, err := NewManager(context.Background(), weakref.Make(h1), []Slot{{Name: "loop", Proto: proto}})
	require.NoError(t, err)
	m2, err := NewManager(context.Background(), weakref.Make(h2), []Slot{{Name: "loop", Proto: proto}})
	require.NoError(t, err)

	require.NoError(t, m1.Run(context.Background(), hook.OfType("c")))

	l1, _ := m1.At(0)
	l2, _ := m2.At(0)
	assert.Len(t, l1.(*loop).Calls, 1)
	assert.Empty(t, l2.(*loop).Calls)
	assert.Empty(t, proto.Calls)

	p1, err := unit.ParentAs[*host](l1)
	require.NoError(t, err)
	assert.Same(t, h1, p1)
	runtime.KeepAlive(h1)
	runtime.KeepAlive(h2)
}
