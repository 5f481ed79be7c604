package unit

import (
	"context"
	stdErrors "errors"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/reglet-compose/capability"
	"github.com/reglet-dev/reglet-compose/domain/entities"
	"github.com/reglet-dev/reglet-compose/domain/errors"
	"github.com/reglet-dev/reglet-compose/hook"
	"github.com/reglet-dev/reglet-compose/internal/weakref"
)

type needsInfer struct {
	Base
	closed *[]string
}

func (n *needsInfer) Declare() Spec {
	return Spec{
		Name:     "NeedsInfer",
		Requires: capability.NewProtocol(capability.Method("Infer", nil)),
	}
}

func (n *needsInfer) Close(context.Context) error {
	*n.closed = append(*n.closed, n.Name())
	return nil
}

type inferHost struct{}

func (*inferHost) Infer() {}

func TestGroup_LookupAndRun(t *testing.T) {
	h := &host{}
	g := NewGroup[*counter]("plugins")
	for i := 0; i < 2; i++ {
		u, err := Bind(context.Background(), &counter{Seen: map[string]int{}}, weakref.Make(h))
		require.NoError(t, err)
		g.Add(u)
	}

	got, err := g.Get("COUNTER")
	require.NoError(t, err)
	first, _ := g.At(0)
	assert.Same(t, first, got, "lookup by name returns the first match")

	_, err = g.Get("missing")
	var lookupErr *errors.LookupError
	assert.ErrorAs(t, err, &lookupErr)
	_, err = g.At(5)
	assert.ErrorAs(t, err, &lookupErr)

	inv := hook.NewInvocation(hook.OfType("a"))
	require.NoError(t, g.Run(context.Background(), inv, func(c *counter) bool { return c == first }))
	second, _ := g.At(1)
	assert.Zero(t, first.Count)
	assert.Equal(t, 1, second.Count)
	assert.Equal(t, 2, g.Len())
	assert.Equal(t, entities.NewEventSet("a"), g.Types())
	runtime.KeepAlive(h)
}

func TestGroup_Check(t *testing.T) {
	var closed []string

	t.Run("capability mismatch is fatal", func(t *testing.T) {
		h := &host{}
		g := NewGroup[*needsInfer]("mixins")
		u, err := Bind(context.Background(), &needsInfer{closed: &closed}, weakref.Make(h))
		require.NoError(t, err)
		g.Add(u)

		err = g.Check(capability.NewChecker(), func(*needsInfer) entities.EventSet { return nil })
		var capErr *errors.CapabilityError
		require.ErrorAs(t, err, &capErr)
		assert.Equal(t, "NeedsInfer", capErr.Unit())
		assert.Equal(t, []string{"Infer"}, capErr.Report.Members())
		runtime.KeepAlive(h)
	})

	t.Run("satisfied", func(t *testing.T) {
		h := &inferHost{}
		g := NewGroup[*needsInfer]("mixins")
		u, err := Bind(context.Background(), &needsInfer{closed: &closed}, weakref.Make(h))
		require.NoError(t, err)
		g.Add(u)

		require.NoError(t, g.Check(capability.NewChecker(), func(*needsInfer) entities.EventSet { return nil }))
		assert.Equal(t, StateActive, u.State())
		assert.Equal(t, 1, g.Protocol().Len())

		require.NoError(t, g.Close(context.Background()))
		assert.Equal(t, []string{"NeedsInfer"}, closed)
		runtime.KeepAlive(h)
	})

	t.Run("event type violation", func(t *testing.T) {
		h := &host{}
		g := NewGroup[*counter]("plugins")
		u, err := Bind(context.Background(), &counter{Seen: map[string]int{}}, weakref.Make(h))
		require.NoError(t, err)
		g.Add(u)

		err = g.Check(capability.NewChecker(), func(*counter) entities.EventSet { return entities.NewEventSet("b") })
		var typeErr *errors.EventTypeError
		assert.ErrorAs(t, err, &typeErr)
		runtime.KeepAlive(h)
	})
}

func TestGroup_CloseJoinsErrors(t *testing.T) {
	g := NewGroup[*failingCloser]("plugins")
	g.Add(&failingCloser{err: stdErrors.New("a")})
	g.Add(&failingCloser{err: stdErrors.New("b")})

	err := g.Close(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a")
	assert.Contains(t, err.Error(), "b")
}

type failingCloser struct {
	Base
	err error
}

func (f *failingCloser) Close(context.Context) error { return f.err }
