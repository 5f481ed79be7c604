package hook

import (
	"bytes"
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/reglet-compose/domain/entities"
	"github.com/reglet-dev/reglet-compose/domain/errors"
)

func record(calls *[]string, label string) Func {
	return func(_ context.Context, inv *Invocation) error {
		entry := label
		if inv.HasIndex {
			entry = fmt.Sprintf("%s@%d", label, inv.Index)
		}
		*calls = append(*calls, entry)
		return nil
	}
}

func TestHook_Fires(t *testing.T) {
	h := New("a", nil, entities.Slice(5, 50, 10))

	tests := []struct {
		name string
		q    Query
		want bool
	}{
		{"any type any index", Query{}, true},
		{"same type no index", Query{Type: "a"}, true},
		{"other type", Query{Type: "b"}, false},
		{"accepted index", Query{Type: "a", Index: 15, HasIndex: true}, true},
		{"rejected index", Query{Type: "a", Index: 16, HasIndex: true}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, h.Fires(tt.q))
		})
	}

	h.SetEnabled(false)
	assert.False(t, h.Fires(Query{}))
	assert.False(t, h.Enabled())
}

func TestTable_RunOrder(t *testing.T) {
	var calls []string
	table := NewTable("test")

	require.NoError(t, table.Register(New("b", record(&calls, "b1"))))
	require.NoError(t, table.Register(New("a", record(&calls, "a1"))))
	require.NoError(t, table.Register(New("b", record(&calls, "b2"))))

	require.NoError(t, table.Run(context.Background()))
	assert.Equal(t, []string{"b1", "b2", "a1"}, calls)

	calls = nil
	require.NoError(t, table.Run(context.Background(), OfType("b")))
	assert.Equal(t, []string{"b1", "b2"}, calls)

	calls = nil
	require.NoError(t, table.Run(context.Background(), OfType("missing")))
	assert.Empty(t, calls)
}

func TestTable_IndexFilter(t *testing.T) {
	var calls []string
	table := NewTable("test")
	_, err := table.Declare("a", entities.Slice(5, 50, 10)).Do(record(&calls, "a"))
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		require.NoError(t, table.Run(context.Background(), OfType("a"), AtIndex(i)))
	}
	assert.Equal(t, []string{"a@5", "a@15", "a@25", "a@35", "a@45"}, calls)

	calls = nil
	require.NoError(t, table.Run(context.Background(), OfType("a")))
	assert.Equal(t, []string{"a"}, calls, "runs without an index fire regardless of the filter")
}

func TestTable_RunStopsAtFirstError(t *testing.T) {
	boom := stdErrors.New("boom")
	var calls []string
	table := NewTable("test")

	require.NoError(t, table.Register(New("a", record(&calls, "first"))))
	require.NoError(t, table.Register(New("a", func(context.Context, *Invocation) error { return boom })))
	require.NoError(t, table.Register(New("a", record(&calls, "never"))))

	err := table.Run(context.Background(), OfType("a"))
	assert.Same(t, boom, err)
	assert.Equal(t, []string{"first"}, calls)
}

func TestTable_RunPassesPayload(t *testing.T) {
	table := NewTable("test")
	var got *Invocation
	_, err := table.Declare("a").Do(func(_ context.Context, inv *Invocation) error {
		got = inv
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, table.Run(context.Background(), WithArgs(1, "x"), WithKwarg("mode", "train")))
	require.NotNil(t, got)
	assert.Equal(t, entities.EventType("a"), got.Type)
	assert.Equal(t, []any{1, "x"}, got.Args)
	mode, ok := got.Kwarg("mode")
	assert.True(t, ok)
	assert.Equal(t, "train", mode)
}

func TestTable_Check(t *testing.T) {
	newTable := func(p entities.CheckPolicy, buf *bytes.Buffer) *Table {
		logger := slog.New(slog.NewTextHandler(buf, nil))
		table := NewTable("custom", WithPolicy(p), WithLogger(logger))
		_, err := table.Declare("a").Named("HookA").Do(func(context.Context, *Invocation) error { return nil })
		require.NoError(t, err)
		_, err = table.Declare("c").Named("HookC").Do(func(context.Context, *Invocation) error { return nil })
		require.NoError(t, err)
		return table
	}
	declared := entities.NewEventSet("a", "b")

	t.Run("raise", func(t *testing.T) {
		var buf bytes.Buffer
		err := newTable(entities.PolicyRaise, &buf).Check(declared)

		var typeErr *errors.EventTypeError
		require.ErrorAs(t, err, &typeErr)
		assert.Equal(t, entities.EventType("c"), typeErr.Type)
		assert.Equal(t, "HookC", typeErr.Hook)
	})

	t.Run("log", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, newTable(entities.PolicyLog, &buf).Check(declared))
		assert.Contains(t, buf.String(), "unregistered hook type")
		assert.Contains(t, buf.String(), "type=c")
	})

	t.Run("ignore", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, newTable(entities.PolicyIgnore, &buf).Check(declared))
		assert.Empty(t, buf.String())
	})

	t.Run("declared types provider", func(t *testing.T) {
		table := NewTable("custom", WithDeclaredTypes(func() entities.EventSet {
			return entities.NewEventSet("a")
		}))
		_, err := table.Declare("a").Do(func(context.Context, *Invocation) error { return nil })
		require.NoError(t, err)
		assert.NoError(t, table.Check(nil))
		assert.True(t, table.Checked())
	})
}

func TestTable_RegisterAfterCheck(t *testing.T) {
	table := NewTable("engine")
	require.NoError(t, table.Check(entities.NewEventSet("a")))

	_, err := table.Declare("a").Do(func(context.Context, *Invocation) error { return nil })
	assert.NoError(t, err)

	_, err = table.Declare("z").Do(func(context.Context, *Invocation) error { return nil })
	var typeErr *errors.EventTypeError
	require.ErrorAs(t, err, &typeErr)
	assert.Equal(t, 1, table.Len(), "rejected hooks are not registered")

	lenient := NewTable("engine", WithPolicy(entities.PolicyIgnore))
	require.NoError(t, lenient.Check(entities.NewEventSet("a")))
	_, err = lenient.Declare("z").Do(func(context.Context, *Invocation) error { return nil })
	assert.NoError(t, err)
}

func TestDeclaration_IndexAppends(t *testing.T) {
	table := NewTable("test")
	h, err := table.Declare("a").Index(entities.At(1)).Index(entities.From(10)).Do(nil)
	require.NoError(t, err)

	assert.Len(t, h.Filter, 2)
	assert.True(t, h.Filter.Accepts(1))
	assert.False(t, h.Filter.Accepts(5))
	assert.True(t, h.Filter.Accepts(12))
}

func TestDeclaration_InvalidStep(t *testing.T) {
	table := NewTable("test")
	step := 0
	_, err := table.Declare("a", entities.IndexRange{Step: &step}).Do(nil)

	var declErr *errors.DeclarationError
	assert.ErrorAs(t, err, &declErr)
}

func TestTable_RegisterRejectsInvalidFilter(t *testing.T) {
	var calls []string
	table := NewTable("test")

	err := table.Register(New("a", record(&calls, "a"), entities.Slice(0, 10, 0)))
	var declErr *errors.DeclarationError
	require.ErrorAs(t, err, &declErr)
	assert.Equal(t, "a", declErr.Field)
	assert.Zero(t, table.Len())

	require.NoError(t, table.Run(context.Background(), OfType("a"), AtIndex(3)))
	assert.Empty(t, calls)
}

func TestHook_InvokeAppliesMiddleware(t *testing.T) {
	var trace []string
	mw := func(next Func) Func {
		return func(ctx context.Context, inv *Invocation) error {
			trace = append(trace, "mw")
			return next(ctx, inv)
		}
	}
	h := New("a", record(&trace, "hook"), entities.At(1))
	h.SetEnabled(false)

	require.NoError(t, h.Invoke(context.Background(), &Invocation{Type: "a"}, mw))
	assert.Equal(t, []string{"mw", "hook"}, trace)
	assert.NoError(t, New("a", nil).Invoke(context.Background(), &Invocation{}, mw))
}

func TestTable_HookLookup(t *testing.T) {
	var calls []string
	table := NewTable("test")
	_, err := table.Declare("a").Named("HookA").Do(record(&calls, "a"))
	require.NoError(t, err)

	h, ok := table.Hook("HookA")
	require.True(t, ok)
	h.SetEnabled(false)

	require.NoError(t, table.Run(context.Background()))
	assert.Empty(t, calls)

	_, ok = table.Hook("missing")
	assert.False(t, ok)
}

func TestTable_RegisterDuringRun(t *testing.T) {
	var calls []string
	table := NewTable("test")
	_, err := table.Declare("start").Do(func(context.Context, *Invocation) error {
		_, err := table.Declare("epoch").Do(record(&calls, "epoch"))
		return err
	})
	require.NoError(t, err)

	require.NoError(t, table.Run(context.Background(), OfType("start")))
	require.NoError(t, table.Run(context.Background(), OfType("epoch")))
	assert.Equal(t, []string{"epoch"}, calls)
	assert.True(t, table.Types().Has("epoch"))
}
