package hook

import (
	"context"
	stdErrors "errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap_Shapes(t *testing.T) {
	boom := stdErrors.New("boom")
	called := 0

	tests := []struct {
		name    string
		fn      any
		wantErr error
	}{
		{"func()", func() { called++ }, nil},
		{"func() error", func() error { called++; return boom }, boom},
		{"func(ctx) error", func(context.Context) error { called++; return nil }, nil},
		{"func(*Invocation)", func(*Invocation) { called++ }, nil},
		{"func(*Invocation) error", func(*Invocation) error { called++; return nil }, nil},
		{"Func", Func(func(context.Context, *Invocation) error { called++; return nil }), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := called
			fn, err := Wrap(tt.fn)
			require.NoError(t, err)

			err = fn(context.Background(), &Invocation{})
			assert.Equal(t, tt.wantErr, err)
			assert.Equal(t, before+1, called)
		})
	}
}

func TestWrap_Positional(t *testing.T) {
	var got []any
	fn, err := Wrap(func(ctx context.Context, n int, label string, extra any) error {
		got = []any{n, label, extra}
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, fn(context.Background(), &Invocation{Args: []any{3, "x", nil}}))
	assert.Equal(t, []any{3, "x", nil}, got)

	err = fn(context.Background(), &Invocation{Type: "a", Args: []any{3}})
	assert.EqualError(t, err, "hook a: expects 3 arguments, got 1")

	err = fn(context.Background(), &Invocation{Type: "a", Args: []any{"3", "x", nil}})
	assert.EqualError(t, err, "hook a: argument 0: cannot use string as int")
}

type ticker struct{ n int }

func (tk *ticker) Tick() { tk.n++ }

func TestWrapValue_NoParamsIgnoresArgs(t *testing.T) {
	tk := &ticker{}
	fn, err := wrapValue(reflect.ValueOf(tk).MethodByName("Tick"))
	require.NoError(t, err)

	require.NoError(t, fn(context.Background(), &Invocation{Type: "a", Args: []any{1, "x"}}))
	assert.Equal(t, 1, tk.n)
}

func TestWrap_Rejects(t *testing.T) {
	tests := []struct {
		name string
		fn   any
	}{
		{"nil", nil},
		{"not a function", 42},
		{"variadic", func(...int) {}},
		{"non-error result", func() int { return 0 }},
		{"two results", func() (int, error) { return 0, nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Wrap(tt.fn)
			assert.Error(t, err)
		})
	}
}

func TestMiddleware_Order(t *testing.T) {
	var trace []string
	layer := func(name string) Middleware {
		return func(next Func) Func {
			return func(ctx context.Context, inv *Invocation) error {
				trace = append(trace, name+">")
				err := next(ctx, inv)
				trace = append(trace, "<"+name)
				return err
			}
		}
	}

	table := NewTable("test", WithMiddleware(layer("outer"), layer("inner")))
	_, err := table.Declare("a").Do(func(context.Context, *Invocation) error {
		trace = append(trace, "hook")
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, table.Run(context.Background()))
	assert.Equal(t, []string{"outer>", "inner>", "hook", "<inner", "<outer"}, trace)
}

func TestRecoverMiddleware(t *testing.T) {
	table := NewTable("test", WithMiddleware(RecoverMiddleware()))
	_, err := table.Declare("a").Do(func(context.Context, *Invocation) error {
		panic("kaboom")
	})
	require.NoError(t, err)

	err = table.Run(context.Background())
	var panicErr *PanicError
	require.ErrorAs(t, err, &panicErr)
	assert.Equal(t, "kaboom", panicErr.Value)
	assert.NotEmpty(t, panicErr.Stack)
}

func TestArgAs(t *testing.T) {
	inv := &Invocation{Type: "a", Args: []any{7}}

	n, err := ArgAs[int](inv, 0)
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	_, err = ArgAs[string](inv, 0)
	assert.Error(t, err)

	_, err = ArgAs[int](inv, 1)
	assert.Error(t, err)
}
