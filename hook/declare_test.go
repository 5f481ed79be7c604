package hook

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/reglet-compose/domain/entities"
	"github.com/reglet-dev/reglet-compose/domain/errors"
)

type basePlugin struct {
	calls []string

	_ On `hook:"a" method:"HookA"`
	_ On `hook:"b" index:"0:10:2" method:"HookB"`
}

func (p *basePlugin) HookA() { p.calls = append(p.calls, "base.a") }

func (p *basePlugin) HookB(inv *Invocation) error {
	p.calls = append(p.calls, "base.b")
	return nil
}

type childPlugin struct {
	basePlugin

	_ On `method:"TrainEpochEnd"`
}

// HookA shadows basePlugin.HookA.
func (p *childPlugin) HookA() { p.calls = append(p.calls, "child.a") }

func (p *childPlugin) TrainEpochEnd(ctx context.Context, inv *Invocation) error {
	p.calls = append(p.calls, "child.epoch")
	return nil
}

func TestDiscover(t *testing.T) {
	p := &childPlugin{}
	table := NewTable("child")
	require.NoError(t, Discover(table, p))

	require.Equal(t, 3, table.Len())
	assert.Equal(t, entities.NewEventSet("a", "b", "train_epoch_end"), table.Types())

	b, ok := table.Hook("HookB")
	require.True(t, ok)
	assert.Equal(t, "0:10:2", b.Filter.String())

	ctx := context.Background()
	require.NoError(t, table.Run(ctx, OfType("a")))
	require.NoError(t, table.Run(ctx, OfType("b"), AtIndex(3)))
	require.NoError(t, table.Run(ctx, OfType("b"), AtIndex(4)))
	require.NoError(t, table.Run(ctx, OfType("train_epoch_end")))

	assert.Equal(t, []string{"child.a", "base.b", "child.epoch"}, p.calls)
}

func TestDeclaredTypes(t *testing.T) {
	assert.Equal(t, entities.NewEventSet("a", "b", "train_epoch_end"), DeclaredTypes(&childPlugin{}))
	assert.Empty(t, DeclaredTypes(42))
}

type missingMethod struct {
	_ On `hook:"a" method:"Nope"`
}

type badSignature struct {
	_ On `hook:"a" method:"Bad"`
}

func (badSignature) Bad() int { return 1 }

type badIndex struct {
	_ On `hook:"a" index:"x:y" method:"Run"`
}

func (badIndex) Run() {}

type noMethodTag struct {
	_ On `hook:"a"`
}

func TestDiscover_Errors(t *testing.T) {
	tests := []struct {
		name     string
		receiver any
	}{
		{"missing method", &missingMethod{}},
		{"bad signature", &badSignature{}},
		{"bad index", &badIndex{}},
		{"no method tag", &noMethodTag{}},
		{"not a pointer", missingMethod{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Discover(NewTable("x"), tt.receiver)
			var declErr *errors.DeclarationError
			assert.ErrorAs(t, err, &declErr)
		})
	}
}

func TestToSnakeCase(t *testing.T) {
	assert.Equal(t, "train_epoch_end", toSnakeCase("TrainEpochEnd"))
	assert.Equal(t, "engine_start", toSnakeCase("EngineStart"))
	assert.Equal(t, "data_batch", toSnakeCase("DataBatch"))
}
