package capability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/reglet-compose/domain/entities"
)

type model struct{}

type engine struct {
	Model          *model
	ValidationRate int
	params         map[string]any
	resolveCalls   int
}

func (e *engine) Infer(data any) (any, error) { return data, nil }
func (e *engine) Post(outputs []any) error    { return nil }
func (e *engine) Train(data any) error        { return nil }

func (e *engine) Resolve(name string) (any, bool) {
	e.resolveCalls++
	v, ok := e.params[name]
	return v, ok
}

type derivedEngine struct {
	engine
	Extra string
}

func TestChecker_Methods(t *testing.T) {
	checker := NewChecker()
	host := &engine{}

	tests := []struct {
		name       string
		req        Requirement
		wantReason entities.MismatchReason
	}{
		{"exact signature", Method("Infer", (func(any) (any, error))(nil)), ""},
		{"any signature", Method("Post", nil), ""},
		{"missing", Method("Validate", nil), entities.ReasonMissing},
		{"wrong arity", Method("Infer", (func() (any, error))(nil)), entities.ReasonIncompatible},
		{"wrong result", Method("Train", (func(any) (any, error))(nil)), entities.ReasonIncompatible},
		{"assignable params", Method("Post", (func([]any) error)(nil)), ""},
		{"field is not a method", Method("ValidationRate", nil), entities.ReasonMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := checker.Verify("unit", host, NewProtocol(tt.req))
			if tt.wantReason == "" {
				assert.True(t, report.OK(), report.String())
				return
			}
			require.Len(t, report.Mismatches, 1)
			assert.Equal(t, tt.wantReason, report.Mismatches[0].Reason)
			assert.Equal(t, tt.req.Name, report.Mismatches[0].Member)
		})
	}
}

func TestChecker_Fields(t *testing.T) {
	checker := NewChecker()
	host := &derivedEngine{}

	report := checker.Verify("unit", host, NewProtocol(
		FieldOf[int]("ValidationRate"),
		Field("Model"),
		FieldOf[string]("Extra"),
		Member("Infer"),
	))
	assert.True(t, report.OK(), report.String())

	report = checker.Verify("unit", host, NewProtocol(FieldOf[string]("ValidationRate")))
	require.Len(t, report.Mismatches, 1)
	assert.Equal(t, entities.ReasonIncompatible, report.Mismatches[0].Reason)
	assert.Equal(t, "int", report.Mismatches[0].Actual)
	assert.Equal(t, "field string", report.Mismatches[0].Expected)
}

func TestChecker_Strategies(t *testing.T) {
	checker := NewChecker()
	host := &engine{params: map[string]any{"backup_rate": 5, "hook": nil}}

	t.Run("resolve falls back to resolver", func(t *testing.T) {
		report := checker.Verify("backup", host, NewProtocol(ValueOf[int]("backup_rate")))
		assert.True(t, report.OK(), report.String())
		assert.Equal(t, 1, host.resolveCalls)
	})

	t.Run("static never resolves", func(t *testing.T) {
		host.resolveCalls = 0
		report := checker.Verify("backup", host, NewProtocol(ValueOf[int]("backup_rate").Static()))
		require.False(t, report.OK())
		assert.Equal(t, "static", report.Mismatches[0].Strategy)
		assert.Zero(t, host.resolveCalls)
	})

	t.Run("resolved value with wrong type", func(t *testing.T) {
		report := checker.Verify("backup", host, NewProtocol(ValueOf[string]("backup_rate")))
		require.False(t, report.OK())
		assert.Equal(t, entities.ReasonIncompatible, report.Mismatches[0].Reason)
	})

	t.Run("resolved nil is compatible with nilable types", func(t *testing.T) {
		report := checker.Verify("backup", host, NewProtocol(ValueOf[*model]("hook")))
		assert.True(t, report.OK(), report.String())
	})

	t.Run("fallback disabled", func(t *testing.T) {
		strict := NewChecker(WithResolverFallback(false))
		report := strict.Verify("backup", host, NewProtocol(Member("backup_rate")))
		assert.False(t, report.OK())
	})
}

func TestChecker_ReportsEveryMismatch(t *testing.T) {
	report := NewChecker().Verify("testloop", &engine{}, NewProtocol(
		Method("Infer", nil),
		Method("Evaluate", nil),
		Field("Dataloader").Static(),
	))

	assert.Equal(t, "testloop", report.Unit)
	assert.Equal(t, "*capability.engine", report.Host)
	assert.Equal(t, []string{"Evaluate", "Dataloader"}, report.Members())
}

func TestChecker_NilHost(t *testing.T) {
	report := NewChecker().Verify("u", nil, NewProtocol(Member("x")))
	assert.False(t, report.OK())
	assert.False(t, NewChecker().Satisfies(nil, NewProtocol(Member("x"))))
	assert.True(t, NewChecker().Satisfies(nil, Protocol{}))
}

func TestProtocol_Merge(t *testing.T) {
	a := NewProtocol(Method("Infer", nil), Field("Rate"))
	b := NewProtocol(FieldOf[int]("Rate").Describe("epochs between runs"), Method("Post", nil))

	merged := a.Merge(b)
	require.Equal(t, 3, merged.Len())
	assert.Equal(t, 2, a.Len(), "merge must not modify the receiver")

	rate, ok := merged.Lookup("Rate")
	require.True(t, ok)
	assert.Equal(t, "field int", rate.Expected())
	assert.Equal(t, "epochs between runs", rate.Doc)

	names := make([]string, 0, merged.Len())
	for _, r := range merged.Requirements() {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"Infer", "Rate", "Post"}, names)
}

func TestMethod_PanicsOnNonFunction(t *testing.T) {
	assert.Panics(t, func() { Method("x", 42) })
}
