package capability

import (
	"fmt"
	"reflect"

	"github.com/reglet-dev/reglet-compose/domain/entities"
	"github.com/reglet-dev/reglet-compose/domain/ports"
)

// Checker verifies hosts against protocols.
type Checker struct {
	cfg checkerConfig
}

// CheckerOption configures a Checker.
type CheckerOption func(*checkerConfig)

type checkerConfig struct {
	resolverFallback bool
}

// WithResolverFallback enables or disables the Resolver fallback of the
// resolve strategy. Default is enabled.
func WithResolverFallback(enabled bool) CheckerOption {
	return func(c *checkerConfig) {
		c.resolverFallback = enabled
	}
}

// NewChecker creates a Checker.
func NewChecker(opts ...CheckerOption) *Checker {
	cfg := checkerConfig{resolverFallback: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Checker{cfg: cfg}
}

// Verify checks every requirement of p against host and reports each
// missing or incompatible member. The report is empty when host satisfies p.
func (c *Checker) Verify(unit string, host any, p Protocol) *entities.MismatchReport {
	report := entities.NewMismatchReport(unit, fmt.Sprintf("%T", host))
	for _, req := range p.reqs {
		if m, ok := c.verify(host, req); !ok {
			report.Add(m)
		}
	}
	return report
}

// Satisfies reports whether host meets every requirement of p.
func (c *Checker) Satisfies(host any, p Protocol) bool {
	return c.Verify("", host, p).OK()
}

func (c *Checker) verify(host any, req Requirement) (entities.Mismatch, bool) {
	mismatch := entities.Mismatch{
		Member:   req.Name,
		Expected: req.Expected(),
		Reason:   entities.ReasonMissing,
		Strategy: req.Strategy.String(),
	}

	actual, found := staticMember(host, req)
	if !found && req.Strategy == StrategyResolve && c.cfg.resolverFallback {
		actual, found = resolvedMember(host, req)
	}
	if !found {
		return mismatch, false
	}

	if req.Type != nil && !compatible(actual, req) {
		mismatch.Reason = entities.ReasonIncompatible
		mismatch.Actual = describe(actual)
		return mismatch, false
	}
	return mismatch, true
}

// staticMember looks up a method or field on the host's type, including
// promoted members of embedded structs.
func staticMember(host any, req Requirement) (reflect.Type, bool) {
	if host == nil {
		return nil, false
	}
	ht := reflect.TypeOf(host)

	if req.Kind != KindField {
		if m, ok := ht.MethodByName(req.Name); ok {
			// Method types obtained from the type include the receiver.
			return methodType(m), true
		}
	}

	if req.Kind != KindMethod {
		st := ht
		for st.Kind() == reflect.Pointer {
			st = st.Elem()
		}
		if st.Kind() == reflect.Struct {
			if f, ok := st.FieldByName(req.Name); ok {
				return f.Type, true
			}
		}
	}
	return nil, false
}

// resolvedMember asks the host's Resolver for a synthesized member.
func resolvedMember(host any, req Requirement) (reflect.Type, bool) {
	r, ok := host.(ports.Resolver)
	if !ok {
		return nil, false
	}
	v, ok := r.Resolve(req.Name)
	if !ok {
		return nil, false
	}
	if v == nil {
		return nilType, true
	}
	t := reflect.TypeOf(v)
	if req.Kind == KindMethod && t.Kind() != reflect.Func {
		return nil, false
	}
	return t, true
}

// nilType marks a resolved nil value, compatible with any nilable type.
var nilType = reflect.TypeOf((*struct{})(nil))

func methodType(m reflect.Method) reflect.Type {
	in := make([]reflect.Type, 0, m.Type.NumIn()-1)
	for i := 1; i < m.Type.NumIn(); i++ {
		in = append(in, m.Type.In(i))
	}
	out := make([]reflect.Type, 0, m.Type.NumOut())
	for i := 0; i < m.Type.NumOut(); i++ {
		out = append(out, m.Type.Out(i))
	}
	return reflect.FuncOf(in, out, m.Type.IsVariadic())
}

func compatible(actual reflect.Type, req Requirement) bool {
	if actual == nilType {
		switch req.Type.Kind() {
		case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			return true
		}
		return false
	}
	if req.Type.Kind() == reflect.Func && actual.Kind() == reflect.Func {
		return compatibleFunc(actual, req.Type)
	}
	return actual.AssignableTo(req.Type)
}

// compatibleFunc reports whether a function of type actual can be called
// wherever expected is required: same arity, parameters accept what
// callers pass, results deliver what callers expect.
func compatibleFunc(actual, expected reflect.Type) bool {
	if actual.NumIn() != expected.NumIn() || actual.NumOut() != expected.NumOut() {
		return false
	}
	if actual.IsVariadic() != expected.IsVariadic() {
		return false
	}
	for i := 0; i < expected.NumIn(); i++ {
		if !expected.In(i).AssignableTo(actual.In(i)) {
			return false
		}
	}
	for i := 0; i < expected.NumOut(); i++ {
		if !actual.Out(i).AssignableTo(expected.Out(i)) {
			return false
		}
	}
	return true
}

func describe(t reflect.Type) string {
	if t == nilType {
		return "nil"
	}
	return t.String()
}
