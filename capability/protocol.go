package capability

import (
	"fmt"
	"reflect"
)

// Kind selects which member kinds satisfy a requirement.
type Kind int

const (
	// KindAny accepts a method or a field.
	KindAny Kind = iota
	// KindMethod requires a method.
	KindMethod
	// KindField requires a struct field.
	KindField
)

func (k Kind) String() string {
	switch k {
	case KindMethod:
		return "method"
	case KindField:
		return "field"
	default:
		return "member"
	}
}

// Strategy selects how a requirement is verified.
type Strategy int

const (
	// StrategyResolve uses reflection plus the host's Resolver fallback.
	StrategyResolve Strategy = iota
	// StrategyStatic uses reflection only.
	StrategyStatic
)

func (s Strategy) String() string {
	if s == StrategyStatic {
		return "static"
	}
	return "resolve"
}

// Requirement is a single member a unit expects on its host.
type Requirement struct {
	Name     string
	Kind     Kind
	Strategy Strategy

	// Type is the expected function type for methods or value type for
	// fields. Nil accepts any type.
	Type reflect.Type

	Doc string
}

// Method requires a method. signature is a typed nil function value such as
// (func(any) (any, error))(nil); nil accepts any signature.
func Method(name string, signature any) Requirement {
	r := Requirement{Name: name, Kind: KindMethod}
	if signature != nil {
		t := reflect.TypeOf(signature)
		if t.Kind() != reflect.Func {
			panic(fmt.Sprintf("capability.Method(%q): signature must be a function type, got %s", name, t))
		}
		r.Type = t
	}
	return r
}

// Field requires a field of any type.
func Field(name string) Requirement {
	return Requirement{Name: name, Kind: KindField}
}

// FieldOf requires a field assignable to T.
func FieldOf[T any](name string) Requirement {
	return Requirement{Name: name, Kind: KindField, Type: reflect.TypeFor[T]()}
}

// Member requires a method or field named name.
func Member(name string) Requirement {
	return Requirement{Name: name, Kind: KindAny}
}

// ValueOf requires a method, field or resolved value assignable to T.
func ValueOf[T any](name string) Requirement {
	return Requirement{Name: name, Kind: KindAny, Type: reflect.TypeFor[T]()}
}

// Static returns a copy verified with the static strategy.
func (r Requirement) Static() Requirement {
	r.Strategy = StrategyStatic
	return r
}

// Describe returns a copy carrying a human readable description.
func (r Requirement) Describe(doc string) Requirement {
	r.Doc = doc
	return r
}

// Expected renders the kind and type, e.g. "method func(any) error".
func (r Requirement) Expected() string {
	if r.Type == nil {
		return r.Kind.String()
	}
	return r.Kind.String() + " " + r.Type.String()
}

// Protocol is an ordered, immutable set of requirements keyed by name.
type Protocol struct {
	reqs []Requirement
}

// NewProtocol creates a protocol. A later requirement replaces an earlier
// one with the same name.
func NewProtocol(reqs ...Requirement) Protocol {
	return Protocol{}.With(reqs...)
}

// With returns a protocol extended by reqs.
func (p Protocol) With(reqs ...Requirement) Protocol {
	out := Protocol{reqs: append([]Requirement(nil), p.reqs...)}
	for _, r := range reqs {
		replaced := false
		for i := range out.reqs {
			if out.reqs[i].Name == r.Name {
				out.reqs[i] = r
				replaced = true
				break
			}
		}
		if !replaced {
			out.reqs = append(out.reqs, r)
		}
	}
	return out
}

// Merge combines protocols, later ones taking precedence by name.
func (p Protocol) Merge(others ...Protocol) Protocol {
	out := p
	for _, o := range others {
		out = out.With(o.reqs...)
	}
	return out
}

// Requirements returns a copy of the requirements in declaration order.
func (p Protocol) Requirements() []Requirement {
	return append([]Requirement(nil), p.reqs...)
}

// Len returns the number of requirements.
func (p Protocol) Len() int {
	return len(p.reqs)
}

// Lookup returns the requirement named name.
func (p Protocol) Lookup(name string) (Requirement, bool) {
	for _, r := range p.reqs {
		if r.Name == name {
			return r, true
		}
	}
	return Requirement{}, false
}
