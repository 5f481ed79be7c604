// Package weakref provides type-erased weak back-references from bound
// units to their host.
package weakref

import (
	"fmt"
	"weak"
)

// Ref is a weak reference to a host of any type. The zero Ref is unbound.
// Holding a Ref never keeps the host alive.
type Ref struct {
	get  func() any
	kind string
}

// Make creates a weak reference to p.
func Make[T any](p *T) Ref {
	if p == nil {
		return Ref{}
	}
	wp := weak.Make(p)
	return Ref{
		get: func() any {
			v := wp.Value()
			if v == nil {
				return nil
			}
			return v
		},
		kind: fmt.Sprintf("%T", p),
	}
}

// Bound reports whether the reference was ever pointed at a host.
func (r Ref) Bound() bool {
	return r.get != nil
}

// Value returns the host, or false when the reference is unbound or the
// host has been collected.
func (r Ref) Value() (any, bool) {
	if r.get == nil {
		return nil, false
	}
	v := r.get()
	if v == nil {
		return nil, false
	}
	return v, true
}

// Kind returns the host's type name, recorded when the reference was made.
func (r Ref) Kind() string {
	return r.kind
}

func (r Ref) String() string {
	if r.get == nil {
		return "weakref(unbound)"
	}
	if _, ok := r.Value(); !ok {
		return fmt.Sprintf("weakref(%s, dead)", r.kind)
	}
	return fmt.Sprintf("weakref(%s)", r.kind)
}
