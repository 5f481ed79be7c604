package hook

import (
	"context"
	"fmt"
	"reflect"
)

var (
	ctxType        = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType      = reflect.TypeOf((*error)(nil)).Elem()
	invocationType = reflect.TypeOf((*Invocation)(nil))
)

// Wrap normalizes a function into a Func. Supported shapes:
//
//	func()
//	func() error
//	func(context.Context) error
//	func(*Invocation)
//	func(*Invocation) error
//	func(context.Context, *Invocation) error
//	func(T1, ..., Tn) [error]                 positional, filled from Invocation.Args
//	                                          (functions without parameters ignore them)
//	func(context.Context, T1, ..., Tn) [error]
func Wrap(fn any) (Func, error) {
	switch f := fn.(type) {
	case nil:
		return nil, fmt.Errorf("hook function is nil")
	case Func:
		return f, nil
	case func(context.Context, *Invocation) error:
		return f, nil
	case func():
		return func(context.Context, *Invocation) error { f(); return nil }, nil
	case func() error:
		return func(context.Context, *Invocation) error { return f() }, nil
	case func(context.Context) error:
		return func(ctx context.Context, _ *Invocation) error { return f(ctx) }, nil
	case func(*Invocation):
		return func(_ context.Context, inv *Invocation) error { f(inv); return nil }, nil
	case func(*Invocation) error:
		return func(_ context.Context, inv *Invocation) error { return f(inv) }, nil
	}
	return wrapValue(reflect.ValueOf(fn))
}

// wrapValue wraps a reflected function or bound method value.
func wrapValue(fn reflect.Value) (Func, error) {
	if fn.Kind() != reflect.Func {
		return nil, fmt.Errorf("hook must be a function, got %s", fn.Type())
	}
	if fn.IsNil() {
		return nil, fmt.Errorf("hook function is nil")
	}
	ft := fn.Type()

	if ft.IsVariadic() {
		return nil, fmt.Errorf("variadic hook signature %s is not supported", ft)
	}
	switch {
	case ft.NumOut() == 0:
	case ft.NumOut() == 1 && ft.Out(0) == errorType:
	default:
		return nil, fmt.Errorf("hook must return nothing or error, got %s", ft)
	}

	withCtx := ft.NumIn() > 0 && ft.In(0) == ctxType
	first := 0
	if withCtx {
		first = 1
	}
	if ft.NumIn() == first+1 && ft.In(first) == invocationType {
		return func(ctx context.Context, inv *Invocation) error {
			in := []reflect.Value{reflect.ValueOf(inv)}
			if withCtx {
				in = append([]reflect.Value{reflect.ValueOf(&ctx).Elem()}, in...)
			}
			return callResult(fn.Call(in))
		}, nil
	}

	params := make([]reflect.Type, 0, ft.NumIn()-first)
	for i := first; i < ft.NumIn(); i++ {
		params = append(params, ft.In(i))
	}

	return func(ctx context.Context, inv *Invocation) error {
		if len(params) > 0 && len(inv.Args) != len(params) {
			return fmt.Errorf("hook %s: expects %d arguments, got %d", inv.Type, len(params), len(inv.Args))
		}
		in := make([]reflect.Value, 0, ft.NumIn())
		if withCtx {
			in = append(in, reflect.ValueOf(&ctx).Elem())
		}
		for i, pt := range params {
			v, err := argValue(inv.Args[i], pt)
			if err != nil {
				return fmt.Errorf("hook %s: argument %d: %w", inv.Type, i, err)
			}
			in = append(in, v)
		}
		return callResult(fn.Call(in))
	}, nil
}

func argValue(arg any, pt reflect.Type) (reflect.Value, error) {
	if arg == nil {
		switch pt.Kind() {
		case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			return reflect.Zero(pt), nil
		}
		return reflect.Value{}, fmt.Errorf("cannot use nil as %s", pt)
	}
	v := reflect.ValueOf(arg)
	if !v.Type().AssignableTo(pt) {
		return reflect.Value{}, fmt.Errorf("cannot use %s as %s", v.Type(), pt)
	}
	return v, nil
}

func callResult(out []reflect.Value) error {
	if len(out) == 0 || out[0].IsNil() {
		return nil
	}
	return out[0].Interface().(error)
}
