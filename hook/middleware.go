package hook

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"
)

// Middleware wraps a Func to add cross-cutting behavior.
// Middleware executes in FIFO order (first registered wraps first, onion model).
//
// Example usage:
//
//	timing := func(next hook.Func) hook.Func {
//	    return func(ctx context.Context, inv *hook.Invocation) error {
//	        start := time.Now()
//	        defer func() { metrics.Observe(inv.Type, time.Since(start)) }()
//	        return next(ctx, inv)
//	    }
//	}
type Middleware func(next Func) Func

// chain wraps fn so that mw[0] is the outermost layer.
func chain(fn Func, mw []Middleware) Func {
	if fn == nil {
		return nil
	}
	for i := len(mw) - 1; i >= 0; i-- {
		fn = mw[i](fn)
	}
	return fn
}

// PanicError is returned by RecoverMiddleware when a hook panics.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("hook panicked: %v", e.Value)
}

// RecoverMiddleware converts hook panics into a *PanicError, aborting the
// run like any other hook error.
func RecoverMiddleware() Middleware {
	return func(next Func) Func {
		return func(ctx context.Context, inv *Invocation) (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = &PanicError{Value: r, Stack: debug.Stack()}
				}
			}()
			return next(ctx, inv)
		}
	}
}

// LoggingMiddleware logs every hook invocation at debug level and failures
// at error level.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Func) Func {
		return func(ctx context.Context, inv *Invocation) error {
			attrs := []any{slog.String("type", string(inv.Type))}
			if inv.HasIndex {
				attrs = append(attrs, slog.Int("index", inv.Index))
			}
			start := time.Now()
			err := next(ctx, inv)
			attrs = append(attrs, slog.Duration("elapsed", time.Since(start)))
			if err != nil {
				logger.ErrorContext(ctx, "hook failed", append(attrs, slog.Any("error", err))...)
				return err
			}
			logger.DebugContext(ctx, "hook completed", attrs...)
			return nil
		}
	}
}
