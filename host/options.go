package host

import (
	"log/slog"

	"github.com/reglet-dev/reglet-compose/capability"
	"github.com/reglet-dev/reglet-compose/domain/entities"
	"github.com/reglet-dev/reglet-compose/hook"
)

// Option defines a functional option for configuring a Core.
type Option func(*config)

type config struct {
	policy     entities.CheckPolicy
	logger     *slog.Logger
	middleware []hook.Middleware
	checker    *capability.Checker
}

func defaultConfig() config {
	return config{
		policy:  entities.DefaultCheckPolicy,
		logger:  slog.Default(),
		checker: capability.NewChecker(),
	}
}

// WithPolicy sets the check policy applied to the host and every unit that
// does not declare its own.
func WithPolicy(p entities.CheckPolicy) Option {
	return func(c *config) {
		if p.Valid() {
			c.policy = p
		}
	}
}

// WithLogger sets the logger shared by the host and its units.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMiddleware wraps every hook of the host and its units.
func WithMiddleware(mw ...hook.Middleware) Option {
	return func(c *config) {
		c.middleware = append(c.middleware, mw...)
	}
}

// WithChecker sets the capability checker.
func WithChecker(checker *capability.Checker) Option {
	return func(c *config) {
		if checker != nil {
			c.checker = checker
		}
	}
}
