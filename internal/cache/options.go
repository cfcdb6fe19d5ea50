package cache

import (
	"log/slog"

	"github.com/OrlandoBitencourt/pennant/internal/evaluator"
	"github.com/OrlandoBitencourt/pennant/internal/gateway"
	"github.com/OrlandoBitencourt/pennant/internal/telemetry"
)

// Option configures the cache
type Option func(*Cache)

// WithGateway sets the flag API gateway
func WithGateway(gw gateway.Gateway) Option {
	return func(c *Cache) {
		c.gateway = gw
	}
}

// WithEvaluator sets the local evaluator used for bulk snapshot hits
func WithEvaluator(ev evaluator.Evaluator) Option {
	return func(c *Cache) {
		c.evaluator = ev
	}
}

// WithConfig sets the cache configuration
func WithConfig(config Config) Option {
	return func(c *Cache) {
		c.config = config
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// WithTelemetry sets the telemetry provider
func WithTelemetry(tp telemetry.Provider) Option {
	return func(c *Cache) {
		c.telemetry = tp
	}
}
