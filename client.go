// Package pennant evaluates remote feature flags for a target through a
// layered local cache: a bulk snapshot of flag definitions evaluated
// locally, a per-flag LRU cache of remote results, and the network.
package pennant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/OrlandoBitencourt/pennant/internal/cache"
	"github.com/OrlandoBitencourt/pennant/internal/circuit"
	"github.com/OrlandoBitencourt/pennant/internal/evaluator"
	"github.com/OrlandoBitencourt/pennant/internal/gateway"
	"github.com/OrlandoBitencourt/pennant/internal/logger"
	"github.com/OrlandoBitencourt/pennant/internal/server"
	"github.com/OrlandoBitencourt/pennant/internal/telemetry"
)

const shutdownTimeout = 5 * time.Second

// Client is the main entry point for pennant.
// It is safe for concurrent use.
type Client struct {
	cache     *cache.Cache
	breaker   *circuit.Breaker
	logger    *slog.Logger
	telemetry telemetry.Provider
	config    Config

	admin   *server.AdminServer
	webhook *server.WebhookServer

	startOnce sync.Once
	closeOnce sync.Once
	closeErr  error
}

// New creates a new pennant client with the given options. Background
// refresh starts immediately unless caching is disabled or the refresh
// interval is zero.
//
// Example:
//
//	client, err := pennant.New(
//	    pennant.WithAPIKey(os.Getenv("PENNANT_API_KEY")),
//	    pennant.WithBaseURL("https://flags.example.com"),
//	    pennant.WithTTL(2 * time.Minute),
//	)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
func New(opts ...Option) (*Client, error) {
	cfg := newClientConfig()

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	client := &Client{
		config:    cfg.config,
		logger:    cfg.logger,
		telemetry: cfg.telemetry,
	}

	if client.logger == nil {
		client.logger = logger.New(
			logger.WithLevelName(cfg.config.Log.Level),
			logger.WithFormat(logger.Format(strings.ToLower(cfg.config.Log.Format))),
		)
	}
	client.logger = client.logger.With(slog.String("component", "pennant"))

	if client.telemetry == nil {
		client.telemetry = telemetry.NewNoOp()
	}

	gw := cfg.gateway
	if gw == nil {
		if cfg.config.CircuitBreaker.Enabled {
			client.breaker = client.newBreaker(cfg.config.CircuitBreaker)
		}
		gw = gateway.NewHTTP(gateway.Config{
			BaseURL:    cfg.config.BaseURL,
			APIKey:     cfg.config.APIKey,
			Timeout:    cfg.config.Timeout,
			HTTPClient: cfg.httpClient,
			Breaker:    client.breaker,
			Logger:     client.logger,
			Telemetry:  client.telemetry,
		})
	}

	c, err := cache.New(
		cache.WithGateway(gw),
		cache.WithEvaluator(evaluator.New()),
		cache.WithConfig(cfg.config.Cache.toInternal()),
		cache.WithLogger(client.logger),
		cache.WithTelemetry(client.telemetry),
	)
	if err != nil {
		return nil, err
	}
	client.cache = c

	if addr := cfg.config.Admin.Addr; addr != "" {
		client.admin = server.NewAdminServer(c, addr, client.logger)
	}
	if addr := cfg.config.Webhook.Addr; addr != "" {
		client.webhook = server.NewWebhookServer(c, addr, cfg.config.Webhook.Secret, client.logger)
	}

	c.Start()

	client.logger.Debug("client created",
		slog.String("environment", cfg.config.Environment()),
		slog.Bool("cache_enabled", cfg.config.Cache.Enabled),
	)

	return client, nil
}

func (c *Client) newBreaker(config CircuitBreakerConfig) *circuit.Breaker {
	return circuit.New(circuit.Config{
		MaxFailures:       config.Threshold,
		Timeout:           config.Timeout,
		HalfOpenSuccesses: circuit.DefaultConfig().HalfOpenSuccesses,
		OnStateChange: func(from, to circuit.State) {
			c.logger.Warn("circuit breaker state changed",
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})
}

// Start launches the admin and webhook servers when configured. It does
// not block; listener errors are logged. Start is a no-op after the
// first call.
func (c *Client) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.startOnce.Do(func() {
		if c.webhook != nil {
			go c.serve("webhook", c.webhook.Start)
		}
		if c.admin != nil {
			go c.serve("admin", c.admin.Start)
		}
	})
	return nil
}

func (c *Client) serve(name string, start func() error) {
	if err := start(); err != nil {
		c.logger.Error("server stopped", slog.String("server", name), slog.Any("error", err))
	}
}

// Close stops background refresh, shuts down the servers and clears
// both cache layers. In-flight evaluations complete normally. Close is
// idempotent.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs []error
		if c.admin != nil {
			if err := c.admin.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("admin server: %w", err))
			}
		}
		if c.webhook != nil {
			if err := c.webhook.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("webhook server: %w", err))
			}
		}

		c.cache.Close()
		c.closeErr = errors.Join(errs...)
	})
	return c.closeErr
}

// IsEnabled reports whether flagKey is enabled. Without WithTargetID the
// target installed by HTTPMiddleware, if any, is used. An empty flagKey
// returns a ParameterError. Fetch failures resolve to def unless the
// fallback behavior is ThrowError.
//
// Example:
//
//	enabled, err := client.IsEnabled(ctx, "new-checkout", false,
//	    pennant.WithTargetID("user-123"))
func (c *Client) IsEnabled(ctx context.Context, flagKey string, def bool, opts ...EvalOption) (bool, error) {
	o := newEvalOptions(opts)
	targetID := o.targetID
	if !o.hasTargetID {
		targetID = server.TargetIDFrom(ctx)
	}

	ctx, span := c.telemetry.StartSpan(ctx, "pennant.is_enabled",
		telemetry.String("flag.key", flagKey),
		telemetry.Bool("flag.targeted", targetID != ""),
	)
	defer span.End()

	value, err := c.cache.IsEnabled(ctx, flagKey, def, targetID)
	if err != nil {
		span.RecordError(err)
		return value, err
	}
	span.SetAttributes(telemetry.Bool("flag.value", value))
	return value, nil
}

// Bool evaluates a flag and never fails: any error yields def. A
// ParameterError (empty flagKey) is swallowed too and logged as a warning;
// use IsEnabled to receive it.
func (c *Client) Bool(ctx context.Context, flagKey string, def bool, opts ...EvalOption) bool {
	value, err := c.IsEnabled(ctx, flagKey, def, opts...)
	if err != nil {
		if IsParameterError(err) {
			c.logger.WarnContext(ctx, "invalid flag evaluation", slog.Any("error", err))
		}
		return def
	}
	return value
}

// GetAllFlags returns every flag definition. A fresh bulk snapshot is
// served from memory; otherwise the flag API is called and, with caching
// enabled, the snapshot is stored. Failures are returned as
// AuthenticationError, APIError or NetworkError.
func (c *Client) GetAllFlags(ctx context.Context) (map[string]Flag, error) {
	ctx, span := c.telemetry.StartSpan(ctx, "pennant.get_all_flags")
	defer span.End()

	flags, err := c.cache.GetAllFlags(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return flags, nil
}

// PreloadFlags warms the bulk snapshot. Errors are logged and dropped.
func (c *Client) PreloadFlags(ctx context.Context) {
	c.cache.PreloadFlags(ctx)
}

// GetCacheStats returns cache statistics.
func (c *Client) GetCacheStats() CacheStats {
	return toCacheStats(c.cache.Stats())
}

// DebugFlag reports the cached state of flagKey for the given target.
func (c *Client) DebugFlag(flagKey string, opts ...EvalOption) FlagDebugInfo {
	o := newEvalOptions(opts)
	return toFlagDebugInfo(flagKey, c.cache.Debug(flagKey, o.targetID))
}

// ClearCache empties both cache layers.
func (c *Client) ClearCache() {
	c.cache.Clear()
}

// InvalidateFlag drops every cached result of flagKey and the bulk
// snapshot. It returns the number of per-flag entries removed.
func (c *Client) InvalidateFlag(flagKey string) int {
	return c.cache.InvalidateFlag(flagKey)
}

// Environment reports the API key's environment prefix.
func (c *Client) Environment() string {
	return c.config.Environment()
}
