package pennant

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/OrlandoBitencourt/pennant/internal/gateway"
	"github.com/OrlandoBitencourt/pennant/internal/telemetry"
)

// Option configures a pennant client.
type Option func(*clientConfig) error

// clientConfig holds internal configuration.
type clientConfig struct {
	config Config

	logger     *slog.Logger
	telemetry  telemetry.Provider
	httpClient *http.Client

	// gateway replaces the HTTP gateway. Tests only.
	gateway gateway.Gateway
}

func newClientConfig() *clientConfig {
	return &clientConfig{config: DefaultConfig()}
}

// WithConfig applies a full Config struct, for example one returned by
// LoadConfig. Options applied later override its fields.
func WithConfig(cfg Config) Option {
	return func(c *clientConfig) error {
		c.config = cfg
		return nil
	}
}

// WithAPIKey sets the API key sent with every request.
func WithAPIKey(apiKey string) Option {
	return func(c *clientConfig) error {
		c.config.APIKey = apiKey
		return nil
	}
}

// WithBaseURL sets the flag API base URL.
//
// Example: pennant.WithBaseURL("https://flags.example.com")
func WithBaseURL(baseURL string) Option {
	return func(c *clientConfig) error {
		if strings.TrimSpace(baseURL) == "" {
			return fmt.Errorf("base URL cannot be empty")
		}
		c.config.BaseURL = baseURL
		return nil
	}
}

// WithTimeout sets the per-request timeout.
// Default: 5 seconds
func WithTimeout(timeout time.Duration) Option {
	return func(c *clientConfig) error {
		if timeout <= 0 {
			return fmt.Errorf("timeout must be positive")
		}
		c.config.Timeout = timeout
		return nil
	}
}

// WithCacheConfig replaces the cache configuration.
func WithCacheConfig(cfg CacheConfig) Option {
	return func(c *clientConfig) error {
		c.config.Cache = cfg
		return nil
	}
}

// WithCacheDisabled sends every evaluation to the network.
func WithCacheDisabled() Option {
	return func(c *clientConfig) error {
		c.config.Cache.Enabled = false
		return nil
	}
}

// WithTTL sets the lifetime of cached results and bulk snapshots.
// Default: 300 seconds
func WithTTL(ttl time.Duration) Option {
	return func(c *clientConfig) error {
		c.config.Cache.TTL = ttl
		return nil
	}
}

// WithMaxEntries bounds the per-flag cache.
// Default: 1000
func WithMaxEntries(n int) Option {
	return func(c *clientConfig) error {
		c.config.Cache.MaxEntries = n
		return nil
	}
}

// WithRefreshInterval sets how often entries near expiry are refetched.
// Zero disables background refresh.
// Default: 60 seconds
//
// Example: pennant.WithRefreshInterval(30 * time.Second)
func WithRefreshInterval(interval time.Duration) Option {
	return func(c *clientConfig) error {
		c.config.Cache.RefreshInterval = interval
		return nil
	}
}

// WithFallbackBehavior sets what happens when a fetch fails and nothing
// is cached.
// Default: ReturnDefault
func WithFallbackBehavior(behavior FallbackBehavior) Option {
	return func(c *clientConfig) error {
		if !behavior.Valid() {
			return fmt.Errorf("invalid fallback behavior: %s", behavior)
		}
		c.config.Cache.FallbackBehavior = behavior
		return nil
	}
}

// WithCircuitBreaker enables the circuit breaker.
//
// Example: pennant.WithCircuitBreaker(3, 30*time.Second)
func WithCircuitBreaker(threshold int, timeout time.Duration) Option {
	return func(c *clientConfig) error {
		c.config.CircuitBreaker = CircuitBreakerConfig{
			Enabled:   true,
			Threshold: threshold,
			Timeout:   timeout,
		}
		return nil
	}
}

// WithLogger sets the logger. The default writes text to stderr at the
// level from Config.Log.
func WithLogger(logger *slog.Logger) Option {
	return func(c *clientConfig) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		c.logger = logger
		return nil
	}
}

// WithHTTPClient sets the HTTP client used for flag API requests.
func WithHTTPClient(client *http.Client) Option {
	return func(c *clientConfig) error {
		c.httpClient = client
		return nil
	}
}

// WithOpenTelemetry records traces and metrics through the global
// OpenTelemetry providers.
func WithOpenTelemetry() Option {
	return func(c *clientConfig) error {
		tp, err := telemetry.NewOTel()
		if err != nil {
			return fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		c.telemetry = tp
		return nil
	}
}

// WithTelemetry sets a custom telemetry provider.
func WithTelemetry(tp TelemetryProvider) Option {
	return func(c *clientConfig) error {
		c.telemetry = tp
		return nil
	}
}

// WithWebhookInvalidation enables the webhook server. External systems
// POST change notifications to /webhook:
//
//	{
//	  "event": "flag.updated",
//	  "flag_keys": ["flag1", "flag2"],
//	  "timestamp": "2025-01-15T10:30:00Z"
//	}
//
// Affected flags are dropped from the cache together with the bulk snapshot.
func WithWebhookInvalidation(config WebhookConfig) Option {
	return func(c *clientConfig) error {
		if config.Addr == "" {
			return fmt.Errorf("webhook address cannot be empty")
		}
		c.config.Webhook = config
		return nil
	}
}

// WithAdminServer enables the admin HTTP server.
//
// Endpoints:
//   - GET /health
//   - GET /admin/stats
//   - GET /admin/flags/{flagKey}
//   - POST /admin/flags/{flagKey}/invalidate
//   - POST /admin/cache/clear
//   - POST /admin/preload
//   - POST /admin/refresh
func WithAdminServer(config AdminConfig) Option {
	return func(c *clientConfig) error {
		if config.Addr == "" {
			return fmt.Errorf("admin address cannot be empty")
		}
		c.config.Admin = config
		return nil
	}
}

func withGateway(gw gateway.Gateway) Option {
	return func(c *clientConfig) error {
		c.gateway = gw
		return nil
	}
}
