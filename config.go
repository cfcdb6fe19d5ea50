package pennant

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/OrlandoBitencourt/pennant/internal/cache"
	"github.com/OrlandoBitencourt/pennant/internal/logger"
)

// EnvPrefix prefixes every environment variable read by LoadConfig.
const EnvPrefix = "PENNANT_"

// DefaultBaseURL is used when no base URL is configured.
const DefaultBaseURL = "http://localhost:3000"

// Config holds all configuration for a pennant client.
type Config struct {
	// APIKey authenticates every request. Its content is opaque; see Environment.
	APIKey string `env:"API_KEY"`

	// BaseURL is the root of the flag API.
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:3000"`

	// Timeout bounds each network request.
	Timeout time.Duration `env:"TIMEOUT" envDefault:"5s"`

	Cache          CacheConfig          `envPrefix:"CACHE_"`
	CircuitBreaker CircuitBreakerConfig `envPrefix:"CIRCUIT_BREAKER_"`
	Log            LogConfig            `envPrefix:"LOG_"`
	Admin          AdminConfig          `envPrefix:"ADMIN_"`
	Webhook        WebhookConfig        `envPrefix:"WEBHOOK_"`
}

// CacheConfig configures both cache layers and the background refresher.
type CacheConfig struct {
	// Enabled turns caching on. When false every evaluation hits the network.
	Enabled bool `env:"ENABLED" envDefault:"true"`

	// TTL applies to per-flag entries and to the bulk snapshot.
	TTL time.Duration `env:"TTL" envDefault:"300s"`

	// MaxEntries bounds the per-flag cache.
	MaxEntries int `env:"MAX_ENTRIES" envDefault:"1000"`

	// RefreshInterval is the background refresh period. Zero disables it.
	RefreshInterval time.Duration `env:"REFRESH_INTERVAL" envDefault:"60s"`

	// FallbackBehavior governs failed evaluations with nothing cached.
	FallbackBehavior FallbackBehavior `env:"FALLBACK_BEHAVIOR" envDefault:"return_default"`
}

// CircuitBreakerConfig configures the optional circuit breaker.
type CircuitBreakerConfig struct {
	Enabled bool `env:"ENABLED"`

	// Threshold is the number of consecutive outages before opening.
	Threshold int `env:"THRESHOLD" envDefault:"3"`

	// Timeout is how long to wait before attempting recovery.
	Timeout time.Duration `env:"TIMEOUT" envDefault:"30s"`
}

// LogConfig configures the default logger. Ignored when WithLogger is used.
type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"text"`
}

// AdminConfig configures the admin HTTP server. An empty Addr disables it.
type AdminConfig struct {
	Addr string `env:"ADDR"`
}

// WebhookConfig configures webhook invalidation. An empty Addr disables it.
type WebhookConfig struct {
	Addr string `env:"ADDR"`

	// Secret is the shared HMAC-SHA256 key. Empty disables signature checks.
	Secret string `env:"SECRET"`
}

// DefaultConfig returns recommended default configuration.
func DefaultConfig() Config {
	defaults := cache.DefaultConfig()
	return Config{
		BaseURL: DefaultBaseURL,
		Timeout: 5 * time.Second,
		Cache: CacheConfig{
			Enabled:          defaults.Enabled,
			TTL:              defaults.TTL,
			MaxEntries:       defaults.MaxEntries,
			RefreshInterval:  defaults.RefreshInterval,
			FallbackBehavior: ReturnDefault,
		},
		CircuitBreaker: CircuitBreakerConfig{
			Threshold: 3,
			Timeout:   30 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: string(logger.FormatText),
		},
	}
}

// LoadConfig reads configuration from PENNANT_* environment variables.
// With no paths, a .env file in the working directory is loaded when
// present; explicit paths must exist.
func LoadConfig(paths ...string) (Config, error) {
	if len(paths) == 0 {
		_ = godotenv.Load()
	} else if err := godotenv.Load(paths...); err != nil {
		return Config{}, errors.Join(ErrParsingConfig, err)
	}

	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, errors.Join(ErrParsingConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate validates the configuration.
func (c Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return &ValidationError{Field: "base_url", Message: fmt.Sprintf("invalid URL %q", c.BaseURL)}
	}

	if c.Timeout <= 0 {
		return &ValidationError{Field: "timeout", Message: "must be positive"}
	}

	if err := c.Cache.toInternal().Validate(); err != nil {
		return err
	}

	if c.CircuitBreaker.Enabled {
		if c.CircuitBreaker.Threshold < 1 {
			return &ValidationError{Field: "circuit_breaker.threshold", Message: "must be at least 1"}
		}
		if c.CircuitBreaker.Timeout <= 0 {
			return &ValidationError{Field: "circuit_breaker.timeout", Message: "must be positive"}
		}
	}

	switch logger.Format(strings.ToLower(c.Log.Format)) {
	case logger.FormatText, logger.FormatJSON, "":
	default:
		return &ValidationError{Field: "log.format", Message: fmt.Sprintf("invalid format %q", c.Log.Format)}
	}

	if err := validateAddr("admin.addr", c.Admin.Addr); err != nil {
		return err
	}
	if err := validateAddr("webhook.addr", c.Webhook.Addr); err != nil {
		return err
	}

	return nil
}

// Environment reports the API key prefix before the first underscore,
// such as "live" or "test". It is informational only.
func (c Config) Environment() string {
	return environmentOf(c.APIKey)
}

func environmentOf(apiKey string) string {
	prefix, _, found := strings.Cut(apiKey, "_")
	if !found || prefix == "" {
		return "unknown"
	}
	return prefix
}

func (c CacheConfig) toInternal() cache.Config {
	config := cache.DefaultConfig()
	config.Enabled = c.Enabled
	config.TTL = c.TTL
	config.MaxEntries = c.MaxEntries
	config.RefreshInterval = c.RefreshInterval
	config.Fallback = c.FallbackBehavior
	return config
}

func validateAddr(field, addr string) error {
	if addr == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return &ValidationError{Field: field, Message: fmt.Sprintf("invalid address %q", addr)}
	}
	return nil
}
