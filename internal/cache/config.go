package cache

import (
	"fmt"
	"strings"
	"time"

	"github.com/OrlandoBitencourt/pennant/internal/domain"
)

// Fallback selects what happens when a flag fetch fails and nothing is cached.
type Fallback string

const (
	// FallbackReturnDefault returns the caller's default value.
	FallbackReturnDefault Fallback = "return_default"

	// FallbackThrowError returns the classified fetch error to the caller.
	FallbackThrowError Fallback = "throw_error"

	// FallbackRetryAPI is reserved for a retry policy. It currently
	// returns the default value, exactly like FallbackReturnDefault.
	FallbackRetryAPI Fallback = "retry_api"
)

// Valid reports whether f is a known fallback.
func (f Fallback) Valid() bool {
	switch f {
	case FallbackReturnDefault, FallbackThrowError, FallbackRetryAPI:
		return true
	}
	return false
}

// UnmarshalText accepts the constant names, case-insensitively.
func (f *Fallback) UnmarshalText(text []byte) error {
	v := Fallback(strings.ToLower(strings.TrimSpace(string(text))))
	if !v.Valid() {
		return fmt.Errorf("invalid fallback behavior %q", string(text))
	}
	*f = v
	return nil
}

func (f Fallback) String() string { return string(f) }

// Config holds cache configuration
type Config struct {
	// Enabled turns both cache layers on. When false every evaluation
	// goes to the network.
	Enabled bool

	// TTL applies to per-flag entries and to the bulk snapshot.
	TTL time.Duration

	// MaxEntries bounds the per-flag cache.
	MaxEntries int

	// RefreshInterval is the background refresh period. Zero disables it.
	RefreshInterval time.Duration

	// RefreshWindow selects entries expiring within this window.
	RefreshWindow time.Duration

	// RefreshConcurrency bounds concurrent refetches in one cycle.
	RefreshConcurrency int

	Fallback Fallback
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		Enabled:            true,
		TTL:                300 * time.Second,
		MaxEntries:         1000,
		RefreshInterval:    60 * time.Second,
		RefreshWindow:      30 * time.Second,
		RefreshConcurrency: 16,
		Fallback:           FallbackReturnDefault,
	}
}

// Validate validates the configuration
func (c Config) Validate() error {
	if c.TTL <= 0 {
		return domain.NewValidationError("ttl", "must be positive")
	}

	if c.MaxEntries < 1 {
		return domain.NewValidationError("max_entries", "must be at least 1")
	}

	if c.RefreshInterval < 0 {
		return domain.NewValidationError("refresh_interval", "must not be negative")
	}

	if c.RefreshWindow < 0 {
		return domain.NewValidationError("refresh_window", "must not be negative")
	}

	if c.RefreshConcurrency < 1 {
		return domain.NewValidationError("refresh_concurrency", "must be at least 1")
	}

	if !c.Fallback.Valid() {
		return domain.NewValidationError("fallback", fmt.Sprintf("invalid fallback behavior %q (must be %q, %q or %q)",
			c.Fallback, FallbackReturnDefault, FallbackThrowError, FallbackRetryAPI))
	}

	return nil
}
