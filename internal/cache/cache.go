package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/OrlandoBitencourt/pennant/internal/domain"
	"github.com/OrlandoBitencourt/pennant/internal/evaluator"
	"github.com/OrlandoBitencourt/pennant/internal/gateway"
	"github.com/OrlandoBitencourt/pennant/internal/telemetry"
)

// Evaluation sources.
const (
	SourceBulk     = "bulk"
	SourceCache    = "cache"
	SourceNetwork  = "network"
	SourceFallback = "fallback"
)

// Cache is the main orchestrator that coordinates all components
type Cache struct {
	// Dependencies (injected)
	gateway   gateway.Gateway
	evaluator evaluator.Evaluator
	logger    *slog.Logger
	telemetry telemetry.Provider

	// Configuration
	config Config

	flags     *FlagStore
	bulk      *BulkStore
	refresher *Refresher

	bulkGroup singleflight.Group
	closed    atomic.Bool
}

// New creates a new cache with the given options
func New(opts ...Option) (*Cache, error) {
	c := &Cache{
		config: DefaultConfig(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.gateway == nil {
		return nil, fmt.Errorf("gateway is required")
	}
	if c.evaluator == nil {
		c.evaluator = evaluator.New()
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.telemetry == nil {
		c.telemetry = telemetry.NewNoOp()
	}

	if err := c.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	c.flags = NewFlagStore(c.config.TTL, c.config.MaxEntries)
	c.bulk = NewBulkStore(c.config.TTL)
	c.refresher = NewRefresher(c.flags, c.gateway, c.config, c.logger, c.telemetry)

	return c, nil
}

// Start starts the background refresher when caching is enabled.
func (c *Cache) Start() {
	if !c.config.Enabled {
		return
	}
	c.refresher.Start()
}

// IsEnabled evaluates flagKey for targetID. The bulk snapshot is
// consulted first, then the per-flag cache, then the network. Failures
// resolve through the configured fallback.
func (c *Cache) IsEnabled(ctx context.Context, flagKey string, def bool, targetID string) (bool, error) {
	if flagKey == "" {
		return def, domain.NewParameterError("flagKey", "must not be empty")
	}

	start := time.Now()
	key := domain.NewCacheKey(flagKey, targetID)

	if c.config.Enabled {
		if flag, ok := c.bulk.Lookup(flagKey); ok {
			c.telemetry.RecordCacheHit(ctx, telemetry.LayerBulk, flagKey)
			value := c.evaluator.Evaluate(flag, targetID)
			c.telemetry.RecordEvaluation(ctx, flagKey, SourceBulk, time.Since(start))
			return value, nil
		}
		c.telemetry.RecordCacheMiss(ctx, telemetry.LayerBulk, flagKey)

		if value, ok := c.flags.Get(key); ok {
			c.telemetry.RecordCacheHit(ctx, telemetry.LayerPerFlag, flagKey)
			c.telemetry.RecordEvaluation(ctx, flagKey, SourceCache, time.Since(start))
			return value, nil
		}
		c.telemetry.RecordCacheMiss(ctx, telemetry.LayerPerFlag, flagKey)
	}

	res := c.gateway.FetchFlag(ctx, flagKey, targetID, def)
	if res.Cacheable {
		if c.config.Enabled {
			c.flags.Put(key, res.Value)
		}
		c.telemetry.RecordEvaluation(ctx, flagKey, SourceNetwork, time.Since(start))
		return res.Value, nil
	}

	c.telemetry.RecordEvaluation(ctx, flagKey, SourceFallback, time.Since(start))
	return c.fallback(ctx, flagKey, def, res.Err)
}

// Bool evaluates flagKey and never fails. Any error yields def,
// including a ParameterError for an empty key, which is logged as a
// warning.
func (c *Cache) Bool(ctx context.Context, flagKey string, def bool, targetID string) bool {
	value, err := c.IsEnabled(ctx, flagKey, def, targetID)
	if err != nil {
		if domain.IsParameterError(err) {
			c.logger.WarnContext(ctx, "invalid flag evaluation", slog.Any("error", err))
		}
		return def
	}
	return value
}

func (c *Cache) fallback(ctx context.Context, flagKey string, def bool, cause error) (bool, error) {
	switch c.config.Fallback {
	case FallbackThrowError:
		if cause == nil {
			cause = domain.NewAPIError(0, "flag fetch failed", nil)
		}
		return def, fmt.Errorf("evaluate flag %s: %w", flagKey, cause)

	case FallbackRetryAPI:
		// No retry policy exists yet; same result as FallbackReturnDefault.
		c.logger.DebugContext(ctx, "fallback applied",
			slog.String("flag", flagKey),
			slog.String("policy", string(FallbackRetryAPI)),
			slog.Bool("default", def),
		)
		return def, nil

	default:
		c.logger.DebugContext(ctx, "fallback applied",
			slog.String("flag", flagKey),
			slog.String("policy", string(FallbackReturnDefault)),
			slog.Bool("default", def),
		)
		return def, nil
	}
}

// GetAllFlags returns the flag catalog, from the bulk snapshot while it
// is fresh. Concurrent misses share one network call. A caller whose ctx
// ends stops waiting without cancelling the shared call.
func (c *Cache) GetAllFlags(ctx context.Context) (map[string]domain.Flag, error) {
	if c.config.Enabled {
		if snap, ok := c.bulk.Get(); ok {
			c.telemetry.RecordCacheHit(ctx, telemetry.LayerBulk, "*")
			return domain.CopyFlags(snap.Flags), nil
		}
		c.telemetry.RecordCacheMiss(ctx, telemetry.LayerBulk, "*")
	}

	// The shared fetch outlives any single caller; the gateway timeout
	// still bounds it.
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.bulkGroup.DoChan("all", func() (any, error) {
		flags, err := c.gateway.FetchAllFlags(fetchCtx)
		if err != nil {
			return nil, err
		}
		if c.config.Enabled {
			c.bulk.Put(flags)
		}
		return flags, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			c.logger.WarnContext(ctx, "failed to fetch all flags", slog.Any("error", res.Err))
			return nil, res.Err
		}
		return domain.CopyFlags(res.Val.(map[string]domain.Flag)), nil
	}
}

// PreloadFlags warms the bulk snapshot. Failures are logged, not returned.
func (c *Cache) PreloadFlags(ctx context.Context) {
	flags, err := c.GetAllFlags(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "flag preload failed", slog.Any("error", err))
		return
	}
	c.logger.InfoContext(ctx, "flags preloaded", slog.Int("count", len(flags)))
}

// Refresh runs one refresh cycle now.
func (c *Cache) Refresh(ctx context.Context) (CycleResult, error) {
	if !c.config.Enabled {
		return CycleResult{}, errors.New("cache is disabled")
	}
	return c.refresher.RunOnce(ctx)
}

// InvalidateFlag drops every per-flag entry of flagKey and the bulk
// snapshot, which may hold a stale definition of it.
func (c *Cache) InvalidateFlag(flagKey string) int {
	removed := c.flags.InvalidateFlag(flagKey)
	c.bulk.Clear()
	return removed
}

// Clear empties both cache layers.
func (c *Cache) Clear() {
	c.flags.Clear()
	c.bulk.Clear()
}

// Close stops the refresher and empties both layers. Close is idempotent.
func (c *Cache) Close() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	c.refresher.Stop()
	c.Clear()
}

// Stats represents cache statistics
type Stats struct {
	Enabled   bool
	Flags     StoreStats
	Bulk      BulkStats
	Refresher RefresherStats
}

// Stats returns cache statistics
func (c *Cache) Stats() Stats {
	return Stats{
		Enabled:   c.config.Enabled,
		Flags:     c.flags.Stats(),
		Bulk:      c.bulk.Stats(),
		Refresher: c.refresher.Stats(),
	}
}

// DebugInfo describes how one flag would currently resolve.
type DebugInfo struct {
	Entry    EntryInfo
	InBulk   bool
	Flag     *domain.Flag
	Strategy domain.Strategy
}

// Debug inspects flagKey for targetID without affecting LRU order.
func (c *Cache) Debug(flagKey, targetID string) DebugInfo {
	info := DebugInfo{
		Entry: c.flags.Debug(domain.NewCacheKey(flagKey, targetID)),
	}
	if flag, ok := c.bulk.Lookup(flagKey); ok {
		info.InBulk = true
		info.Flag = &flag
		info.Strategy = domain.StrategyOf(flag)
	}
	return info
}

// Config returns the cache configuration.
func (c *Cache) Config() Config {
	return c.config
}
