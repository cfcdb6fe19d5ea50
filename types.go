package pennant

import (
	"time"

	"github.com/OrlandoBitencourt/pennant/internal/cache"
	"github.com/OrlandoBitencourt/pennant/internal/domain"
	"github.com/OrlandoBitencourt/pennant/internal/telemetry"
)

// Flag is the definition of one flag as returned by the bulk endpoint.
type Flag = domain.Flag

// TelemetryProvider receives spans and metrics. See WithTelemetry.
type TelemetryProvider = telemetry.Provider

// FallbackBehavior governs failed evaluations with nothing cached.
type FallbackBehavior = cache.Fallback

const (
	// ReturnDefault returns the caller's default value.
	ReturnDefault = cache.FallbackReturnDefault

	// ThrowError returns the classified fetch error.
	ThrowError = cache.FallbackThrowError

	// RetryAPI is reserved for a retry policy and currently returns the
	// default value.
	RetryAPI = cache.FallbackRetryAPI
)

// EvalOption customizes a single evaluation.
type EvalOption func(*evalOptions)

type evalOptions struct {
	targetID    string
	hasTargetID bool
}

// WithTargetID evaluates for a specific user, device or tenant.
func WithTargetID(targetID string) EvalOption {
	return func(o *evalOptions) {
		o.targetID = targetID
		o.hasTargetID = true
	}
}

func newEvalOptions(opts []EvalOption) evalOptions {
	var o evalOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// CacheStats is a point-in-time view of the cache.
type CacheStats struct {
	Enabled bool

	// Size is the number of per-flag entries.
	Size int

	// HitRate is the share of resident entries last accessed after they
	// were stored. It is not a lifetime hit/miss ratio.
	HitRate float64

	ExpiredEntries      int
	MemoryUsageEstimate int
	Evictions           uint64

	BulkCached    bool
	BulkFlagCount int
	BulkExpiresAt time.Time

	LastRefreshAt       time.Time
	RefreshSkippedTicks int64
}

func toCacheStats(s cache.Stats) CacheStats {
	return CacheStats{
		Enabled:             s.Enabled,
		Size:                s.Flags.Size,
		HitRate:             s.Flags.HitRate,
		ExpiredEntries:      s.Flags.ExpiredEntries,
		MemoryUsageEstimate: s.Flags.MemoryUsageEstimate,
		Evictions:           s.Flags.Evictions,
		BulkCached:          s.Bulk.Cached,
		BulkFlagCount:       s.Bulk.FlagCount,
		BulkExpiresAt:       s.Bulk.ExpiresAt,
		LastRefreshAt:       s.Refresher.LastRefreshAt,
		RefreshSkippedTicks: s.Refresher.SkippedTicks,
	}
}

// FlagDebugInfo describes the cached state of one flag.
type FlagDebugInfo struct {
	Key      string
	TargetID string

	Cached          bool
	Value           bool
	CachedAt        time.Time
	ExpiresAt       time.Time
	LastAccessed    time.Time
	TimeUntilExpiry time.Duration
	Expired         bool

	// InBulk is true when a fresh bulk snapshot defines the flag. Bulk
	// definitions take precedence over per-flag entries.
	InBulk   bool
	Flag     *Flag
	Strategy string
}

func toFlagDebugInfo(flagKey string, info cache.DebugInfo) FlagDebugInfo {
	return FlagDebugInfo{
		Key:             flagKey,
		TargetID:        info.Entry.Key.Target,
		Cached:          info.Entry.Cached,
		Value:           info.Entry.Value,
		CachedAt:        info.Entry.CachedAt,
		ExpiresAt:       info.Entry.ExpiresAt,
		LastAccessed:    info.Entry.LastAccessed,
		TimeUntilExpiry: info.Entry.TimeUntilExpiry,
		Expired:         info.Entry.Expired,
		InBulk:          info.InBulk,
		Flag:            info.Flag,
		Strategy:        string(info.Strategy),
	}
}
