package server

import (
	"time"

	"github.com/OrlandoBitencourt/pennant/internal/cache"
	"github.com/OrlandoBitencourt/pennant/internal/domain"
)

type statsResponse struct {
	Enabled             bool      `json:"enabled"`
	Size                int       `json:"size"`
	HitRate             float64   `json:"hit_rate"`
	ExpiredEntries      int       `json:"expired_entries"`
	MemoryUsageEstimate int       `json:"memory_usage_estimate"`
	Evictions           uint64    `json:"evictions"`
	Expirations         uint64    `json:"expirations"`
	BulkCached          bool      `json:"bulk_cached"`
	BulkFlags           int       `json:"bulk_flags"`
	BulkExpiresAt       time.Time `json:"bulk_expires_at,omitzero"`
	RefreshState        string    `json:"refresh_state"`
	RefreshCycles       int64     `json:"refresh_cycles"`
	RefreshSkippedTicks int64     `json:"refresh_skipped_ticks"`
	LastRefreshAt       time.Time `json:"last_refresh_at,omitzero"`
}

func newStatsResponse(s cache.Stats) statsResponse {
	return statsResponse{
		Enabled:             s.Enabled,
		Size:                s.Flags.Size,
		HitRate:             s.Flags.HitRate,
		ExpiredEntries:      s.Flags.ExpiredEntries,
		MemoryUsageEstimate: s.Flags.MemoryUsageEstimate,
		Evictions:           s.Flags.Evictions,
		Expirations:         s.Flags.Expirations,
		BulkCached:          s.Bulk.Cached,
		BulkFlags:           s.Bulk.FlagCount,
		BulkExpiresAt:       s.Bulk.ExpiresAt,
		RefreshState:        s.Refresher.State.String(),
		RefreshCycles:       s.Refresher.Cycles,
		RefreshSkippedTicks: s.Refresher.SkippedTicks,
		LastRefreshAt:       s.Refresher.LastRefreshAt,
	}
}

type debugResponse struct {
	Key               string       `json:"key"`
	TargetID          string       `json:"target_id,omitempty"`
	Cached            bool         `json:"cached"`
	Value             *bool        `json:"value,omitempty"`
	ExpiresAt         time.Time    `json:"expires_at,omitzero"`
	TimeUntilExpiryMs int64        `json:"time_until_expiry_ms,omitempty"`
	Expired           bool         `json:"expired"`
	Hits              uint64       `json:"hits"`
	InBulk            bool         `json:"in_bulk"`
	Strategy          string       `json:"strategy,omitempty"`
	Flag              *domain.Flag `json:"flag,omitempty"`
}

func newDebugResponse(flagKey string, info cache.DebugInfo) debugResponse {
	resp := debugResponse{
		Key:      flagKey,
		TargetID: info.Entry.Key.Target,
		Cached:   info.Entry.Cached,
		InBulk:   info.InBulk,
		Flag:     info.Flag,
	}
	if info.Entry.Cached {
		value := info.Entry.Value
		resp.Value = &value
		resp.ExpiresAt = info.Entry.ExpiresAt
		resp.TimeUntilExpiryMs = info.Entry.TimeUntilExpiry.Milliseconds()
		resp.Expired = info.Entry.Expired
		resp.Hits = info.Entry.Hits
	}
	if info.InBulk {
		resp.Strategy = string(info.Strategy)
	}
	return resp
}
