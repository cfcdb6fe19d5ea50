package telemetry

import (
	"context"
	"time"
)

// Cache layers reported with hit/miss metrics.
const (
	LayerBulk    = "bulk"
	LayerPerFlag = "flag"
)

// Provider defines the interface for telemetry providers
type Provider interface {
	StartSpan(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)

	RecordCacheHit(ctx context.Context, layer, flagKey string)
	RecordCacheMiss(ctx context.Context, layer, flagKey string)
	RecordEvaluation(ctx context.Context, flagKey, source string, duration time.Duration)
	RecordFetch(ctx context.Context, kind, outcome string, duration time.Duration)
	RecordRefresh(ctx context.Context, refreshed, failed int, duration time.Duration)
	RecordCircuitState(ctx context.Context, state string)

	Shutdown(ctx context.Context) error
}

// Span represents a trace span
type Span interface {
	End()
	SetAttributes(attrs ...Attribute)
	RecordError(err error)
}

// Attribute represents a key-value attribute
type Attribute struct {
	Key   string
	Value any
}

func String(key, value string) Attribute { return Attribute{Key: key, Value: value} }

func Int(key string, value int) Attribute { return Attribute{Key: key, Value: value} }

func Bool(key string, value bool) Attribute { return Attribute{Key: key, Value: value} }
