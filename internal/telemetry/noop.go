package telemetry

import (
	"context"
	"time"
)

// NoOpProvider is a telemetry provider that does nothing.
type NoOpProvider struct{}

// NewNoOp creates a new no-op telemetry provider
func NewNoOp() *NoOpProvider {
	return &NoOpProvider{}
}

func (n *NoOpProvider) StartSpan(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span) {
	return ctx, noopSpan{}
}

func (n *NoOpProvider) RecordCacheHit(ctx context.Context, layer, flagKey string) {}

func (n *NoOpProvider) RecordCacheMiss(ctx context.Context, layer, flagKey string) {}

func (n *NoOpProvider) RecordEvaluation(ctx context.Context, flagKey, source string, duration time.Duration) {
}

func (n *NoOpProvider) RecordFetch(ctx context.Context, kind, outcome string, duration time.Duration) {
}

func (n *NoOpProvider) RecordRefresh(ctx context.Context, refreshed, failed int, duration time.Duration) {
}

func (n *NoOpProvider) RecordCircuitState(ctx context.Context, state string) {}

func (n *NoOpProvider) Shutdown(ctx context.Context) error { return nil }

type noopSpan struct{}

func (noopSpan) End() {}

func (noopSpan) SetAttributes(attrs ...Attribute) {}

func (noopSpan) RecordError(err error) {}
