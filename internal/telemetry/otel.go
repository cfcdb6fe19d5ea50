package telemetry

import (
	"context"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/OrlandoBitencourt/pennant"

// OTelProvider implements Provider using OpenTelemetry
type OTelProvider struct {
	tracer trace.Tracer
	meter  metric.Meter

	cacheHits      metric.Int64Counter
	cacheMisses    metric.Int64Counter
	evaluations    metric.Int64Counter
	evalDuration   metric.Float64Histogram
	fetches        metric.Int64Counter
	fetchDuration  metric.Float64Histogram
	refreshed      metric.Int64Counter
	refreshFailed  metric.Int64Counter
	refreshLatency metric.Float64Histogram
	circuitState   metric.Int64ObservableGauge

	currentCircuitState atomic.Int64
}

// NewOTel creates a provider on the global tracer and meter providers.
func NewOTel() (*OTelProvider, error) {
	return NewOTelWithProviders(otel.GetTracerProvider(), otel.GetMeterProvider())
}

// NewOTelWithProviders creates a provider on explicit providers.
func NewOTelWithProviders(tp trace.TracerProvider, mp metric.MeterProvider) (*OTelProvider, error) {
	provider := &OTelProvider{
		tracer: tp.Tracer(instrumentationName),
		meter:  mp.Meter(instrumentationName),
	}

	if err := provider.initMetrics(); err != nil {
		return nil, err
	}

	return provider, nil
}

func (o *OTelProvider) initMetrics() error {
	var err error

	if o.cacheHits, err = o.meter.Int64Counter(
		"pennant.cache.hits",
		metric.WithDescription("Number of cache hits by layer"),
	); err != nil {
		return err
	}

	if o.cacheMisses, err = o.meter.Int64Counter(
		"pennant.cache.misses",
		metric.WithDescription("Number of cache misses by layer"),
	); err != nil {
		return err
	}

	if o.evaluations, err = o.meter.Int64Counter(
		"pennant.evaluations",
		metric.WithDescription("Number of flag evaluations by resolution source"),
	); err != nil {
		return err
	}

	if o.evalDuration, err = o.meter.Float64Histogram(
		"pennant.evaluation.duration",
		metric.WithDescription("Duration of flag evaluations"),
		metric.WithUnit("ms"),
	); err != nil {
		return err
	}

	if o.fetches, err = o.meter.Int64Counter(
		"pennant.fetches",
		metric.WithDescription("Number of remote fetches by outcome"),
	); err != nil {
		return err
	}

	if o.fetchDuration, err = o.meter.Float64Histogram(
		"pennant.fetch.duration",
		metric.WithDescription("Duration of remote fetches"),
		metric.WithUnit("ms"),
	); err != nil {
		return err
	}

	if o.refreshed, err = o.meter.Int64Counter(
		"pennant.refresh.entries",
		metric.WithDescription("Number of entries revalidated by background refresh"),
	); err != nil {
		return err
	}

	if o.refreshFailed, err = o.meter.Int64Counter(
		"pennant.refresh.failures",
		metric.WithDescription("Number of entries whose background refresh failed"),
	); err != nil {
		return err
	}

	if o.refreshLatency, err = o.meter.Float64Histogram(
		"pennant.refresh.duration",
		metric.WithDescription("Duration of background refresh cycles"),
		metric.WithUnit("ms"),
	); err != nil {
		return err
	}

	o.circuitState, err = o.meter.Int64ObservableGauge(
		"pennant.circuit.state",
		metric.WithDescription("Circuit breaker state (0=closed, 1=open, 2=half-open)"),
		metric.WithInt64Callback(func(ctx context.Context, observer metric.Int64Observer) error {
			observer.Observe(o.currentCircuitState.Load())
			return nil
		}),
	)
	return err
}

// StartSpan creates a new trace span
func (o *OTelProvider) StartSpan(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span) {
	ctx, span := o.tracer.Start(ctx, name, trace.WithAttributes(convertAttributes(attrs)...))
	return ctx, &otelSpan{span: span}
}

func (o *OTelProvider) RecordCacheHit(ctx context.Context, layer, flagKey string) {
	o.cacheHits.Add(ctx, 1, metric.WithAttributes(
		attribute.String("cache.layer", layer),
		attribute.String("flag.key", flagKey),
	))
}

func (o *OTelProvider) RecordCacheMiss(ctx context.Context, layer, flagKey string) {
	o.cacheMisses.Add(ctx, 1, metric.WithAttributes(
		attribute.String("cache.layer", layer),
		attribute.String("flag.key", flagKey),
	))
}

func (o *OTelProvider) RecordEvaluation(ctx context.Context, flagKey, source string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("flag.key", flagKey),
		attribute.String("source", source),
	)
	o.evaluations.Add(ctx, 1, attrs)
	o.evalDuration.Record(ctx, millis(duration), attrs)
}

func (o *OTelProvider) RecordFetch(ctx context.Context, kind, outcome string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("fetch.kind", kind),
		attribute.String("fetch.outcome", outcome),
	)
	o.fetches.Add(ctx, 1, attrs)
	o.fetchDuration.Record(ctx, millis(duration), attrs)
}

func (o *OTelProvider) RecordRefresh(ctx context.Context, refreshed, failed int, duration time.Duration) {
	o.refreshed.Add(ctx, int64(refreshed))
	o.refreshFailed.Add(ctx, int64(failed))
	o.refreshLatency.Record(ctx, millis(duration))
}

func (o *OTelProvider) RecordCircuitState(ctx context.Context, state string) {
	var v int64
	switch state {
	case "open":
		v = 1
	case "half-open":
		v = 2
	}
	o.currentCircuitState.Store(v)
}

// Shutdown is a no-op; the SDK providers are owned by the application.
func (o *OTelProvider) Shutdown(ctx context.Context) error {
	return nil
}

type otelSpan struct {
	span trace.Span
}

func (s *otelSpan) End() {
	s.span.End()
}

func (s *otelSpan) SetAttributes(attrs ...Attribute) {
	s.span.SetAttributes(convertAttributes(attrs)...)
}

func (s *otelSpan) RecordError(err error) {
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

func convertAttributes(attrs []Attribute) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		switch v := attr.Value.(type) {
		case string:
			out = append(out, attribute.String(attr.Key, v))
		case int:
			out = append(out, attribute.Int(attr.Key, v))
		case int64:
			out = append(out, attribute.Int64(attr.Key, v))
		case bool:
			out = append(out, attribute.Bool(attr.Key, v))
		case float64:
			out = append(out, attribute.Float64(attr.Key, v))
		}
	}
	return out
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
