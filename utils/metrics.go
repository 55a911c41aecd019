package utils

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

const meterName = "dzukou-pricing"

// Metrics holds the pipeline's OpenTelemetry instruments. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	provider *sdkmetric.MeterProvider

	fetches       metric.Int64Counter
	fetchErrors   metric.Int64Counter
	fetchDuration metric.Float64Histogram
	listings      metric.Int64Counter
	matched       metric.Int64Counter
	optimizations metric.Int64Counter
	cacheHits     metric.Int64Counter
	insightErrors metric.Int64Counter
}

// NewMetrics exports to an OTLP gRPC collector at endpoint. With an empty
// endpoint the instruments are live but nothing is exported.
func NewMetrics(ctx context.Context, endpoint string) (*Metrics, error) {
	res := resource.NewSchemaless(attribute.String("service.name", meterName))
	if endpoint == "" {
		return newMetrics(sdkmetric.NewMeterProvider(sdkmetric.WithResource(res)))
	}

	exporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(endpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("create metric exporter: %w", err)
	}
	return newMetrics(sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(15*time.Second))),
	))
}

// NewMetricsWithReader wires the instruments to a caller-supplied reader.
func NewMetricsWithReader(reader sdkmetric.Reader) (*Metrics, error) {
	return newMetrics(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
}

func newMetrics(mp *sdkmetric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(meterName)
	m := &Metrics{provider: mp}
	var err error

	if m.fetches, err = meter.Int64Counter("scrape.fetches",
		metric.WithDescription("Store fetch attempts"),
		metric.WithUnit("{fetch}")); err != nil {
		return nil, err
	}
	if m.fetchErrors, err = meter.Int64Counter("scrape.fetch_errors",
		metric.WithDescription("Store fetches that failed after retries"),
		metric.WithUnit("{error}")); err != nil {
		return nil, err
	}
	if m.fetchDuration, err = meter.Float64Histogram("scrape.fetch_duration",
		metric.WithDescription("Wall time of one store fetch"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.25, 0.5, 1, 2.5, 5, 10, 25, 60)); err != nil {
		return nil, err
	}
	if m.listings, err = meter.Int64Counter("scrape.listings",
		metric.WithDescription("Listings persisted"),
		metric.WithUnit("{listing}")); err != nil {
		return nil, err
	}
	if m.matched, err = meter.Int64Counter("scrape.listings_matched",
		metric.WithDescription("Persisted listings matched to a catalog product"),
		metric.WithUnit("{listing}")); err != nil {
		return nil, err
	}
	if m.cacheHits, err = meter.Int64Counter("pricing.cache_hits",
		metric.WithDescription("Recommendations served from cache"),
		metric.WithUnit("{recommendation}")); err != nil {
		return nil, err
	}
	if m.optimizations, err = meter.Int64Counter("pricing.optimizations",
		metric.WithDescription("Recommendations served"),
		metric.WithUnit("{recommendation}")); err != nil {
		return nil, err
	}
	if m.insightErrors, err = meter.Int64Counter("pricing.insight_errors",
		metric.WithDescription("Insight provider calls that fell back to deterministic pricing"),
		metric.WithUnit("{error}")); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) RecordFetch(ctx context.Context, store string, d time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("store", store))
	m.fetches.Add(ctx, 1, attrs)
	m.fetchDuration.Record(ctx, d.Seconds(), attrs)
	if err != nil {
		m.fetchErrors.Add(ctx, 1, attrs)
	}
}

func (m *Metrics) RecordListings(ctx context.Context, store string, persisted, matched int) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("store", store))
	if persisted > 0 {
		m.listings.Add(ctx, int64(persisted), attrs)
	}
	if matched > 0 {
		m.matched.Add(ctx, int64(matched), attrs)
	}
}

func (m *Metrics) RecordOptimization(ctx context.Context, cached bool) {
	if m == nil {
		return
	}
	m.optimizations.Add(ctx, 1, metric.WithAttributes(attribute.Bool("cached", cached)))
	if cached {
		m.cacheHits.Add(ctx, 1)
	}
}

func (m *Metrics) RecordInsightError(ctx context.Context, provider string) {
	if m == nil {
		return
	}
	m.insightErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("provider", provider)))
}

// Shutdown flushes pending exports.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m == nil || m.provider == nil {
		return nil
	}
	return m.provider.Shutdown(ctx)
}
