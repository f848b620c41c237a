// Package observability provides OpenTelemetry metrics (Prometheus exporter)
// and the request-id log handler.
package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	prometheusexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

const (
	meterScope         = "github.com/aperturehq/aperture/internal/observability"
	defaultServiceName = "aperture"
	cardinalityLimit   = 2000
)

// latencyHistogramBoundaries are Prometheus-style buckets (seconds) for the request duration histogram.
var latencyHistogramBoundaries = []float64{0.005, 0.025, 0.1, 0.5, 1, 2.5, 5}

// EngineMetrics is the single metrics interface for the engine (HTTP, turn
// pipeline, matcher cache, discovery). All call sites tolerate a nil value.
type EngineMetrics interface {
	RecordRequest(ctx context.Context, method, route, statusClass string, duration time.Duration)
	RecordTurn(ctx context.Context, outcome string)
	RecordDraftsExtracted(ctx context.Context, count int)
	RecordMerge(ctx context.Context, created bool)
	RecordCorrection(ctx context.Context, outcome string)
	RecordCacheLookup(ctx context.Context, cache string, hit bool)
	RecordDiscovery(ctx context.Context, outcome string)
}

// MeterProviderShutdown is the subset of the SDK MeterProvider needed for shutdown.
type MeterProviderShutdown interface {
	Shutdown(ctx context.Context) error
}

// MeterProviderConfig holds configuration for creating the MeterProvider and metrics.
type MeterProviderConfig struct {
	// ServiceName is used in the resource (default: aperture).
	ServiceName string
}

// NewMeterProvider creates a MeterProvider with Prometheus exporter and returns the provider,
// an HTTP handler for /metrics, and EngineMetrics that use the provider's Meter.
// Caller must call provider.Shutdown on exit. When metrics are disabled, pass nil for metrics at call sites.
func NewMeterProvider(_ context.Context, cfg MeterProviderConfig) (provider MeterProviderShutdown, metricsHandler http.Handler, metrics EngineMetrics, err error) {
	serviceNameVal := cfg.ServiceName
	if serviceNameVal == "" {
		serviceNameVal = defaultServiceName
	}

	// Use a single resource to avoid Schema URL conflicts when merging with resource.Default().
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceNameVal),
	)

	reg := prometheus.NewRegistry()

	exporter, err := prometheusexporter.New(
		prometheusexporter.WithRegisterer(reg),
	)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
		sdkmetric.WithCardinalityLimit(cardinalityLimit),
		sdkmetric.WithView(
			sdkmetric.NewView(
				sdkmetric.Instrument{Name: "http.server.duration"},
				sdkmetric.Stream{Aggregation: sdkmetric.AggregationExplicitBucketHistogram{Boundaries: latencyHistogramBoundaries}},
			),
		),
	)
	provider = mp
	meter := mp.Meter(meterScope)

	metrics, err = newMetricsFromMeter(meter)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create metrics instruments: %w", err)
	}

	metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})

	return provider, metricsHandler, metrics, nil
}

func newMetricsFromMeter(meter metric.Meter) (*engineMetricsImpl, error) {
	requestCount, err := meter.Int64Counter(
		"http.server.request_count",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("request_count: %w", err)
	}

	requestDuration, err := meter.Float64Histogram(
		"http.server.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("http.server.duration: %w", err)
	}

	turns, err := meter.Int64Counter(
		"turns_processed_total",
		metric.WithDescription("Turn pipeline outcomes"),
	)
	if err != nil {
		return nil, fmt.Errorf("turns_processed_total: %w", err)
	}

	draftsExtracted, err := meter.Int64Counter(
		"assessment_drafts_extracted_total",
		metric.WithDescription("Assessment drafts produced by extraction"),
	)
	if err != nil {
		return nil, fmt.Errorf("assessment_drafts_extracted_total: %w", err)
	}

	merges, err := meter.Int64Counter(
		"assessment_merges_total",
		metric.WithDescription("Assessment merges by kind (created, updated)"),
	)
	if err != nil {
		return nil, fmt.Errorf("assessment_merges_total: %w", err)
	}

	corrections, err := meter.Int64Counter(
		"corrections_total",
		metric.WithDescription("Correction outcomes (llm, fallback)"),
	)
	if err != nil {
		return nil, fmt.Errorf("corrections_total: %w", err)
	}

	cacheLookups, err := meter.Int64Counter(
		"embedding_cache_lookups_total",
		metric.WithDescription("Embedding cache lookups by cache and result"),
	)
	if err != nil {
		return nil, fmt.Errorf("embedding_cache_lookups_total: %w", err)
	}

	discoveries, err := meter.Int64Counter(
		"pattern_discovery_total",
		metric.WithDescription("Pattern discovery element outcomes (suggested, skipped)"),
	)
	if err != nil {
		return nil, fmt.Errorf("pattern_discovery_total: %w", err)
	}

	return &engineMetricsImpl{
		requestCount:    requestCount,
		requestDuration: requestDuration,
		turns:           turns,
		draftsExtracted: draftsExtracted,
		merges:          merges,
		corrections:     corrections,
		cacheLookups:    cacheLookups,
		discoveries:     discoveries,
	}, nil
}

type engineMetricsImpl struct {
	requestCount    metric.Int64Counter
	requestDuration metric.Float64Histogram
	turns           metric.Int64Counter
	draftsExtracted metric.Int64Counter
	merges          metric.Int64Counter
	corrections     metric.Int64Counter
	cacheLookups    metric.Int64Counter
	discoveries     metric.Int64Counter
}

func (m *engineMetricsImpl) RecordRequest(ctx context.Context, method, route, statusClass string, duration time.Duration) {
	attrs := attribute.NewSet(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.String("status_class", statusClass),
	)
	m.requestCount.Add(ctx, 1, metric.WithAttributeSet(attrs))

	durAttrs := attribute.NewSet(
		attribute.String("method", method),
		attribute.String("route", route),
	)
	m.requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributeSet(durAttrs))
}

func (m *engineMetricsImpl) RecordTurn(ctx context.Context, outcome string) {
	m.turns.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", normalizeTurnOutcome(outcome))))
}

func (m *engineMetricsImpl) RecordDraftsExtracted(ctx context.Context, count int) {
	if count <= 0 {
		return
	}
	m.draftsExtracted.Add(ctx, int64(count))
}

func (m *engineMetricsImpl) RecordMerge(ctx context.Context, created bool) {
	kind := "updated"
	if created {
		kind = "created"
	}
	m.merges.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func (m *engineMetricsImpl) RecordCorrection(ctx context.Context, outcome string) {
	m.corrections.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", normalizeCorrectionOutcome(outcome))))
}

func (m *engineMetricsImpl) RecordCacheLookup(ctx context.Context, cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String("cache", normalizeCache(cache)),
		attribute.String("result", result),
	))
}

func (m *engineMetricsImpl) RecordDiscovery(ctx context.Context, outcome string) {
	m.discoveries.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", normalizeDiscoveryOutcome(outcome))))
}

// normalizeTurnOutcome maps turn outcomes to a bounded set for cardinality control.
func normalizeTurnOutcome(s string) string {
	switch s {
	case "completed", "empty", "failed":
		return s
	default:
		return "unknown"
	}
}

// normalizeCorrectionOutcome maps correction outcomes to a bounded set.
func normalizeCorrectionOutcome(s string) string {
	switch s {
	case "llm", "fallback":
		return s
	default:
		return "unknown"
	}
}

// normalizeCache maps cache names to a bounded set.
func normalizeCache(s string) string {
	switch s {
	case "request_embedding", "template_embedding":
		return s
	default:
		return "unknown"
	}
}

// normalizeDiscoveryOutcome maps discovery outcomes to a bounded set.
func normalizeDiscoveryOutcome(s string) string {
	switch s {
	case "suggested", "skipped", "filtered":
		return s
	default:
		return "unknown"
	}
}
