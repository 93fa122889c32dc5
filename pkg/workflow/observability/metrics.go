package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// instrumentationName names the OTel meter and tracer.
const instrumentationName = "medigraph"

// MetricsRecorder records engine and cache metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordStageExecution records a stage invocation with its duration and
	// whether it faulted.
	RecordStageExecution(ctx context.Context, stageID string, duration time.Duration, fault error)

	// RecordStageFault records a stage fault. recovered reports whether a
	// fallback produced the update.
	RecordStageFault(ctx context.Context, stageID string, recovered bool)

	// RecordTurn records a turn completion.
	RecordTurn(ctx context.Context, success bool, duration time.Duration)

	// RecordCheckpoint records a checkpoint save operation.
	RecordCheckpoint(ctx context.Context, stageID string, sizeBytes int64)

	// RecordCacheLookup records a cache hit or miss.
	RecordCacheLookup(ctx context.Context, cacheName string, hit bool)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	stageExecutions metric.Int64Counter
	stageLatency    metric.Float64Histogram
	stageFaults     metric.Int64Counter
	turns           metric.Int64Counter
	turnLatency     metric.Float64Histogram
	checkpointSize  metric.Int64Histogram
	cacheLookups    metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics lazily initializes the shared OTel instruments.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter(instrumentationName)
	m := &otelMetrics{}
	var err error

	if m.stageExecutions, err = meter.Int64Counter("medigraph.stage.executions",
		metric.WithDescription("Number of stage executions"),
	); err != nil {
		return nil, err
	}
	if m.stageLatency, err = meter.Float64Histogram("medigraph.stage.latency_ms",
		metric.WithDescription("Stage execution latency in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.stageFaults, err = meter.Int64Counter("medigraph.stage.faults",
		metric.WithDescription("Number of stage faults"),
	); err != nil {
		return nil, err
	}
	if m.turns, err = meter.Int64Counter("medigraph.turn.count",
		metric.WithDescription("Number of conversation turns"),
	); err != nil {
		return nil, err
	}
	if m.turnLatency, err = meter.Float64Histogram("medigraph.turn.latency_ms",
		metric.WithDescription("Turn latency in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.checkpointSize, err = meter.Int64Histogram("medigraph.checkpoint.size_bytes",
		metric.WithDescription("Checkpoint size in bytes"),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	if m.cacheLookups, err = meter.Int64Counter("medigraph.cache.lookups",
		metric.WithDescription("Number of cache lookups by outcome"),
	); err != nil {
		return nil, err
	}
	return m, nil
}

// NewMetricsRecorder returns a MetricsRecorder backed by the global OTel
// meter provider. If initialization fails it returns a no-op recorder.
// Configure the provider first:
//
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

func (m *otelMetrics) RecordStageExecution(ctx context.Context, stageID string, duration time.Duration, fault error) {
	attrs := metric.WithAttributes(
		attribute.String("stage_id", stageID),
		attribute.Bool("fault", fault != nil),
	)
	m.stageExecutions.Add(ctx, 1, attrs)
	m.stageLatency.Record(ctx, Milliseconds(duration), attrs)
}

func (m *otelMetrics) RecordStageFault(ctx context.Context, stageID string, recovered bool) {
	m.stageFaults.Add(ctx, 1, metric.WithAttributes(
		attribute.String("stage_id", stageID),
		attribute.Bool("recovered", recovered),
	))
}

func (m *otelMetrics) RecordTurn(ctx context.Context, success bool, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.Bool("success", success))
	m.turns.Add(ctx, 1, attrs)
	m.turnLatency.Record(ctx, Milliseconds(duration), attrs)
}

func (m *otelMetrics) RecordCheckpoint(ctx context.Context, stageID string, sizeBytes int64) {
	m.checkpointSize.Record(ctx, sizeBytes, metric.WithAttributes(
		attribute.String("stage_id", stageID),
	))
}

func (m *otelMetrics) RecordCacheLookup(ctx context.Context, cacheName string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String("cache", cacheName),
		attribute.String("result", result),
	))
}
