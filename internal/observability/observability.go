// Package observability threads a single structured logger and a set of
// OpenTelemetry instruments through the core, grounded on the teacher's
// observability provider but scoped to two measurements: algorithm run
// duration and storage latency (RecordAlgorithmRun, RecordStorageOp; no
// code in this module calls either). Metrics/tracing are ambient
// concerns and are carried even though the spec's Non-goals exclude an
// observability layer as a first-class feature.
package observability

import (
	"context"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Provider bundles the logger and metric instruments threaded through the
// evidence core. A nil *Provider is valid and every method on it is a no-op,
// so callers that do not wire observability still compile and run.
type Provider struct {
	Logger *slog.Logger

	meter            metric.Meter
	algorithmRuns    metric.Int64Counter
	algorithmRunTime metric.Float64Histogram
	storageLatency   metric.Float64Histogram
}

// New builds a Provider with a JSON slog handler (matching the teacher's
// cmd/helm logging convention) and an in-process metric provider. No
// exporter is configured, so metrics are never exported off-process.
func New(serviceName, level string) *Provider {
	var lvl slog.Level
	switch level {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))

	meterProvider := sdkmetric.NewMeterProvider()
	otel.SetMeterProvider(meterProvider)
	meter := meterProvider.Meter(serviceName)

	runs, _ := meter.Int64Counter(
		"evidcore.algorithm.runs",
		metric.WithDescription("count of algorithm runs by algorithm_id and outcome"),
	)
	runTime, _ := meter.Float64Histogram(
		"evidcore.algorithm.run_duration_seconds",
		metric.WithDescription("wall-clock duration of algorithm runs"),
	)
	storageLatency, _ := meter.Float64Histogram(
		"evidcore.storage.operation_duration_seconds",
		metric.WithDescription("latency of storage backend operations"),
	)

	return &Provider{
		Logger:           logger,
		meter:            meter,
		algorithmRuns:    runs,
		algorithmRunTime: runTime,
		storageLatency:   storageLatency,
	}
}

// RecordAlgorithmRun records a completed run's duration and outcome. It
// never receives payload content — only the framework-level envelope
// metadata that is explicitly excluded from result_hash.
func (p *Provider) RecordAlgorithmRun(ctx context.Context, algorithmID string, success bool, duration time.Duration) {
	if p == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	p.algorithmRuns.Add(ctx, 1, metric.WithAttributes(
		attribute.String("algorithm_id", algorithmID),
		attribute.String("outcome", outcome),
	))
	p.algorithmRunTime.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("algorithm_id", algorithmID),
	))
}

// RecordStorageOp records the latency of a single storage backend call.
func (p *Provider) RecordStorageOp(ctx context.Context, op string, duration time.Duration) {
	if p == nil {
		return
	}
	p.storageLatency.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("op", op),
	))
}

// Log returns a usable *slog.Logger even when the Provider is nil.
func (p *Provider) Log() *slog.Logger {
	if p == nil || p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}
