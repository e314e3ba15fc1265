package hunting

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// otelMetrics reports pipeline counters through an OpenTelemetry meter.
type otelMetrics struct {
	filesScanned    metric.Int64Counter
	candidatesFound metric.Int64Counter
	confirmedLeaks  metric.Int64Counter
	runErrors       metric.Int64Counter
	runDuration     metric.Float64Histogram
}

// NewOtelMetrics builds the orchestrator's instrumentation on the provided
// meter provider.
func NewOtelMetrics(mp metric.MeterProvider) (*otelMetrics, error) {
	meter := mp.Meter("leakhunter")

	filesScanned, err := meter.Int64Counter(
		"hunt_files_scanned_total",
		metric.WithDescription("Number of corpus files scanned"),
	)
	if err != nil {
		return nil, err
	}

	candidatesFound, err := meter.Int64Counter(
		"hunt_candidates_found_total",
		metric.WithDescription("Number of candidate secrets extracted"),
	)
	if err != nil {
		return nil, err
	}

	confirmedLeaks, err := meter.Int64Counter(
		"hunt_confirmed_leaks_total",
		metric.WithDescription("Number of newly recorded confirmed leaks"),
	)
	if err != nil {
		return nil, err
	}

	runErrors, err := meter.Int64Counter(
		"hunt_errors_total",
		metric.WithDescription("Number of errors by kind"),
	)
	if err != nil {
		return nil, err
	}

	runDuration, err := meter.Float64Histogram(
		"hunt_run_duration_seconds",
		metric.WithDescription("Duration of a full hunt invocation"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		filesScanned:    filesScanned,
		candidatesFound: candidatesFound,
		confirmedLeaks:  confirmedLeaks,
		runErrors:       runErrors,
		runDuration:     runDuration,
	}, nil
}

func (m *otelMetrics) IncFilesScanned(ctx context.Context, n int) {
	m.filesScanned.Add(ctx, int64(n))
}

func (m *otelMetrics) IncCandidatesFound(ctx context.Context, n int) {
	m.candidatesFound.Add(ctx, int64(n))
}

func (m *otelMetrics) IncConfirmedLeaks(ctx context.Context, n int) {
	m.confirmedLeaks.Add(ctx, int64(n))
}

func (m *otelMetrics) IncRunErrors(ctx context.Context, kind string) {
	m.runErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func (m *otelMetrics) ObserveRunDuration(ctx context.Context, d time.Duration) {
	m.runDuration.Record(ctx, d.Seconds())
}

// NoopMetrics discards all measurements.
type NoopMetrics struct{}

func (NoopMetrics) IncFilesScanned(context.Context, int)            {}
func (NoopMetrics) IncCandidatesFound(context.Context, int)         {}
func (NoopMetrics) IncConfirmedLeaks(context.Context, int)          {}
func (NoopMetrics) IncRunErrors(context.Context, string)            {}
func (NoopMetrics) ObserveRunDuration(context.Context, time.Duration) {}
