package api

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const namespace = "hunter_api"

// APIMetrics defines the metrics the trigger surface reports.
type APIMetrics interface {
	IncHuntRequestsTotal(ctx context.Context)
	IncHuntRequestErrors(ctx context.Context, reason string)
}

type apiMetrics struct {
	huntRequestsTotal metric.Int64Counter
	huntRequestErrors metric.Int64Counter
}

// NewAPIMetrics builds the trigger surface's instrumentation on the provided
// meter provider.
func NewAPIMetrics(mp metric.MeterProvider) (APIMetrics, error) {
	meter := mp.Meter(namespace)

	huntRequestsTotal, err := meter.Int64Counter(
		namespace+"_hunt_requests_total",
		metric.WithDescription("Total hunt invocations requested"),
	)
	if err != nil {
		return nil, err
	}

	huntRequestErrors, err := meter.Int64Counter(
		namespace+"_hunt_request_errors_total",
		metric.WithDescription("Hunt invocations that failed at the run level"),
	)
	if err != nil {
		return nil, err
	}

	return &apiMetrics{
		huntRequestsTotal: huntRequestsTotal,
		huntRequestErrors: huntRequestErrors,
	}, nil
}

func (m *apiMetrics) IncHuntRequestsTotal(ctx context.Context) {
	m.huntRequestsTotal.Add(ctx, 1)
}

func (m *apiMetrics) IncHuntRequestErrors(ctx context.Context, reason string) {
	m.huntRequestErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// NoopAPIMetrics discards all measurements.
type NoopAPIMetrics struct{}

func (NoopAPIMetrics) IncHuntRequestsTotal(context.Context)       {}
func (NoopAPIMetrics) IncHuntRequestErrors(context.Context, string) {}
