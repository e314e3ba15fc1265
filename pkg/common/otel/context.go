package otel

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// zeroTraceID is returned when the context carries no recorded span, so log
// correlation fields stay fixed-width.
const zeroTraceID = "00000000000000000000000000000000"

// GetTraceID extracts the current trace id from the context for log
// correlation.
func GetTraceID(ctx context.Context) string {
	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		return span.SpanContext().TraceID().String()
	}
	return zeroTraceID
}
