package hub

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// defaultTracerName is used when tracing is enabled without a name.
const defaultTracerName = "peerhub"

// WithTracing enables span creation for the accept and disconnect paths.
// The tracer is resolved from the global OpenTelemetry tracer provider;
// configure the provider in main() before starting the hub.
func WithTracing(tracerName string) Option {
	return func(h *Hub) {
		if tracerName == "" {
			tracerName = defaultTracerName
		}
		h.tracer = otel.Tracer(tracerName)
	}
}

// startSpan opens a span for one lifecycle transition. When tracing is
// disabled it returns a no-op span, so call sites stay unconditional.
func (h *Hub) startSpan(name string, attrs ...attribute.KeyValue) trace.Span {
	if h.tracer == nil {
		return trace.SpanFromContext(context.Background())
	}
	_, span := h.tracer.Start(
		context.Background(),
		name,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attrs...),
	)
	return span
}

func clientAttrs(id uint64, remote string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int64("peerhub.client_id", int64(id)),
		attribute.String("peerhub.remote_addr", remote),
	}
}
