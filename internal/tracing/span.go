package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// StartOpSpan starts a client span named "kv.<op>" for one Redis command
// issued by a worker. The coordinator passes workerID -1.
func StartOpSpan(ctx context.Context, tracer trace.Tracer, op string, workerID int, addr string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		semconv.DBSystemRedis,
		semconv.DBOperationName(op),
		attribute.Int("kvbench.worker", workerID),
	}
	if addr != "" {
		attrs = append(attrs, semconv.ServerAddress(addr))
	}
	return tracer.Start(ctx, "kv."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

// EndSpan sets the span status from err and ends it.
func EndSpan(span trace.Span, err error, attrs ...attribute.KeyValue) {
	span.SetAttributes(attrs...)
	if err == nil {
		span.SetStatus(codes.Ok, "")
		span.End()
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.End()
}
