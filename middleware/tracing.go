package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/cascade"
)

// tracerName is the instrumentation scope name for cascade tracing.
const tracerName = "github.com/xraph/cascade"

// Tracing returns middleware that wraps link execution in an OpenTelemetry
// span. If no TracerProvider is configured globally, the default noop tracer
// is used and this middleware becomes a pass-through with zero overhead.
//
// Span attributes include: cascade.chain.id, cascade.job, cascade.kind,
// cascade.attempt, cascade.hops. On error, the span status is set to
// codes.Error with the error message.
func Tracing() Middleware {
	tracer := otel.Tracer(tracerName)
	return TracingWithTracer(tracer)
}

// TracingWithTracer returns tracing middleware using the provided tracer.
// This variant allows injecting a specific TracerProvider for testing or
// when multiple providers are in use.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, att *cascade.Attempt, next Handler) error {
		ctx, span := tracer.Start(ctx, "cascade.link.execute",
			trace.WithAttributes(
				attribute.String("cascade.chain.id", att.ChainID.String()),
				attribute.String("cascade.job", att.Job),
				attribute.String("cascade.kind", att.Kind.String()),
				attribute.Int("cascade.attempt", att.Number),
				attribute.Int("cascade.hops", att.Hops),
			),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		err := next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}

		return err
	}
}
