package tracing

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracerMu       sync.Mutex
	tracerProvider *sdktrace.TracerProvider
)

// Init installs a process-wide tracer provider so batch and call spans are
// recorded. Calling Init again is a no-op while a provider is installed.
// Before Init (or after Shutdown) the otel no-op provider is in effect and
// spans cost nothing.
func Init(serviceName string) error {
	tracerMu.Lock()
	defer tracerMu.Unlock()

	if tracerProvider != nil {
		return nil
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to build tracing resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithResource(res))
	tracerProvider = tp
	otel.SetTracerProvider(tp)

	return nil
}

// Shutdown flushes and stops the provider installed by Init. Safe to call
// without a prior Init.
func Shutdown(ctx context.Context) error {
	tracerMu.Lock()
	tp := tracerProvider
	tracerProvider = nil
	tracerMu.Unlock()

	if tp == nil {
		return nil
	}

	return tp.Shutdown(ctx)
}

// StartSpan starts a span and makes sure the span's trace ID is also
// available through this package's context helpers, so log lines and spans
// correlate.
func StartSpan(ctx context.Context, tracerName, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}

	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, spanName, trace.WithAttributes(attrs...))

	if GetTraceID(ctx) == "" {
		sc := span.SpanContext()
		if sc.IsValid() {
			ctx = WithTraceID(ctx, sc.TraceID().String())
		}
	}

	return ctx, span
}
