// Package telemetry configures OpenTelemetry tracing. Spans are exported to a
// Jaeger collector when an endpoint is configured; otherwise the global no-op
// provider stays in place and spans cost nothing.
package telemetry

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentation = "github.com/dkeye/Canvas"

// ShutdownFunc flushes pending spans.
type ShutdownFunc func(context.Context) error

// InitJaeger installs a global tracer provider that batches spans to the
// collector at endpoint. An empty endpoint leaves tracing disabled.
func InitJaeger(serviceName, endpoint string) (ShutdownFunc, error) {
	if endpoint == "" {
		log.Info().Str("module", "telemetry").Msg("tracing disabled")
		return func(context.Context) error { return nil }, nil
	}

	exp, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(endpoint)))
	if err != nil {
		return nil, fmt.Errorf("create jaeger exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("build resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
	)
	otel.SetTracerProvider(tp)

	log.Info().Str("module", "telemetry").Str("endpoint", endpoint).Str("service", serviceName).Msg("jaeger tracing initialized")
	return tp.Shutdown, nil
}

// Tracer returns the process tracer from the current global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentation)
}

func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
}
