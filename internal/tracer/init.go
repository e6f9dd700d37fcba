package tracer

import (
	"context"

	"textbook-rag-be/internal/config"
	"textbook-rag-be/internal/pkg/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// InitTracer installs a global tracer provider exporting over OTLP HTTP.
// Tracing is off unless cfg.Enabled. The returned function flushes and stops
// the exporter and is always safe to call.
func InitTracer(cfg config.TracingConfig, log logger.ILogger) func(context.Context) error {
	noop := func(context.Context) error { return nil }

	if !cfg.Enabled {
		log.Info("TRACE", "OpenTelemetry tracing is disabled", map[string]interface{}{"hint": "set OTEL_ENABLED=true"})
		return noop
	}

	exporter, err := otlptracehttp.New(context.Background(),
		otlptracehttp.WithEndpoint(cfg.Endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		log.Warn("TRACE", "Failed to create OTLP exporter, tracing disabled", map[string]interface{}{"error": err.Error()})
		return noop
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(cfg.ServiceName),
		)),
	)
	otel.SetTracerProvider(tp)

	log.Info("TRACE", "OpenTelemetry tracer initialized", map[string]interface{}{"endpoint": cfg.Endpoint})
	return tp.Shutdown
}
