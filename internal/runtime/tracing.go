package runtime

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	configpkg "github.com/drblury/bidgate/internal/runtime/config"
	loggingpkg "github.com/drblury/bidgate/internal/runtime/logging"
)

const serviceName = "bidgate"

// traceOutput receives spans from the stdout exporter.
var traceOutput io.Writer = os.Stdout

// InitTracer installs the tracer provider selected by conf as the global
// provider and returns it with its shutdown function. When tracing is
// disabled a no-op provider is returned.
func InitTracer(conf *configpkg.Config, logger loggingpkg.ServiceLogger) (trace.TracerProvider, func(context.Context) error, error) {
	noopShutdown := func(context.Context) error { return nil }
	if conf == nil || !conf.TracingEnabled || conf.TracingExporter == "none" {
		return noop.NewTracerProvider(), noopShutdown, nil
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(traceOutput))
	if err != nil {
		return nil, nil, fmt.Errorf("create trace exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			"",
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("create trace resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	logger.Info("OpenTelemetry initialized", loggingpkg.LogFields{"service": serviceName, "exporter": conf.TracingExporter})
	return tp, tp.Shutdown, nil
}
