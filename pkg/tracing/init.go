package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/vicc-go/disease-normalizer/config"
	"github.com/vicc-go/disease-normalizer/pkg/tracing/exporters"
)

// Init builds the tracer provider from config and installs the package
// tracer. The returned shutdown func flushes pending spans.
func Init(ctx context.Context, cfg config.Config) (func(context.Context) error, error) {
	if !cfg.TracingEnabled {
		return func(context.Context) error { return nil }, nil
	}

	var exporter sdktrace.SpanExporter
	switch cfg.TracingExporter {
	case "otlp-grpc":
		exp, err := exporters.NewOTLPExporter(ctx, exporters.OTLPConfig{
			Endpoint: cfg.TracingOTLPEndpoint,
			Protocol: "grpc",
			Insecure: true,
			Timeout:  exporters.DefaultOTLPConfig().Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP gRPC exporter: %w", err)
		}
		exporter = exp
	case "otlp-http":
		exp, err := exporters.NewOTLPExporter(ctx, exporters.OTLPConfig{
			Endpoint: cfg.TracingOTLPEndpoint,
			Protocol: "http",
			Insecure: true,
			Timeout:  exporters.DefaultOTLPConfig().Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP HTTP exporter: %w", err)
		}
		exporter = exp
	case "console":
		exporter = &exporters.ConsoleExporter{}
	default:
		return nil, fmt.Errorf("unsupported tracing exporter: %s", cfg.TracingExporter)
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	SetTracer(tp.Tracer(cfg.AppName))

	return tp.Shutdown, nil
}
