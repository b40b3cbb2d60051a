// Package observability wires OpenTelemetry metrics and traces for the
// harvester. When no collector endpoint is configured the global providers
// stay as no-ops and Init returns a trivial shutdown.
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/oceanobs/chanharvest/pkg/types"
)

const serviceName = "chanharvest"

// Init configures the global meter and tracer providers against the
// configured OTLP collector. The returned shutdown must be called before
// exit to flush pending telemetry.
func Init(ctx context.Context, cfg types.ObservabilityConfig, logger *slog.Logger) (func(context.Context) error, error) {
	if cfg.Endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	if logger == nil {
		logger = slog.Default()
	}

	res, err := resource.Merge(resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		))
	if err != nil {
		return nil, fmt.Errorf("build resource: %w", err)
	}

	metricOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.Endpoint)}
	traceOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		metricOpts = append(metricOpts, otlpmetricgrpc.WithInsecure())
		traceOpts = append(traceOpts, otlptracegrpc.WithInsecure())
	}

	metricExp, err := otlpmetricgrpc.New(ctx, metricOpts...)
	if err != nil {
		return nil, fmt.Errorf("metric exporter: %w", err)
	}
	traceExp, err := otlptracegrpc.New(ctx, traceOpts...)
	if err != nil {
		return nil, fmt.Errorf("trace exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp,
			sdkmetric.WithInterval(15*time.Second))),
	)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(traceExp),
	)

	otel.SetMeterProvider(mp)
	otel.SetTracerProvider(tp)
	logger.Info("telemetry enabled", "endpoint", cfg.Endpoint)

	return func(ctx context.Context) error {
		terr := tp.Shutdown(ctx)
		merr := mp.Shutdown(ctx)
		if terr != nil {
			return terr
		}
		return merr
	}, nil
}

// StartRunSpan opens the root span for one harvest run. With no provider
// configured the span is a no-op.
func StartRunSpan(ctx context.Context) (context.Context, trace.Span) {
	return otel.Tracer(serviceName).Start(ctx, "harvest.run")
}

// RecordRun stamps the run id on the active span and publishes per-level
// run totals on the configured meter.
func RecordRun(ctx context.Context, report types.RunReport) {
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("run.id", report.RunID))

	m := otel.Meter(serviceName)
	published, perr := m.Int64Counter("harvest.chunks.published")
	failed, ferr := m.Int64Counter("harvest.chunks.failed")
	if perr != nil || ferr != nil {
		return
	}
	for _, lr := range report.Levels {
		attrs := metric.WithAttributes(attribute.Int("qc.level", lr.QCLevel))
		published.Add(ctx, int64(lr.Published), attrs)
		failed.Add(ctx, int64(lr.Failed), attrs)
	}
}
