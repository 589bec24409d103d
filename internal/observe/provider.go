package observe

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const serviceName = "meetscribe"

// TelemetryConfig configures [Setup].
type TelemetryConfig struct {
	// Version is reported as service.version.
	Version string

	// SpanExporter receives finished spans. Nil records spans without
	// exporting them, which still gives every request a correlation id.
	SpanExporter sdktrace.SpanExporter

	// SampleRatio is the fraction of new traces sampled. Zero samples all.
	// Incoming sampled traces are always kept.
	SampleRatio float64
}

// Telemetry is the process-wide OpenTelemetry setup.
type Telemetry struct {
	// Metrics is built on the Prometheus-backed meter provider and served at
	// /metrics.
	Metrics *Metrics

	shutdown []func(context.Context) error
}

// Setup installs global meter and tracer providers for meetscribe: metrics
// go to the Prometheus default registry and spans to cfg.SpanExporter.
func Setup(ctx context.Context, cfg TelemetryConfig) (*Telemetry, error) {
	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(cfg.Version),
	))
	if err != nil {
		return nil, fmt.Errorf("observe: build resource: %w", err)
	}

	exp, err := promexporter.New()
	if err != nil {
		return nil, fmt.Errorf("observe: prometheus exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithResource(res), sdkmetric.WithReader(exp))
	m, err := NewMetrics(mp)
	if err != nil {
		_ = mp.Shutdown(ctx)
		return nil, err
	}
	otel.SetMeterProvider(mp)

	sampler := sdktrace.AlwaysSample()
	if cfg.SampleRatio > 0 && cfg.SampleRatio < 1 {
		sampler = sdktrace.TraceIDRatioBased(cfg.SampleRatio)
	}
	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sampler)),
	}
	if cfg.SpanExporter != nil {
		tpOpts = append(tpOpts, sdktrace.WithBatcher(cfg.SpanExporter))
	}
	tp := sdktrace.NewTracerProvider(tpOpts...)
	otel.SetTracerProvider(tp)

	return &Telemetry{Metrics: m, shutdown: []func(context.Context) error{tp.Shutdown, mp.Shutdown}}, nil
}

// Shutdown flushes spans and stops both providers.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	for _, fn := range t.shutdown {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("observe: shutdown telemetry: %w", err)
	}
	return nil
}
