// Package telemetry provides OpenTelemetry instrumentation for fleetvoice.
package telemetry

import (
	"context"
	"fmt"
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
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/yairfalse/fleetvoice/internal/config"
)

const instrumentationName = "fleetvoice"

// Provider wraps OTEL tracer and meter providers.
// A nil *Provider is valid and records nothing.
type Provider struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	tracer         trace.Tracer
	meter          metric.Meter

	// Metrics
	intents      metric.Int64Counter
	callDuration metric.Float64Histogram
	callErrors   metric.Int64Counter
	terminated   metric.Int64Counter
}

// Option customizes a Provider.
type Option func(*options)

type options struct {
	readers []sdkmetric.Reader
}

// WithReader attaches an extra metric reader, e.g. the Prometheus exporter
// or a manual reader in tests.
func WithReader(r sdkmetric.Reader) Option {
	return func(o *options) {
		o.readers = append(o.readers, r)
	}
}

// NewProvider creates a new telemetry provider.
func NewProvider(ctx context.Context, cfg config.OTELConfig, opts ...Option) (*Provider, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	p := &Provider{}

	if err := p.setupTracing(ctx, cfg, res); err != nil {
		return nil, err
	}

	if err := p.setupMetrics(ctx, cfg, res, o.readers); err != nil {
		if p.tracerProvider != nil {
			_ = p.tracerProvider.Shutdown(ctx)
		}
		return nil, err
	}

	if err := p.initMetrics(); err != nil {
		return nil, err
	}

	return p, nil
}

func (p *Provider) setupTracing(ctx context.Context, cfg config.OTELConfig, res *resource.Resource) error {
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
	}

	if cfg.Traces.Enabled && cfg.Endpoint != "" {
		exp, err := createTraceExporter(ctx, cfg)
		if err != nil {
			return fmt.Errorf("create trace exporter: %w", err)
		}
		sampler := sdktrace.TraceIDRatioBased(cfg.Traces.SampleRate)
		opts = append(opts, sdktrace.WithBatcher(exp), sdktrace.WithSampler(sampler))
	}

	p.tracerProvider = sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(p.tracerProvider)
	p.tracer = p.tracerProvider.Tracer(instrumentationName)

	return nil
}

func (p *Provider) setupMetrics(ctx context.Context, cfg config.OTELConfig, res *resource.Resource, readers []sdkmetric.Reader) error {
	opts := []sdkmetric.Option{
		sdkmetric.WithResource(res),
	}

	if cfg.Metrics.Enabled && cfg.Endpoint != "" {
		exp, err := createMetricExporter(ctx, cfg)
		if err != nil {
			return fmt.Errorf("create metric exporter: %w", err)
		}
		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)))
	}
	for _, r := range readers {
		opts = append(opts, sdkmetric.WithReader(r))
	}

	p.meterProvider = sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(p.meterProvider)
	p.meter = p.meterProvider.Meter(instrumentationName)

	return nil
}

func createTraceExporter(ctx context.Context, cfg config.OTELConfig) (sdktrace.SpanExporter, error) {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	return otlptracegrpc.New(ctx, opts...)
}

func createMetricExporter(ctx context.Context, cfg config.OTELConfig) (sdkmetric.Exporter, error) {
	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	return otlpmetricgrpc.New(ctx, opts...)
}

func (p *Provider) initMetrics() error {
	var err error

	p.intents, err = p.meter.Int64Counter(
		"fleetvoice_intents_total",
		metric.WithDescription("Total handled intents by outcome"),
	)
	if err != nil {
		return fmt.Errorf("create intents: %w", err)
	}

	p.callDuration, err = p.meter.Float64Histogram(
		"fleetvoice_inventory_call_duration_seconds",
		metric.WithDescription("Duration of inventory calls to the provider"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("create call_duration: %w", err)
	}

	p.callErrors, err = p.meter.Int64Counter(
		"fleetvoice_inventory_errors_total",
		metric.WithDescription("Total failed inventory calls"),
	)
	if err != nil {
		return fmt.Errorf("create call_errors: %w", err)
	}

	p.terminated, err = p.meter.Int64Counter(
		"fleetvoice_instances_terminated_total",
		metric.WithDescription("Total untagged instances terminated"),
	)
	if err != nil {
		return fmt.Errorf("create terminated: %w", err)
	}

	return nil
}

// Tracer returns the tracer.
func (p *Provider) Tracer() trace.Tracer {
	if p == nil {
		return noop.NewTracerProvider().Tracer(instrumentationName)
	}
	return p.tracer
}

// Meter returns the meter.
func (p *Provider) Meter() metric.Meter {
	if p == nil {
		return otel.Meter(instrumentationName)
	}
	return p.meter
}

// StartSpan starts a new span.
func (p *Provider) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return p.Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
}

// RecordIntent counts a handled intent.
func (p *Provider) RecordIntent(ctx context.Context, intent, outcome string) {
	if p == nil {
		return
	}
	p.intents.Add(ctx, 1, metric.WithAttributes(
		attribute.String("intent", intent),
		attribute.String("outcome", outcome),
	))
}

// RecordCall records the duration of one inventory call.
func (p *Provider) RecordCall(ctx context.Context, op, region string, d time.Duration) {
	if p == nil {
		return
	}
	p.callDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("region", region),
	))
}

// RecordCallError records a failed inventory call.
func (p *Provider) RecordCallError(ctx context.Context, op, region, code string) {
	if p == nil {
		return
	}
	p.callErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("region", region),
		attribute.String("code", code),
	))
}

// RecordTerminated records instances terminated in a region.
func (p *Provider) RecordTerminated(ctx context.Context, region string, count int) {
	if p == nil {
		return
	}
	p.terminated.Add(ctx, int64(count), metric.WithAttributes(
		attribute.String("region", region),
	))
}

// Shutdown flushes and shuts down the providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown tracer: %w", err)
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown meter: %w", err)
		}
	}
	return nil
}
