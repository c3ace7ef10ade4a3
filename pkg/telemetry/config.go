package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/stacklok/vsphere-rest/pkg/versions"
)

// Config holds the tracing configuration.
type Config struct {
	// Endpoint is the OTLP/HTTP endpoint (host:port). Tracing is disabled
	// when it is empty.
	Endpoint string `yaml:"endpoint,omitempty"`

	// ServiceName is reported as service.name.
	ServiceName string `yaml:"serviceName,omitempty"`

	// SamplingRate is the trace sampling ratio (0.0-1.0).
	SamplingRate float64 `yaml:"samplingRate,omitempty"`

	// Headers are sent with every export request.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Insecure exports over plain HTTP.
	Insecure bool `yaml:"insecure,omitempty"`
}

// DefaultConfig returns the default tracing configuration.
func DefaultConfig() Config {
	return Config{
		ServiceName:  "vsphere-rest",
		SamplingRate: 0.05,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.SamplingRate < 0 || c.SamplingRate > 1 {
		return fmt.Errorf("sampling rate must be between 0 and 1, got %g", c.SamplingRate)
	}
	if c.Endpoint != "" && c.ServiceName == "" {
		return fmt.Errorf("service name is required when an endpoint is configured")
	}
	return nil
}

// Provider owns the tracer provider installed as the OpenTelemetry global.
type Provider struct {
	tracerProvider trace.TracerProvider
	shutdown       func(context.Context) error
}

// NewProvider builds the tracer provider for cfg and installs it, together
// with the W3C trace context propagator, as the OpenTelemetry globals.
func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Provider{tracerProvider: tracenoop.NewTracerProvider()}
	if cfg.Endpoint != "" {
		exporter, err := createTraceExporter(ctx, cfg)
		if err != nil {
			return nil, err
		}
		res := resource.NewWithAttributes(semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(versions.GetVersionInfo().Version),
		)
		sdk := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SamplingRate))),
		)
		p.tracerProvider = sdk
		p.shutdown = sdk.Shutdown
	}

	otel.SetTracerProvider(p.tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return p, nil
}

func createTraceExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(cfg.Endpoint),
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(cfg.Headers))
	}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}
	return exporter, nil
}

// TracerProvider returns the configured tracer provider.
func (p *Provider) TracerProvider() trace.TracerProvider {
	return p.tracerProvider
}

// Shutdown flushes and stops the exporter, if any.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.shutdown != nil {
		return p.shutdown(ctx)
	}
	return nil
}
