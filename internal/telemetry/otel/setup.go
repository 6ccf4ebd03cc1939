// Package otel wires the service's telemetry: OTLP trace, metric, and log pipelines,
// the auth counters recorded by the authenticator, and the security event emitter
// that writes revocations as log records.
package otel

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"

	"ger/backend/internal/log"
	"ger/backend/internal/telemetry"
)

const metricExportInterval = 10 * time.Second

// Config selects the collector and names the service in exported resources.
type Config struct {
	// Endpoint is the OTLP gRPC collector, as host:port or a URL whose path is ignored.
	// Empty keeps every signal in-process.
	Endpoint    string
	ServiceName string
	// Insecure forces plaintext even for https endpoints.
	Insecure bool
}

// Providers is the telemetry the server runs with.
type Providers struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	LoggerProvider *sdklog.LoggerProvider

	// Metrics and Events are built on the providers above and handed to the authenticator.
	Metrics *AuthMetrics
	Events  telemetry.EventEmitter

	shutdown []func(context.Context) error
}

// NewProviders builds the three signal pipelines for cfg and the auth instruments on top of them.
func NewProviders(ctx context.Context, cfg Config) (*Providers, error) {
	p := &Providers{}
	if err := p.buildPipelines(ctx, cfg); err != nil {
		_ = p.Shutdown(ctx)
		return nil, err
	}
	metrics, err := NewAuthMetrics(p.MeterProvider)
	if err != nil {
		_ = p.Shutdown(ctx)
		return nil, fmt.Errorf("telemetry: auth metrics: %w", err)
	}
	p.Metrics = metrics
	p.Events = NewEventEmitter(p.LoggerProvider)
	return p, nil
}

func (p *Providers) buildPipelines(ctx context.Context, cfg Config) error {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		p.TracerProvider = sdktrace.NewTracerProvider()
		p.MeterProvider = sdkmetric.NewMeterProvider()
		p.LoggerProvider = sdklog.NewLoggerProvider()
		return nil
	}
	target, plaintext, err := collectorTarget(endpoint)
	if err != nil {
		return err
	}
	plaintext = plaintext || cfg.Insecure

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String(cfg.ServiceName),
	))
	if err != nil {
		return fmt.Errorf("telemetry: resource: %w", err)
	}

	spanOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(target)}
	if plaintext {
		spanOpts = append(spanOpts, otlptracegrpc.WithInsecure())
	}
	spans, err := otlptracegrpc.New(ctx, spanOpts...)
	if err != nil {
		return fmt.Errorf("telemetry: trace exporter: %w", err)
	}
	p.TracerProvider = sdktrace.NewTracerProvider(sdktrace.WithBatcher(spans), sdktrace.WithResource(res))
	p.shutdown = append(p.shutdown, p.TracerProvider.Shutdown)

	pointOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(target)}
	if plaintext {
		pointOpts = append(pointOpts, otlpmetricgrpc.WithInsecure())
	}
	points, err := otlpmetricgrpc.New(ctx, pointOpts...)
	if err != nil {
		return fmt.Errorf("telemetry: metric exporter: %w", err)
	}
	p.MeterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(points, sdkmetric.WithInterval(metricExportInterval))),
	)
	p.shutdown = append(p.shutdown, p.MeterProvider.Shutdown)

	recordOpts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(target)}
	if plaintext {
		recordOpts = append(recordOpts, otlploggrpc.WithInsecure())
	}
	records, err := otlploggrpc.New(ctx, recordOpts...)
	if err != nil {
		return fmt.Errorf("telemetry: log exporter: %w", err)
	}
	p.LoggerProvider = sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(records)),
		sdklog.WithResource(res),
	)
	p.shutdown = append(p.shutdown, p.LoggerProvider.Shutdown)
	return nil
}

// collectorTarget reduces endpoint to the host:port the gRPC exporters dial and reports
// whether the scheme asks for plaintext.
func collectorTarget(endpoint string) (string, bool, error) {
	if !strings.Contains(endpoint, "://") {
		endpoint = "http://" + endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", false, fmt.Errorf("invalid OTLP endpoint %q: %w", endpoint, err)
	}
	if u.Host == "" {
		return "", false, fmt.Errorf("invalid OTLP endpoint %q: missing host", endpoint)
	}
	return u.Host, u.Scheme != "https", nil
}

// Shutdown flushes and stops the pipelines in reverse start order.
func (p *Providers) Shutdown(ctx context.Context) error {
	var errs []error
	for i := len(p.shutdown) - 1; i >= 0; i-- {
		if err := p.shutdown[i](ctx); err != nil {
			log.Error(ctx).Err(err).Msg("telemetry: shutdown")
			errs = append(errs, err)
		}
	}
	p.shutdown = nil
	return errors.Join(errs...)
}

// SetGlobal installs the tracer and meter providers for otelhttp.
// Security events go through Events, so no global logger provider is set.
func (p *Providers) SetGlobal() {
	if p.TracerProvider != nil {
		otel.SetTracerProvider(p.TracerProvider)
	}
	if p.MeterProvider != nil {
		otel.SetMeterProvider(p.MeterProvider)
	}
}
