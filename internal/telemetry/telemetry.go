package telemetry

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const (
	defaultBasePath = "/otlp"
	traceBatch      = 5 * time.Second
	metricInterval  = 30 * time.Second
)

// Config holds OpenTelemetry export settings
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string // host[:port], no scheme
	OTLPHeaders    map[string]string
	// BasePath prefixes /v1/traces and /v1/metrics. Grafana Cloud uses /otlp, a local collector "/".
	BasePath string
	// Insecure sends plain HTTP, for a collector on the same host or network.
	Insecure bool
	Enabled  bool
}

// Provider owns the trace and metric pipelines and the storefront's instruments
type Provider struct {
	TracerProvider *trace.TracerProvider
	MeterProvider  *metric.MeterProvider
	metrics        *Metrics
	log            zerolog.Logger
}

// BasicAuthHeader builds the exporter Authorization header from an instance id and token
func BasicAuthHeader(instanceID, token string) map[string]string {
	if instanceID == "" && token == "" {
		return nil
	}
	encoded := base64.StdEncoding.EncodeToString([]byte(instanceID + ":" + token))
	return map[string]string{"Authorization": "Basic " + encoded}
}

// Initialize installs OTLP/HTTP trace and metric export as the global providers and creates the
// storefront counters on the new meter provider.
// A disabled config returns a nil provider; Metrics and Shutdown are safe on it.
func Initialize(ctx context.Context, cfg Config, log zerolog.Logger) (*Provider, error) {
	log = log.With().Str("component", "telemetry").Logger()
	if !cfg.Enabled {
		log.Info().Msg("OpenTelemetry disabled")
		return nil, nil
	}
	if cfg.OTLPEndpoint == "" {
		return nil, fmt.Errorf("OTLP endpoint is required when telemetry is enabled")
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
			attribute.String("service.namespace", "storefront"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tracerProvider, err := newTracerProvider(ctx, cfg, res)
	if err != nil {
		return nil, err
	}
	meterProvider, err := newMeterProvider(ctx, cfg, res)
	if err != nil {
		_ = tracerProvider.Shutdown(ctx)
		return nil, err
	}

	otel.SetTracerProvider(tracerProvider)
	otel.SetMeterProvider(meterProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	metrics, err := NewMetrics(meterProvider)
	if err != nil {
		_ = tracerProvider.Shutdown(ctx)
		_ = meterProvider.Shutdown(ctx)
		return nil, fmt.Errorf("failed to create instruments: %w", err)
	}

	log.Info().
		Str("endpoint", cfg.OTLPEndpoint).
		Str("traces", signalPath(cfg.BasePath, "traces")).
		Str("service", cfg.ServiceName).
		Msg("OpenTelemetry initialized")

	return &Provider{
		TracerProvider: tracerProvider,
		MeterProvider:  meterProvider,
		metrics:        metrics,
		log:            log,
	}, nil
}

func newTracerProvider(ctx context.Context, cfg Config, res *resource.Resource) (*trace.TracerProvider, error) {
	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(cfg.OTLPEndpoint),
		otlptracehttp.WithURLPath(signalPath(cfg.BasePath, "traces")),
		otlptracehttp.WithHeaders(cfg.OTLPHeaders),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	return trace.NewTracerProvider(
		trace.WithBatcher(exporter, trace.WithBatchTimeout(traceBatch)),
		trace.WithResource(res),
		trace.WithSampler(trace.ParentBased(trace.AlwaysSample())),
	), nil
}

func newMeterProvider(ctx context.Context, cfg Config, res *resource.Resource) (*metric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(cfg.OTLPEndpoint),
		otlpmetrichttp.WithURLPath(signalPath(cfg.BasePath, "metrics")),
		otlpmetrichttp.WithHeaders(cfg.OTLPHeaders),
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}

	return metric.NewMeterProvider(
		metric.WithReader(metric.NewPeriodicReader(exporter, metric.WithInterval(metricInterval))),
		metric.WithResource(res),
	), nil
}

// signalPath joins the exporter base path and the OTLP signal route
func signalPath(base, signal string) string {
	if base == "" {
		base = defaultBasePath
	}
	return strings.TrimRight(base, "/") + "/v1/" + signal
}

// Metrics returns the storefront instruments, or nil when telemetry is disabled
func (p *Provider) Metrics() *Metrics {
	if p == nil {
		return nil
	}
	return p.metrics
}

// Shutdown flushes pending spans and metrics and stops both pipelines
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}

	p.log.Info().Msg("shutting down OpenTelemetry")

	var errs []string
	if err := p.TracerProvider.Shutdown(ctx); err != nil {
		p.log.Error().Err(err).Msg("error shutting down tracer provider")
		errs = append(errs, "traces: "+err.Error())
	}
	if err := p.MeterProvider.Shutdown(ctx); err != nil {
		p.log.Error().Err(err).Msg("error shutting down meter provider")
		errs = append(errs, "metrics: "+err.Error())
	}
	if len(errs) > 0 {
		return fmt.Errorf("telemetry shutdown: %s", strings.Join(errs, "; "))
	}
	return nil
}
