// Package observability wires OpenTelemetry tracing and metrics for the
// dispatch engine. When disabled, the provider degrades to no-op instruments.
package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/relay-io/relaycore/pkg/config"
)

const instrumentationName = "github.com/relay-io/relaycore"

// TelemetryProvider carries the tracer and the dispatch metrics.
type TelemetryProvider struct {
	config        config.TelemetryConfig
	tracer        trace.Tracer
	meter         metric.Meter
	traceProvider *sdktrace.TracerProvider

	jobsDispatched metric.Int64Counter
	jobsSent       metric.Int64Counter
	jobsFailed     metric.Int64Counter
	sendDuration   metric.Float64Histogram
}

// NewTelemetryProvider initializes tracing and metrics per the configuration.
// A disabled configuration yields no-op instruments.
func NewTelemetryProvider(cfg config.TelemetryConfig) (*TelemetryProvider, error) {
	tp := &TelemetryProvider{config: cfg}

	if !cfg.Enabled {
		tp.tracer = otel.Tracer(instrumentationName)
		tp.meter = otel.Meter(instrumentationName)
		return tp, tp.initInstruments()
	}

	if err := tp.initTracing(); err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	tp.meter = otel.Meter(instrumentationName)
	return tp, tp.initInstruments()
}

func (tp *TelemetryProvider) initTracing() error {
	exporter, err := otlptrace.New(context.Background(),
		otlptracehttp.NewClient(otlptracehttp.WithEndpointURL(tp.config.OTLPEndpoint)))
	if err != nil {
		return err
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(tp.config.ServiceName),
		semconv.ServiceVersion(tp.config.ServiceVersion),
		semconv.DeploymentEnvironment(tp.config.Environment),
	))
	if err != nil {
		return err
	}

	tp.traceProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(tp.config.SampleRate)),
	)
	otel.SetTracerProvider(tp.traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	tp.tracer = tp.traceProvider.Tracer(instrumentationName)
	return nil
}

func (tp *TelemetryProvider) initInstruments() error {
	var err error
	if tp.jobsDispatched, err = tp.meter.Int64Counter("relaycore.jobs.dispatched"); err != nil {
		return err
	}
	if tp.jobsSent, err = tp.meter.Int64Counter("relaycore.jobs.sent"); err != nil {
		return err
	}
	if tp.jobsFailed, err = tp.meter.Int64Counter("relaycore.jobs.failed"); err != nil {
		return err
	}
	if tp.sendDuration, err = tp.meter.Float64Histogram("relaycore.send.duration",
		metric.WithUnit("ms")); err != nil {
		return err
	}
	return nil
}

// StartSpan opens a dispatch span attributed to a channel and tenant.
func (tp *TelemetryProvider) StartSpan(ctx context.Context, name, channel, tenantID string) (context.Context, trace.Span) {
	return tp.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("relaycore.channel", channel),
		attribute.String("relaycore.tenant", tenantID),
	))
}

// RecordDispatch counts one dispatched job.
func (tp *TelemetryProvider) RecordDispatch(ctx context.Context, channel string) {
	tp.jobsDispatched.Add(ctx, 1, metric.WithAttributes(attribute.String("channel", channel)))
}

// RecordOutcome counts the terminal outcome and observes the send duration.
func (tp *TelemetryProvider) RecordOutcome(ctx context.Context, channel, providerName string, success bool, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("channel", channel),
		attribute.String("provider", providerName),
	)
	if success {
		tp.jobsSent.Add(ctx, 1, attrs)
	} else {
		tp.jobsFailed.Add(ctx, 1, attrs)
	}
	tp.sendDuration.Record(ctx, float64(elapsed.Milliseconds()), attrs)
}

// Shutdown flushes and stops the trace provider.
func (tp *TelemetryProvider) Shutdown(ctx context.Context) error {
	if tp.traceProvider == nil {
		return nil
	}
	return tp.traceProvider.Shutdown(ctx)
}
