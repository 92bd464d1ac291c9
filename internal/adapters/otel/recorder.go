package otel

import (
	"context"
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/emiliopalmerini/agentflow/internal/domain"
)

const (
	defaultServiceName = "agentflow"
	serviceVersion     = "1.0.0"
)

// Recorder records ingestion metrics through an OTEL meter.
type Recorder struct {
	provider        *sdkmetric.MeterProvider
	eventsTotal     metric.Int64Counter
	sessionsCreated metric.Int64Counter
	statusChanges   metric.Int64Counter
	toolOutputHist  metric.Int64Histogram
}

// NewRecorder creates a recorder that pushes to an OTEL Collector over gRPC.
func NewRecorder(ctx context.Context, cfg Config) (*Recorder, error) {
	if !cfg.Enabled || cfg.Endpoint == "" {
		return nil, fmt.Errorf("OTEL exporter is disabled or endpoint not configured")
	}

	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}

	exp, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating OTLP exporter: %w", err)
	}

	name := cfg.ServiceName
	if name == "" {
		name = defaultServiceName
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(name),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(provider)

	return NewRecorderWithProvider(provider)
}

// NewRecorderWithProvider builds the instruments on an existing provider.
// Close shuts the provider down.
func NewRecorderWithProvider(provider *sdkmetric.MeterProvider) (*Recorder, error) {
	meter := provider.Meter(defaultServiceName)

	eventsTotal, err := meter.Int64Counter(
		"agentflow_events_ingested_total",
		metric.WithDescription("Total events ingested"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating events counter: %w", err)
	}

	sessionsCreated, err := meter.Int64Counter(
		"agentflow_sessions_created_total",
		metric.WithDescription("Total sessions created by a first event"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating sessions counter: %w", err)
	}

	statusChanges, err := meter.Int64Counter(
		"agentflow_session_status_changes_total",
		metric.WithDescription("Stored session status transitions"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating status counter: %w", err)
	}

	toolOutputHist, err := meter.Int64Histogram(
		"agentflow_tool_output_chars",
		metric.WithDescription("Size of stored tool outputs in characters"),
		metric.WithUnit("{char}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating tool output histogram: %w", err)
	}

	return &Recorder{
		provider:        provider,
		eventsTotal:     eventsTotal,
		sessionsCreated: sessionsCreated,
		statusChanges:   statusChanges,
		toolOutputHist:  toolOutputHist,
	}, nil
}

func (r *Recorder) RecordEvent(ctx context.Context, ev *domain.Event) {
	r.eventsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("source", string(ev.Source)),
		attribute.String("category", string(ev.Category)),
		attribute.String("type", ev.Type),
	))

	if ev.Type == domain.TypeToolEnd && ev.ToolOutput != nil {
		r.toolOutputHist.Record(ctx, outputChars(ev.ToolOutput), metric.WithAttributes(
			attribute.String("source", string(ev.Source)),
		))
	}
}

func (r *Recorder) RecordSessionCreated(ctx context.Context, source domain.Source) {
	r.sessionsCreated.Add(ctx, 1, metric.WithAttributes(attribute.String("source", string(source))))
}

func (r *Recorder) RecordStatusChange(ctx context.Context, from, to domain.Status) {
	r.statusChanges.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", string(from)),
		attribute.String("to", string(to)),
	))
}

// Close shuts down the recorder and flushes any pending metrics.
func (r *Recorder) Close(ctx context.Context) error {
	return r.provider.Shutdown(ctx)
}

func outputChars(v any) int64 {
	if s, ok := v.(string); ok {
		return int64(utf8.RuneCountInString(s))
	}
	b, err := json.Marshal(v)
	if err != nil {
		return 0
	}
	return int64(utf8.RuneCount(b))
}
