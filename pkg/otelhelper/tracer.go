// Package otelhelper provides distributed tracing for pipeline executions.
package otelhelper

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otlptracehttp "go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys shared by the orchestrator and the event consumers.
const (
	PipelineIDKey   = "interfaceagent.pipeline.id"
	PipelineNameKey = "interfaceagent.pipeline.name"
	AgentIDKey      = "interfaceagent.agent.id"
	AgentTypeKey    = "interfaceagent.agent.type"
	StepIDKey       = "interfaceagent.step.id"
	ExecutionIDKey  = "interfaceagent.execution.id"
	EventIDKey      = "interfaceagent.event.id"
	ServiceIDKey    = "interfaceagent.service.id"
	WorkerIDKey     = "interfaceagent.worker.id"
)

// NewTracer builds an OTLP-backed tracer and installs it as the global
// provider. The exporter endpoint comes from the standard OTEL_* environment
// variables.
//
// nolint:ireturn
func NewTracer(ctx context.Context, serviceName string) (trace.Tracer, error) {
	exporter, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, err
	}

	r, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
			semconv.ServiceNamespace("interfaceagent"),
		),
	)
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(r),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return provider.Tracer(serviceName), nil
}

// StartSpan opens a child span carrying the given attributes.
//
// nolint:ireturn,spancheck
func StartSpan(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}
