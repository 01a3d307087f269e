// Package tracing wraps OpenTelemetry spans for the sync layer.
//
// The package only uses the OTel API. Without a configured TracerProvider
// every span is a no-op; a host process that installs an SDK provider gets
// real traces without code changes here.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/roach88/kiosksync"

// Layer names the component that opened a span.
type Layer string

const (
	LayerPipeline  Layer = "pipeline"
	LayerReconcile Layer = "reconcile"
	LayerRemote    Layer = "remote"
	LayerBroadcast Layer = "broadcast"
	LayerFeed      Layer = "feed"
)

// Start opens a span named "<layer> <operation>".
func Start(ctx context.Context, layer Layer, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, string(layer)+" "+operation)
	span.SetAttributes(append(attrs, attribute.String("layer", string(layer)))...)
	return ctx, span
}

// StartLinked opens a span linked to the producers of an async message.
func StartLinked(ctx context.Context, layer Layer, operation string, links []trace.Link, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, string(layer)+" "+operation, trace.WithLinks(links...))
	span.SetAttributes(append(attrs, attribute.String("layer", string(layer)))...)
	return ctx, span
}

// Fail records err on span and marks it as an error.
func Fail(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// Inject writes the current trace context into a string map, for message headers.
func Inject(ctx context.Context) map[string]string {
	carrier := propagation.MapCarrier{}
	propagation.TraceContext{}.Inject(ctx, carrier)
	return carrier
}

// Links turns headers carrying a traceparent into span links for an
// asynchronous consumer. Returns nil when no valid parent is present.
func Links(ctx context.Context, headers map[string]string) []trace.Link {
	if headers["traceparent"] == "" {
		return nil
	}
	parent := trace.SpanContextFromContext(propagation.TraceContext{}.Extract(ctx, propagation.MapCarrier(headers)))
	if !parent.IsValid() {
		return nil
	}
	return []trace.Link{{
		SpanContext: parent,
		Attributes:  []attribute.KeyValue{attribute.String("link.type", "async")},
	}}
}
