// Package otel turns store and client events into OpenTelemetry spans.
package otel

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/hanpama/graphcache/internal/eventbus"
	"github.com/hanpama/graphcache/internal/events"
	"github.com/hanpama/graphcache/internal/opid"
)

const tracerName = "graphcache"

// Setup configures an OTLP exporter and attaches span subscribers to bus.
// If endpoint is empty, no telemetry is configured.
func Setup(ctx context.Context, bus *eventbus.Bus, endpoint, service string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	exp, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(service),
		)),
	)
	otel.SetTracerProvider(tp)

	unregister := Register(bus, tp.Tracer(tracerName))
	return func(ctx context.Context) error {
		unregister()
		return tp.Shutdown(ctx)
	}, nil
}

// Register subscribes span builders to bus and returns a function removing
// them. Fetches become root spans; network round trips and store reads and
// writes of the same operation become their children.
func Register(bus *eventbus.Bus, tracer trace.Tracer) func() {
	s := &subscriber{tracer: tracer}
	unsubs := []func(){
		eventbus.On(bus, s.fetchStart),
		eventbus.On(bus, s.fetchFinish),
		eventbus.On(bus, s.networkStart),
		eventbus.On(bus, s.networkFinish),
		eventbus.On(bus, s.storeLoad),
		eventbus.On(bus, s.storePublish),
		eventbus.On(bus, s.watcherRefresh),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

type subscriber struct {
	tracer       trace.Tracer
	fetchSpans   sync.Map // operation id -> trace.Span
	networkSpans sync.Map // operation id -> trace.Span
}

func (s *subscriber) parent(ctx context.Context) context.Context {
	id, ok := opid.FromContext(ctx)
	if !ok {
		return ctx
	}
	if v, ok := s.fetchSpans.Load(id); ok {
		return trace.ContextWithSpan(ctx, v.(trace.Span))
	}
	return ctx
}

func (s *subscriber) fetchStart(ctx context.Context, e events.FetchStart) {
	id, ok := opid.FromContext(ctx)
	if !ok {
		return
	}
	_, span := s.tracer.Start(ctx, "graphcache.fetch",
		trace.WithAttributes(
			attribute.String("graphql.operation.name", e.OperationName),
			attribute.String("graphql.operation.type", e.OperationType),
			attribute.String("graphcache.policy", e.Policy),
		))
	s.fetchSpans.Store(id, span)
}

func (s *subscriber) fetchFinish(ctx context.Context, e events.FetchFinish) {
	id, _ := opid.FromContext(ctx)
	v, ok := s.fetchSpans.LoadAndDelete(id)
	if !ok {
		return
	}
	span := v.(trace.Span)
	span.SetAttributes(
		attribute.String("graphcache.source", e.Source),
		attribute.Int("graphql.error_count", e.Errors),
		attribute.Bool("graphcache.cancelled", e.Cancelled),
	)
	end(span, e.Err)
}

func (s *subscriber) networkStart(ctx context.Context, e events.NetworkStart) {
	id, ok := opid.FromContext(ctx)
	if !ok {
		return
	}
	_, span := s.tracer.Start(s.parent(ctx), "graphcache.network",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("graphql.operation.name", e.OperationName)))
	s.networkSpans.Store(id, span)
}

func (s *subscriber) networkFinish(ctx context.Context, e events.NetworkFinish) {
	id, _ := opid.FromContext(ctx)
	v, ok := s.networkSpans.LoadAndDelete(id)
	if !ok {
		return
	}
	end(v.(trace.Span), e.Err)
}

func (s *subscriber) storeLoad(ctx context.Context, e events.StoreLoad) {
	span := s.completed(ctx, "graphcache.store.load", e.Duration)
	span.SetAttributes(
		attribute.String("graphql.operation.name", e.OperationName),
		attribute.Int("graphcache.dependent_keys", e.DependentKeys),
	)
	end(span, e.Err)
}

func (s *subscriber) storePublish(ctx context.Context, e events.StorePublish) {
	span := s.completed(ctx, "graphcache.store.publish", e.Duration)
	span.SetAttributes(
		attribute.Int("graphcache.records", e.Records),
		attribute.Int("graphcache.changed_keys", e.Changed),
	)
	end(span, e.Err)
}

func (s *subscriber) watcherRefresh(ctx context.Context, e events.WatcherRefresh) {
	trace.SpanFromContext(s.parent(ctx)).AddEvent("graphcache.watcher.refresh", trace.WithAttributes(
		attribute.String("graphql.operation.name", e.OperationName),
		attribute.Int("graphcache.changed_keys", e.Changed),
	))
}

// completed starts a span for work that already finished and took d.
func (s *subscriber) completed(ctx context.Context, name string, d time.Duration) trace.Span {
	_, span := s.tracer.Start(s.parent(ctx), name, trace.WithTimestamp(time.Now().Add(-d)))
	return span
}

func end(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
