package otel_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/hanpama/graphcache/internal/eventbus"
	"github.com/hanpama/graphcache/internal/events"
	"github.com/hanpama/graphcache/internal/opid"
	"github.com/hanpama/graphcache/internal/otel"
)

func TestFetchSpans(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	bus := eventbus.New()
	unregister := otel.Register(bus, tp.Tracer("test"))
	defer unregister()

	ctx, _ := opid.NewContext(context.Background())
	eventbus.Emit(ctx, bus, events.FetchStart{OperationName: "Hero", OperationType: "query", Policy: "ReturnCacheDataElseFetch"})
	eventbus.Emit(ctx, bus, events.StoreLoad{OperationName: "Hero", Err: errors.New("missing"), Duration: time.Millisecond})
	eventbus.Emit(ctx, bus, events.NetworkStart{OperationName: "Hero", OperationType: "query"})
	eventbus.Emit(ctx, bus, events.NetworkFinish{OperationName: "Hero", OperationType: "query"})
	eventbus.Emit(ctx, bus, events.StorePublish{Records: 2, Changed: 3})
	eventbus.Emit(ctx, bus, events.FetchFinish{OperationName: "Hero", Source: "server"})

	spans := rec.Ended()
	require.Len(t, spans, 4)

	byName := map[string]sdktrace.ReadOnlySpan{}
	for _, s := range spans {
		byName[s.Name()] = s
	}
	fetch := byName["graphcache.fetch"]
	require.NotNil(t, fetch)
	for _, name := range []string{"graphcache.store.load", "graphcache.network", "graphcache.store.publish"} {
		child := byName[name]
		require.NotNil(t, child, name)
		require.Equal(t, fetch.SpanContext().SpanID(), child.Parent().SpanID(), name)
	}
	require.Equal(t, codes.Error, byName["graphcache.store.load"].Status().Code)
	require.Equal(t, codes.Unset, fetch.Status().Code)
}

func TestUnregister(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	bus := eventbus.New()
	otel.Register(bus, tp.Tracer("test"))()

	ctx, _ := opid.NewContext(context.Background())
	eventbus.Emit(ctx, bus, events.FetchStart{OperationName: "Hero"})
	eventbus.Emit(ctx, bus, events.FetchFinish{OperationName: "Hero"})
	require.Empty(t, rec.Ended())
}

func TestSetupWithoutEndpoint(t *testing.T) {
	shutdown, err := otel.Setup(context.Background(), eventbus.New(), "", "graphcache")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}
