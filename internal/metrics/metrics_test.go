package metrics

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/hanpama/graphcache/internal/eventbus"
	"github.com/hanpama/graphcache/internal/events"
)

func TestMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New()
	m.MustRegister(registry)
	bus := eventbus.New()
	unsubscribe := m.Subscribe(bus)
	ctx := context.Background()

	t.Run("fetches", func(t *testing.T) {
		eventbus.Emit(ctx, bus, events.FetchFinish{Policy: "ReturnCacheDataElseFetch", Source: "cache", Duration: time.Millisecond})
		eventbus.Emit(ctx, bus, events.FetchFinish{Policy: "ReturnCacheDataElseFetch", Source: "cache"})
		eventbus.Emit(ctx, bus, events.FetchFinish{Policy: "FetchIgnoringCacheData", Err: errors.New("boom")})
		eventbus.Emit(ctx, bus, events.FetchFinish{Policy: "FetchIgnoringCacheData", Cancelled: true})

		require.Equal(t, 2.0, testutil.ToFloat64(m.fetches.WithLabelValues("ReturnCacheDataElseFetch", "cache", "success")))
		require.Equal(t, 1.0, testutil.ToFloat64(m.fetches.WithLabelValues("FetchIgnoringCacheData", "", "error")))
		require.Equal(t, 1.0, testutil.ToFloat64(m.fetches.WithLabelValues("FetchIgnoringCacheData", "", "cancelled")))
		require.Equal(t, 2, testutil.CollectAndCount(m.fetchDuration))
	})

	t.Run("store", func(t *testing.T) {
		eventbus.Emit(ctx, bus, events.StoreLoad{})
		eventbus.Emit(ctx, bus, events.StoreLoad{Err: errors.New("missing")})
		eventbus.Emit(ctx, bus, events.StorePublish{Records: 3, Changed: 5})
		eventbus.Emit(ctx, bus, events.StorePublish{Records: 9, Err: errors.New("closed")})

		require.Equal(t, 1.0, testutil.ToFloat64(m.storeLoads.WithLabelValues("success")))
		require.Equal(t, 1.0, testutil.ToFloat64(m.storeLoads.WithLabelValues("error")))
		require.NoError(t, testutil.CollectAndCompare(m.publishedRecords, strings.NewReader(`
# HELP graphcache_store_published_records_total Records merged into the store.
# TYPE graphcache_store_published_records_total counter
graphcache_store_published_records_total 3
`)))
		require.Equal(t, 5.0, testutil.ToFloat64(m.changedKeys))

		eventbus.Emit(ctx, bus, events.StoreClear{})
		require.Equal(t, 1.0, testutil.ToFloat64(m.clears.WithLabelValues("success")))
	})

	t.Run("watchers", func(t *testing.T) {
		eventbus.Emit(ctx, bus, events.WatcherRefresh{OperationName: "Hero", Changed: 1})
		require.Equal(t, 1.0, testutil.ToFloat64(m.watcherRefreshes.WithLabelValues("Hero")))
	})

	t.Run("unsubscribe", func(t *testing.T) {
		unsubscribe()
		eventbus.Emit(ctx, bus, events.WatcherRefresh{OperationName: "Hero"})
		require.Equal(t, 1.0, testutil.ToFloat64(m.watcherRefreshes.WithLabelValues("Hero")))
	})

	count, err := testutil.GatherAndCount(registry)
	require.NoError(t, err)
	require.Positive(t, count)
}
