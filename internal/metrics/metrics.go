// Package metrics exposes store and client activity as Prometheus
// collectors fed by the event bus.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hanpama/graphcache/internal/eventbus"
	"github.com/hanpama/graphcache/internal/events"
)

const namespace = "graphcache"

// Metrics holds the collectors. Register them with MustRegister and feed
// them with Subscribe.
type Metrics struct {
	fetches          *prometheus.CounterVec
	fetchDuration    *prometheus.HistogramVec
	networkDuration  *prometheus.HistogramVec
	storeLoads       *prometheus.CounterVec
	storeLoadTime    prometheus.Histogram
	publishedRecords prometheus.Counter
	changedKeys      prometheus.Counter
	clears           *prometheus.CounterVec
	watcherRefreshes *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		fetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "client",
				Name:      "fetches_total",
				Help:      "Finished fetch operations.",
			},
			[]string{"policy", "source", "result"},
		),
		fetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "client",
				Name:      "fetch_duration_seconds",
				Help:      "Fetch operation time in seconds.",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 16),
			},
			[]string{"policy"},
		),
		networkDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "client",
				Name:      "network_duration_seconds",
				Help:      "Transport round trip time in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"result"},
		),
		storeLoads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "loads_total",
				Help:      "Operations read from the store.",
			},
			[]string{"result"},
		),
		storeLoadTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "load_duration_seconds",
			Help:      "Store read time in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 2, 16),
		}),
		publishedRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "published_records_total",
			Help:      "Records merged into the store.",
		}),
		changedKeys: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "changed_keys_total",
			Help:      "Field keys whose value changed on publish.",
		}),
		clears: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "clears_total",
				Help:      "Store clears.",
			},
			[]string{"result"},
		),
		watcherRefreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "client",
				Name:      "watcher_refreshes_total",
				Help:      "Watcher refetches triggered by store changes.",
			},
			[]string{"operation"},
		),
	}
}

// MustRegister registers every collector with r.
func (m *Metrics) MustRegister(r prometheus.Registerer) {
	r.MustRegister(
		m.fetches,
		m.fetchDuration,
		m.networkDuration,
		m.storeLoads,
		m.storeLoadTime,
		m.publishedRecords,
		m.changedKeys,
		m.clears,
		m.watcherRefreshes,
	)
}

// Subscribe feeds the collectors from bus and returns a function that
// stops it.
func (m *Metrics) Subscribe(bus *eventbus.Bus) func() {
	unsubs := []func(){
		eventbus.On(bus, func(_ context.Context, e events.FetchFinish) {
			result := outcome(e.Err)
			if e.Cancelled {
				result = "cancelled"
			}
			m.fetches.WithLabelValues(e.Policy, e.Source, result).Inc()
			m.fetchDuration.WithLabelValues(e.Policy).Observe(e.Duration.Seconds())
		}),
		eventbus.On(bus, func(_ context.Context, e events.NetworkFinish) {
			m.networkDuration.WithLabelValues(outcome(e.Err)).Observe(e.Duration.Seconds())
		}),
		eventbus.On(bus, func(_ context.Context, e events.StoreLoad) {
			m.storeLoads.WithLabelValues(outcome(e.Err)).Inc()
			m.storeLoadTime.Observe(e.Duration.Seconds())
		}),
		eventbus.On(bus, func(_ context.Context, e events.StorePublish) {
			if e.Err != nil {
				return
			}
			m.publishedRecords.Add(float64(e.Records))
			m.changedKeys.Add(float64(e.Changed))
		}),
		eventbus.On(bus, func(_ context.Context, e events.StoreClear) {
			m.clears.WithLabelValues(outcome(e.Err)).Inc()
		}),
		eventbus.On(bus, func(_ context.Context, e events.WatcherRefresh) {
			m.watcherRefreshes.WithLabelValues(e.OperationName).Inc()
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

