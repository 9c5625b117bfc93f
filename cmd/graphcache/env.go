package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hanpama/graphcache/internal/cache"
	"github.com/hanpama/graphcache/internal/codec"
	"github.com/hanpama/graphcache/internal/compile"
	"github.com/hanpama/graphcache/internal/eventbus"
	"github.com/hanpama/graphcache/internal/kvstore"
	"github.com/hanpama/graphcache/internal/kvstore/badgerdb"
	"github.com/hanpama/graphcache/internal/kvstore/boltdb"
	"github.com/hanpama/graphcache/internal/kvstore/btreedb"
	"github.com/hanpama/graphcache/internal/metrics"
	"github.com/hanpama/graphcache/internal/otel"
	"github.com/hanpama/graphcache/internal/selection"
	"github.com/hanpama/graphcache/internal/store"
	"github.com/hanpama/graphcache/internal/value"
)

type cacheFlags struct {
	db        string
	backend   string
	codec     string
	keys      string
	verbosity int

	log *logr.Logger
}

func (f *cacheFlags) register(fs *flag.FlagSet) {
	f.backend = "bolt"
	f.codec = "cbor"
	f.keys = "id"
	fs.StringVar(&f.db, "db", f.db, "Cache database path")
	fs.StringVar(&f.backend, "backend", f.backend, "Storage backend")
	fs.StringVar(&f.codec, "codec", f.codec, "Record encoding")
	fs.StringVar(&f.keys, "keys", f.keys, "Fields identifying objects")
	fs.IntVar(&f.verbosity, "v", f.verbosity, "Log verbosity")
}

func (f *cacheFlags) validate() error {
	switch f.backend {
	case "bolt", "badger":
		if f.db == "" {
			return fmt.Errorf("-db is required")
		}
	case "btree":
	default:
		return fmt.Errorf("unknown backend %q", f.backend)
	}
	return nil
}

func (f *cacheFlags) logger() logr.Logger {
	if f.log == nil {
		stdr.SetVerbosity(f.verbosity)
		l := stdr.New(log.New(os.Stderr, "", log.LstdFlags))
		f.log = &l
	}
	return *f.log
}

type env struct {
	store *store.Store
	kv    kvstore.Store
}

func (e *env) Close() error { return e.kv.Close() }

func (f *cacheFlags) open(bus *eventbus.Bus) (*env, error) {
	c, err := codec.ByName(f.codec)
	if err != nil {
		return nil, err
	}
	l := f.logger()

	var kv kvstore.Store
	switch f.backend {
	case "bolt":
		kv, err = boltdb.New(boltdb.Config{Path: f.db, Timeout: time.Second})
	case "badger":
		kv, err = badgerdb.New(badgerdb.Config{Path: f.db, Logger: l.WithName("badger")})
	case "btree":
		kv = btreedb.New()
	}
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", f.backend, err)
	}
	l.V(1).Info("opened cache", "backend", f.backend, "path", f.db, "codec", c.Name())

	s := store.New(
		store.WithCache(cache.NewKV(kv, c, cache.WithLogger(l.WithName("cache")))),
		store.WithCacheKeyFunc(keyFunc(strings.Split(f.keys, ","))),
		store.WithLogger(l.WithName("store")),
		store.WithBus(bus),
	)
	return &env{store: s, kv: kv}, nil
}

// keyFunc identifies objects as Typename:value by the first of fields
// holding a string or integer.
func keyFunc(fields []string) func(value.Object) string {
	return func(obj value.Object) string {
		typename, _ := obj["__typename"].(string)
		if typename == "" {
			return ""
		}
		for _, name := range fields {
			switch v := obj[strings.TrimSpace(name)].(type) {
			case string:
				return typename + ":" + v
			case int64:
				return fmt.Sprintf("%s:%d", typename, v)
			}
		}
		return ""
	}
}

type operationFlags struct {
	schema    string
	query     string
	operation string
	variables string
}

func (f *operationFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.schema, "schema", f.schema, "GraphQL SDL file")
	fs.StringVar(&f.query, "query", f.query, "Query document file")
	fs.StringVar(&f.operation, "operation", f.operation, "Operation name")
	fs.StringVar(&f.variables, "variables", f.variables, "Operation variables JSON")
}

func (f *operationFlags) validate() error {
	var errs []error
	if f.schema == "" {
		errs = append(errs, fmt.Errorf("-schema is required"))
	}
	if f.query == "" {
		errs = append(errs, fmt.Errorf("-query is required"))
	}
	return errors.Join(errs...)
}

func (f *operationFlags) compile() (*selection.Operation, error) {
	sdl, err := os.ReadFile(f.schema)
	if err != nil {
		return nil, err
	}
	query, err := os.ReadFile(f.query)
	if err != nil {
		return nil, err
	}
	c, err := compile.FromSDL(f.schema, string(sdl), compile.WithCacheSize(0))
	if err != nil {
		return nil, err
	}
	op, err := c.Compile(string(query), f.operation)
	if err != nil {
		return nil, err
	}

	vars := make(map[string]any, len(op.Variables))
	for k, v := range op.Variables {
		vars[k] = v
	}
	if f.variables != "" {
		dec := json.NewDecoder(strings.NewReader(f.variables))
		dec.UseNumber()
		var raw map[string]any
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("invalid -variables: %w", err)
		}
		for k, v := range raw {
			nv, err := value.Normalize(v)
			if err != nil {
				return nil, fmt.Errorf("invalid -variables: %w", err)
			}
			vars[k] = nv
		}
	}
	return op.WithVariables(vars), nil
}

// setupTelemetry starts tracing and, when metricsAddr is set, a Prometheus
// endpoint, both fed from bus.
func setupTelemetry(ctx context.Context, bus *eventbus.Bus, metricsAddr, otelEndpoint, otelService string, l logr.Logger) (func(context.Context) error, error) {
	shutdownTracing, err := otel.Setup(ctx, bus, otelEndpoint, otelService)
	if err != nil {
		return nil, fmt.Errorf("otel setup: %w", err)
	}
	if metricsAddr == "" {
		return shutdownTracing, nil
	}

	m := metrics.New()
	registry := prometheus.NewRegistry()
	m.MustRegister(registry)
	unsubscribe := m.Subscribe(bus)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: metricsAddr, Handler: mux}
	go func() {
		l.Info("metrics listening", "addr", metricsAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error(err, "metrics server stopped")
		}
	}()

	return func(ctx context.Context) error {
		unsubscribe()
		return errors.Join(srv.Shutdown(ctx), shutdownTracing(ctx))
	}, nil
}
