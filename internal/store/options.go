package store

import (
	"github.com/go-logr/logr"

	"github.com/hanpama/graphcache/internal/cache"
	"github.com/hanpama/graphcache/internal/eventbus"
	"github.com/hanpama/graphcache/internal/executor"
)

type Options struct {
	// Cache stores the records. Defaults to an in-memory cache.
	Cache cache.NormalizedCache
	// CacheKeyFunc identifies objects on both the write and the read path.
	CacheKeyFunc executor.CacheKeyFunc
	Logger       logr.Logger
	// Bus receives store events. Defaults to the global bus.
	Bus *eventbus.Bus
}

type Option func(*Options)

func WithCache(c cache.NormalizedCache) Option { return func(o *Options) { o.Cache = c } }

func WithCacheKeyFunc(f executor.CacheKeyFunc) Option {
	return func(o *Options) { o.CacheKeyFunc = f }
}

func WithLogger(l logr.Logger) Option { return func(o *Options) { o.Logger = l } }

func WithBus(b *eventbus.Bus) Option { return func(o *Options) { o.Bus = b } }

func defaultOptions() Options {
	return Options{Logger: logr.Discard(), Bus: eventbus.Default()}
}
