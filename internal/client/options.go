package client

import (
	"github.com/go-logr/logr"

	"github.com/hanpama/graphcache/internal/eventbus"
	"github.com/hanpama/graphcache/internal/queue"
)

type Options struct {
	// Queue runs result handlers. Defaults to a serial queue owned by the
	// client.
	Queue  queue.Queue
	Logger logr.Logger
	Bus    *eventbus.Bus
}

type Option func(*Options)

func WithQueue(q queue.Queue) Option { return func(o *Options) { o.Queue = q } }

func WithLogger(l logr.Logger) Option { return func(o *Options) { o.Logger = l } }

func WithBus(b *eventbus.Bus) Option { return func(o *Options) { o.Bus = b } }

func defaultOptions() Options {
	return Options{Logger: logr.Discard(), Bus: eventbus.Default()}
}
