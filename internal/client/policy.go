package client

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// CachePolicy decides whether a fetch reads the cache, the network or
// both.
type CachePolicy int

const (
	// ReturnCacheDataElseFetch answers from the cache and goes to the
	// network only on a cache miss.
	ReturnCacheDataElseFetch CachePolicy = iota
	// FetchIgnoringCacheData always goes to the network and writes the
	// response to the cache.
	FetchIgnoringCacheData
	// ReturnCacheDataDontFetch answers from the cache only; a miss fails
	// with ErrCacheMiss.
	ReturnCacheDataDontFetch
	// ReturnCacheDataAndFetch delivers cached data when present, then the
	// network result.
	ReturnCacheDataAndFetch
	// FetchIgnoringCacheCompletely goes to the network and leaves the
	// cache untouched.
	FetchIgnoringCacheCompletely
)

func (p CachePolicy) String() string {
	switch p {
	case ReturnCacheDataElseFetch:
		return "ReturnCacheDataElseFetch"
	case FetchIgnoringCacheData:
		return "FetchIgnoringCacheData"
	case ReturnCacheDataDontFetch:
		return "ReturnCacheDataDontFetch"
	case ReturnCacheDataAndFetch:
		return "ReturnCacheDataAndFetch"
	case FetchIgnoringCacheCompletely:
		return "FetchIgnoringCacheCompletely"
	default:
		return fmt.Sprintf("CachePolicy(%d)", int(p))
	}
}

var policies = []CachePolicy{
	ReturnCacheDataElseFetch,
	FetchIgnoringCacheData,
	ReturnCacheDataDontFetch,
	ReturnCacheDataAndFetch,
	FetchIgnoringCacheCompletely,
}

// ParsePolicy returns the policy whose String form matches name, ignoring
// case.
func ParsePolicy(name string) (CachePolicy, error) {
	p, ok := lo.Find(policies, func(p CachePolicy) bool { return strings.EqualFold(p.String(), name) })
	if !ok {
		return 0, fmt.Errorf("client: unknown cache policy %q", name)
	}
	return p, nil
}

func (p CachePolicy) readsCache() bool {
	return p == ReturnCacheDataElseFetch || p == ReturnCacheDataDontFetch || p == ReturnCacheDataAndFetch
}

func (p CachePolicy) writesCache() bool { return p != FetchIgnoringCacheCompletely }

// State is the progress of a fetch operation.
type State int32

const (
	Start State = iota
	NetworkInFlight
	Normalizing
	Delivered
	Cancelled
)

func (s State) String() string {
	switch s {
	case Start:
		return "Start"
	case NetworkInFlight:
		return "NetworkInFlight"
	case Normalizing:
		return "Normalizing"
	case Delivered:
		return "Delivered"
	case Cancelled:
		return "Cancelled"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

func (s State) final() bool { return s == Delivered || s == Cancelled }
