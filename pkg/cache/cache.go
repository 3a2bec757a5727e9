// Package cache provides a generic, thread-safe LRU cache with optional
// entry expiry.
//
// Statistics are always collected. Prometheus metrics are opt-in through
// WithMetrics and exported as
//
//	mmif_cache_operations_total{cache,op}
//
// where op is one of hit, miss, set, delete or evict.
package cache

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/mmif/errors"
	"github.com/c360/mmif/metric"
)

// Cache is a string-keyed cache of V.
type Cache[V any] interface {
	// Get returns the value for key. Expired entries are misses.
	Get(key string) (V, bool)

	// Set stores value under key and reports whether the entry is new.
	Set(key string, value V) (bool, error)

	// Delete removes key and reports whether it was present. The eviction
	// callback runs for deleted entries too.
	Delete(key string) (bool, error)

	// Clear removes every entry.
	Clear()

	// Size returns the number of entries, expired ones included until they
	// are touched.
	Size() int

	// Keys returns the keys, most recently used first.
	Keys() []string

	// Stats returns a snapshot of the counters.
	Stats() Stats
}

// EvictCallback is called, outside any lock, for every entry that leaves
// the cache.
type EvictCallback[V any] func(key string, value V)

// Stats counts cache operations.
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Sets      int64 `json:"sets"`
	Deletes   int64 `json:"deletes"`
	Evictions int64 `json:"evictions"`
	Size      int   `json:"size"`
}

// HitRatio returns hits over lookups, or 0 before any lookup.
func (s Stats) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Option configures a cache.
type Option[V any] func(*options[V])

type options[V any] struct {
	ttl      time.Duration
	evict    EvictCallback[V]
	registry metric.MetricsRegistrar
	name     string
	now      func() time.Time
}

// WithTTL expires entries ttl after they were last set. Non-positive
// values are ignored.
func WithTTL[V any](ttl time.Duration) Option[V] {
	return func(o *options[V]) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithEvictionCallback sets the eviction callback.
func WithEvictionCallback[V any](fn EvictCallback[V]) Option[V] {
	return func(o *options[V]) { o.evict = fn }
}

// WithMetrics exports operation counters to registry under name. A nil
// registry or empty name is ignored.
func WithMetrics[V any](registry metric.MetricsRegistrar, name string) Option[V] {
	return func(o *options[V]) {
		if registry != nil && name != "" {
			o.registry = registry
			o.name = name
		}
	}
}

func withClock[V any](now func() time.Time) Option[V] {
	return func(o *options[V]) { o.now = now }
}

// ErrEmptyKey is returned for operations on the empty key.
var ErrEmptyKey = errors.New("cache key cannot be empty")

// NewLRU creates a cache holding at most maxSize entries.
func NewLRU[V any](maxSize int, opts ...Option[V]) (Cache[V], error) {
	if maxSize <= 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "cache", "NewLRU", "max size must be positive")
	}
	o := &options[V]{now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	c := newLRU(maxSize, o)
	if o.registry != nil {
		ops := prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "mmif",
			Subsystem:   "cache",
			Name:        "operations_total",
			Help:        "Cache operations by kind.",
			ConstLabels: prometheus.Labels{"cache": o.name},
		}, []string{"op"})
		if err := o.registry.RegisterCounterVec("cache."+o.name, "operations_total", ops); err != nil {
			return nil, errors.WrapTransient(err, "cache", "NewLRU", "metrics registration")
		}
		c.ops = ops
	}
	return c, nil
}

func validateKey(key string) error {
	if key == "" {
		return errors.WrapInvalid(ErrEmptyKey, "cache", "validateKey", "check key")
	}
	return nil
}
