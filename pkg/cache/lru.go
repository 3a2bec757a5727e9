package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type lruEntry[V any] struct {
	key     string
	value   V
	expires time.Time
}

type lruCache[V any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	now     func() time.Time
	items   map[string]*list.Element
	order   *list.List
	evictFn EvictCallback[V]
	ops     *prometheus.CounterVec
	stats   Stats
}

func newLRU[V any](maxSize int, o *options[V]) *lruCache[V] {
	return &lruCache[V]{
		maxSize: maxSize,
		ttl:     o.ttl,
		now:     o.now,
		items:   make(map[string]*list.Element),
		order:   list.New(),
		evictFn: o.evict,
	}
}

func (c *lruCache[V]) record(op string, n *int64) {
	*n++
	if c.ops != nil {
		c.ops.WithLabelValues(op).Inc()
	}
}

func (c *lruCache[V]) Get(key string) (V, bool) {
	var zero V

	c.mu.Lock()
	el, ok := c.items[key]
	if !ok {
		c.record("miss", &c.stats.Misses)
		c.mu.Unlock()
		return zero, false
	}
	e := el.Value.(*lruEntry[V])
	if c.expired(e) {
		c.remove(el)
		c.record("evict", &c.stats.Evictions)
		c.record("miss", &c.stats.Misses)
		c.mu.Unlock()
		c.notify([]*lruEntry[V]{e})
		return zero, false
	}
	c.order.MoveToFront(el)
	c.record("hit", &c.stats.Hits)
	c.mu.Unlock()
	return e.value, true
}

func (c *lruCache[V]) Set(key string, value V) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	c.mu.Lock()
	c.record("set", &c.stats.Sets)
	expires := c.expiry()
	if el, ok := c.items[key]; ok {
		e := el.Value.(*lruEntry[V])
		e.value = value
		e.expires = expires
		c.order.MoveToFront(el)
		c.mu.Unlock()
		return false, nil
	}

	c.items[key] = c.order.PushFront(&lruEntry[V]{key: key, value: value, expires: expires})
	var evicted []*lruEntry[V]
	for len(c.items) > c.maxSize {
		back := c.order.Back()
		evicted = append(evicted, back.Value.(*lruEntry[V]))
		c.remove(back)
		c.record("evict", &c.stats.Evictions)
	}
	c.mu.Unlock()

	c.notify(evicted)
	return true, nil
}

func (c *lruCache[V]) Delete(key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	c.mu.Lock()
	el, ok := c.items[key]
	if !ok {
		c.mu.Unlock()
		return false, nil
	}
	e := el.Value.(*lruEntry[V])
	c.remove(el)
	c.record("delete", &c.stats.Deletes)
	c.mu.Unlock()

	c.notify([]*lruEntry[V]{e})
	return true, nil
}

func (c *lruCache[V]) Clear() {
	c.mu.Lock()
	evicted := make([]*lruEntry[V], 0, len(c.items))
	for el := c.order.Back(); el != nil; el = el.Prev() {
		evicted = append(evicted, el.Value.(*lruEntry[V]))
	}
	c.items = make(map[string]*list.Element)
	c.order.Init()
	c.mu.Unlock()

	c.notify(evicted)
}

func (c *lruCache[V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *lruCache[V]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, len(c.items))
	for el := c.order.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(*lruEntry[V]).key)
	}
	return keys
}

func (c *lruCache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stats
	s.Size = len(c.items)
	return s
}

func (c *lruCache[V]) expiry() time.Time {
	if c.ttl <= 0 {
		return time.Time{}
	}
	return c.now().Add(c.ttl)
}

func (c *lruCache[V]) expired(e *lruEntry[V]) bool {
	return !e.expires.IsZero() && !c.now().Before(e.expires)
}

// remove must be called with mu held.
func (c *lruCache[V]) remove(el *list.Element) {
	delete(c.items, el.Value.(*lruEntry[V]).key)
	c.order.Remove(el)
}

func (c *lruCache[V]) notify(entries []*lruEntry[V]) {
	if c.evictFn == nil {
		return
	}
	for _, e := range entries {
		c.evictFn(e.key, e.value)
	}
}
