// Package cache holds an in-memory LRU decorator for threshold reads.
package cache

import (
	"container/list"
	"context"
	"sync"

	"github.com/couchcryptid/fcst-verif-service/internal/domain"
	"github.com/couchcryptid/fcst-verif-service/internal/observability"
	"github.com/couchcryptid/fcst-verif-service/internal/pipeline"
)

// ThresholdSource wraps a Source and keeps recently loaded thresholds in an
// LRU. Forecast and observation reads pass straight through.
type ThresholdSource struct {
	pipeline.Source
	cache   *lru[*domain.Threshold]
	metrics *observability.Metrics
}

var _ pipeline.Source = (*ThresholdSource)(nil)

// NewThresholdSource creates a cache decorator holding up to maxEntries
// thresholds.
func NewThresholdSource(inner pipeline.Source, maxEntries int, metrics *observability.Metrics) *ThresholdSource {
	return &ThresholdSource{
		Source:  inner,
		cache:   newLRU[*domain.Threshold](maxEntries),
		metrics: metrics,
	}
}

func (c *ThresholdSource) LoadThreshold(ctx context.Context, v domain.Variable, period string) (*domain.Threshold, error) {
	key := v.Name + "|" + v.Threshold.String() + "|" + period
	if thr, ok := c.cache.get(key); ok {
		c.metrics.ThresholdCache.WithLabelValues("hit").Inc()
		return thr, nil
	}
	c.metrics.ThresholdCache.WithLabelValues("miss").Inc()

	thr, err := c.Source.LoadThreshold(ctx, v, period)
	if err != nil {
		// Misses are not cached so a file added mid-run is picked up.
		return nil, err
	}
	c.cache.put(key, thr)
	return thr, nil
}

// lru is a thread-safe least-recently-used map. The front of order is the
// most recently used entry.
type lru[V any] struct {
	maxEntries int
	mu         sync.Mutex
	order      *list.List
	entries    map[string]*list.Element
}

type item[V any] struct {
	key   string
	value V
}

func newLRU[V any](maxEntries int) *lru[V] {
	return &lru[V]{
		maxEntries: maxEntries,
		order:      list.New(),
		entries:    make(map[string]*list.Element),
	}
}

func (c *lru[V]) get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*item[V]).value, true
}

func (c *lru[V]) put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*item[V]).value = value
		c.order.MoveToFront(el)
		return
	}
	c.entries[key] = c.order.PushFront(&item[V]{key: key, value: value})

	for c.order.Len() > c.maxEntries {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*item[V]).key)
	}
}

func (c *lru[V]) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
