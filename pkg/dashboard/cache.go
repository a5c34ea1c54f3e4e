package dashboard

import (
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/residenciauni/residencia/pkg/observability"
)

// CacheStats reports cache effectiveness
type CacheStats struct {
	Hits      int64
	Misses    int64
	ItemCount int
	HitRate   float64
}

// ttlCache is an LRU whose entries expire after a fixed TTL
type ttlCache[V any] struct {
	cache   *lru.LRU[string, V]
	metrics *observability.Metrics
	hits    atomic.Int64
	misses  atomic.Int64
}

func newTTLCache[V any](size int, ttl time.Duration, metrics *observability.Metrics) *ttlCache[V] {
	if size < 1 {
		size = 1
	}
	return &ttlCache[V]{
		cache:   lru.NewLRU[string, V](size, nil, ttl),
		metrics: metrics,
	}
}

func (c *ttlCache[V]) get(key string) (V, bool) {
	v, ok := c.cache.Get(key)
	if ok {
		c.hits.Add(1)
		c.metrics.CacheHit()
	} else {
		c.misses.Add(1)
		c.metrics.CacheMiss()
	}
	return v, ok
}

func (c *ttlCache[V]) add(key string, v V) {
	c.cache.Add(key, v)
}

func (c *ttlCache[V]) remove(key string) {
	c.cache.Remove(key)
}

func (c *ttlCache[V]) purge() {
	c.cache.Purge()
}

func (c *ttlCache[V]) stats() CacheStats {
	s := CacheStats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		ItemCount: c.cache.Len(),
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}
