// Package cache is a small byte cache on top of freecache used for stored documents and rendered
// greeting cards.
package cache

import (
	"time"
	"unsafe"

	"github.com/coocood/freecache"

	"journey/api/internal/metrics"
)

type Provider interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte)
	Del(key string)
}

type FreeCache struct {
	cache *freecache.Cache
	ttl   int
}

// New returns a freecache-backed provider, or a no-op one when sizeMB is not positive.
func New(sizeMB int, ttl time.Duration) Provider {
	if sizeMB <= 0 {
		return Noop()
	}
	return &FreeCache{
		cache: freecache.NewCache(sizeMB * 1024 * 1024),
		ttl:   max(int(ttl.Seconds()), 1),
	}
}

// unsafeStringToBytes avoids a copy; freecache copies keys internally.
func unsafeStringToBytes(s string) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice(unsafe.StringData(s), len(s))
}

func (c *FreeCache) Get(key string) ([]byte, bool) {
	val, err := c.cache.Get(unsafeStringToBytes(key))
	if err != nil {
		return nil, false
	}
	return val, true
}

func (c *FreeCache) Set(key string, value []byte) {
	_ = c.cache.Set(unsafeStringToBytes(key), value, c.ttl)
}

func (c *FreeCache) Del(key string) {
	c.cache.Del(unsafeStringToBytes(key))
}

// Instrumented counts hits and misses on every Get.
type Instrumented struct {
	inner   Provider
	metrics metrics.Provider
}

func WithMetrics(inner Provider, m metrics.Provider) Provider {
	if _, ok := inner.(noopCache); ok {
		return inner
	}
	return &Instrumented{inner: inner, metrics: m}
}

func (c *Instrumented) Get(key string) ([]byte, bool) {
	val, ok := c.inner.Get(key)
	if ok {
		c.metrics.IncCacheHits()
	} else {
		c.metrics.IncCacheMisses()
	}
	return val, ok
}

func (c *Instrumented) Set(key string, value []byte) { c.inner.Set(key, value) }
func (c *Instrumented) Del(key string)               { c.inner.Del(key) }

func Noop() Provider { return noopCache{} }

type noopCache struct{}

func (noopCache) Get(_ string) ([]byte, bool) { return nil, false }
func (noopCache) Set(_ string, _ []byte)      {}
func (noopCache) Del(_ string)                {}
