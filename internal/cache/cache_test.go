package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"journey/api/internal/metrics"
)

func TestFreeCacheSetGetDel(t *testing.T) {
	c := New(1, time.Minute)
	_, ok := c.Get("card:1")
	assert.False(t, ok)

	c.Set("card:1", []byte("pdf"))
	val, ok := c.Get("card:1")
	assert.True(t, ok)
	assert.Equal(t, []byte("pdf"), val)

	c.Del("card:1")
	_, ok = c.Get("card:1")
	assert.False(t, ok)
}

func TestNewDisabled(t *testing.T) {
	c := New(0, time.Minute)
	c.Set("k", []byte("v"))
	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, Noop(), WithMetrics(c, metrics.Noop()))
}

type countingMetrics struct {
	metrics.Provider
	hits, misses int
}

func (m *countingMetrics) IncCacheHits()   { m.hits++ }
func (m *countingMetrics) IncCacheMisses() { m.misses++ }

func TestInstrumentedCountsHitsAndMisses(t *testing.T) {
	m := &countingMetrics{Provider: metrics.Noop()}
	c := WithMetrics(New(1, time.Minute), m)

	c.Get("missing")
	c.Set("present", []byte("x"))
	c.Get("present")

	assert.Equal(t, 1, m.hits)
	assert.Equal(t, 1, m.misses)
}
