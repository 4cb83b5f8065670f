// Package metrics exposes Prometheus instrumentation for the journey service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Provider interface {
	IncRequestsTotal(endpoint string, status int)
	ObserveRequestDuration(endpoint string, duration time.Duration)
	IncCacheHits()
	IncCacheMisses()
	IncCommits(outcome string)
	ObserveStoreDuration(op string, duration time.Duration)
	IncLoadFallbacks()
	IncCompletions()
	SetUnlockedDays(n int)
	Handler() http.Handler
}

type PrometheusProvider struct {
	registry        *prometheus.Registry
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	commits         *prometheus.CounterVec
	storeDuration   *prometheus.HistogramVec
	loadFallbacks   prometheus.Counter
	completions     prometheus.Counter
	unlockedDays    prometheus.Gauge
}

// New returns a provider with its own registry, or a no-op provider when disabled.
func New(enabled bool) Provider {
	if !enabled {
		return Noop()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &PrometheusProvider{
		registry: reg,
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "journey_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"endpoint", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "journey_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		cacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "journey_cache_hits_total",
			Help: "Total number of cache hits",
		}),
		cacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "journey_cache_misses_total",
			Help: "Total number of cache misses",
		}),
		commits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "journey_commits_total",
			Help: "Editor commits by outcome",
		}, []string{"outcome"}),
		storeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "journey_store_duration_seconds",
			Help:    "Document store operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		loadFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "journey_load_fallbacks_total",
			Help: "Times the compiled default journey was used instead of the stored one",
		}),
		completions: factory.NewCounter(prometheus.CounterOpts{
			Name: "journey_completions_total",
			Help: "Times the journey became complete",
		}),
		unlockedDays: factory.NewGauge(prometheus.GaugeOpts{
			Name: "journey_unlocked_days",
			Help: "Current unlock frontier",
		}),
	}
}

func (m *PrometheusProvider) IncRequestsTotal(endpoint string, status int) {
	m.requestsTotal.WithLabelValues(endpoint, httpStatusBucket(status)).Inc()
}

func (m *PrometheusProvider) ObserveRequestDuration(endpoint string, duration time.Duration) {
	m.requestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

func (m *PrometheusProvider) IncCacheHits()   { m.cacheHits.Inc() }
func (m *PrometheusProvider) IncCacheMisses() { m.cacheMisses.Inc() }

func (m *PrometheusProvider) IncCommits(outcome string) {
	m.commits.WithLabelValues(outcome).Inc()
}

func (m *PrometheusProvider) ObserveStoreDuration(op string, duration time.Duration) {
	m.storeDuration.WithLabelValues(op).Observe(duration.Seconds())
}

func (m *PrometheusProvider) IncLoadFallbacks() { m.loadFallbacks.Inc() }
func (m *PrometheusProvider) IncCompletions()   { m.completions.Inc() }

func (m *PrometheusProvider) SetUnlockedDays(n int) {
	m.unlockedDays.Set(float64(n))
}

func (m *PrometheusProvider) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *PrometheusProvider) Registry() *prometheus.Registry {
	return m.registry
}

func httpStatusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

// Noop returns a provider that records nothing.
func Noop() Provider { return noopMetrics{} }

type noopMetrics struct{}

func (noopMetrics) IncRequestsTotal(_ string, _ int)                 {}
func (noopMetrics) ObserveRequestDuration(_ string, _ time.Duration) {}
func (noopMetrics) IncCacheHits()                                    {}
func (noopMetrics) IncCacheMisses()                                  {}
func (noopMetrics) IncCommits(_ string)                              {}
func (noopMetrics) ObserveStoreDuration(_ string, _ time.Duration)   {}
func (noopMetrics) IncLoadFallbacks()                                {}
func (noopMetrics) IncCompletions()                                  {}
func (noopMetrics) SetUnlockedDays(_ int)                            {}
func (noopMetrics) Handler() http.Handler                            { return http.NotFoundHandler() }
