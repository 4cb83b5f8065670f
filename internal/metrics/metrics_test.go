package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockMetrics struct {
	noopMetrics
	requestEndpoint string
	requestStatus   int
	requestCalls    int
	durationCalls   int
}

func (m *mockMetrics) IncRequestsTotal(endpoint string, status int) {
	m.requestEndpoint = endpoint
	m.requestStatus = status
	m.requestCalls++
}

func (m *mockMetrics) ObserveRequestDuration(_ string, _ time.Duration) { m.durationCalls++ }

func TestMiddlewareCapturesStatusAndRoute(t *testing.T) {
	metrics := &mockMetrics{}
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/editor/ed_123/save", nil)
	Middleware(metrics, handler).ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, 1, metrics.requestCalls)
	assert.Equal(t, "/api/editor/:id/save", metrics.requestEndpoint)
	assert.Equal(t, http.StatusConflict, metrics.requestStatus)
	assert.Equal(t, 1, metrics.durationCalls)
}

func TestMiddlewareDefaultStatus200(t *testing.T) {
	metrics := &mockMetrics{}
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	Middleware(metrics, handler).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, metrics.requestStatus)
}

func TestRouteLabel(t *testing.T) {
	assert.Equal(t, "/api/journey/days/:day/card.pdf", RouteLabel("/api/journey/days/3/card.pdf"))
	assert.Equal(t, "/api/editor/:id/greetings/:day", RouteLabel("/api/editor/ed_1/greetings/2"))
	assert.Equal(t, "/api/journey", RouteLabel("/api/journey"))
}

func TestPrometheusProvider(t *testing.T) {
	p, ok := New(true).(*PrometheusProvider)
	require.True(t, ok)

	p.IncCompletions()
	p.IncCommits("ok")
	p.IncCommits("ok")
	p.SetUnlockedDays(3)

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	out := string(body)
	assert.True(t, strings.Contains(out, "journey_completions_total 1"))
	assert.True(t, strings.Contains(out, `journey_commits_total{outcome="ok"} 2`))
	assert.True(t, strings.Contains(out, "journey_unlocked_days 3"))

	families, err := p.Registry().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNewDisabledIsNoop(t *testing.T) {
	p := New(false)
	p.IncCompletions()
	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
