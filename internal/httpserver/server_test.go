package httpserver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthHandler_AllCheckersOK_ReportsHealthy(t *testing.T) {
	reg := prometheus.NewRegistry()
	e := New(DefaultConfig(0), "titan-aas", reg, map[string]HealthChecker{
		"storage": func(ctx context.Context) error { return nil },
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
}

func TestHealthHandler_FailingChecker_ReportsDegraded(t *testing.T) {
	reg := prometheus.NewRegistry()
	e := New(DefaultConfig(0), "titan-aas", reg, map[string]HealthChecker{
		"cache": func(ctx context.Context) error { return errors.New("refused") },
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "refused")
}

func TestMetricsEndpoint_ServesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "titan_test_total", Help: "test"})
	require.NoError(t, reg.Register(counter))
	counter.Inc()

	e := New(DefaultConfig(0), "titan-aas", reg, nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "titan_test_total 1")
}
