package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docsearchd/docsearchd/internal/registry"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	reg := newTestRegistry(t, "docs")
	metricsReg := prometheus.NewRegistry()
	metrics := NewMetrics(metricsReg)

	return New(Dependencies{
		Registry:   reg,
		Searcher:   stubSearcher{},
		Metrics:    metrics,
		MetricsReg: metricsReg,
	})
}

func TestRouter_HealthRoute(t *testing.T) {
	router := newTestRouter(t)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_HealthRoute_TopLevelAlias(t *testing.T) {
	router := newTestRouter(t)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_MetricsRoute(t *testing.T) {
	router := newTestRouter(t)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "docsearchd_http_requests_total")
}

func TestRouter_CollectionsRoute(t *testing.T) {
	router := newTestRouter(t)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/collections", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_NotFound_ReturnsJSONEnvelope(t *testing.T) {
	router := newTestRouter(t)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/bogus", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"success":false`)
}

func TestRouter_WithoutMetricsReg_SkipsMetricsRoute(t *testing.T) {
	reg, err := registry.New(nil)
	require.NoError(t, err)
	_, err = reg.CreateCollection("docs", "test")
	require.NoError(t, err)

	router := New(Dependencies{Registry: reg})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
