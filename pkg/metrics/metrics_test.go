package metrics_test

import (
	"lintang/deliverynav/pkg/metrics"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.ProviderRequest("google", "route", true)
		m.CacheLookup("route", false)
		m.ThrottleWait(time.Second)
		m.MonitorTick("low")
		m.MonitorStarted()
		m.MonitorStopped()
	})
}

func TestRecorders(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)

	m.ProviderRequest("google", "route", true)
	m.ProviderRequest("google", "route", false)
	m.CacheLookup("route", true)
	m.MonitorStarted()

	count, err := testutil.GatherAndCount(reg, "deliverynav_provider_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = testutil.GatherAndCount(reg, "deliverynav_cache_lookups_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestPromeHttpMiddleware(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)

	h := metrics.PromeHttpMiddleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/usage", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)

	count, err := testutil.GatherAndCount(reg, "deliverynav_total_requests")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
