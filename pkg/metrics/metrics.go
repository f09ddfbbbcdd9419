package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is safe to use as a nil pointer, every recorder is a no-op then.
type Metrics struct {
	providerRequests   *prometheus.CounterVec
	cacheResults       *prometheus.CounterVec
	throttleWait       prometheus.Histogram
	monitorTicks       *prometheus.CounterVec
	activeMonitors     prometheus.Gauge
	httpDuration       *prometheus.HistogramVec
	durationSummary    prometheus.Summary
	responseStatusCode *prometheus.CounterVec
	totalRequests      *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		providerRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "deliverynav",
			Name:      "provider_requests_total",
			Help:      "The total number of requests sent to the routing provider",
		}, []string{"provider", "kind", "result"}),
		cacheResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "deliverynav",
			Name:      "cache_lookups_total",
			Help:      "Routing cache lookups by result",
		}, []string{"kind", "result"}),
		throttleWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "deliverynav",
			Name:      "throttle_wait_seconds",
			Help:      "Time callers spent waiting for a provider request slot",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}),
		monitorTicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "deliverynav",
			Name:      "traffic_monitor_ticks_total",
			Help:      "Traffic polling ticks by overall traffic level",
		}, []string{"level"}),
		activeMonitors: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "deliverynav",
			Name:      "traffic_monitors_active",
			Help:      "Routes currently being polled for traffic",
		}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "deliverynav",
			Name:      "request_duration_seconds",
			Help:      "The duration of request",
			Buckets:   []float64{0.05, 0.1, 0.15, 0.2, 0.25, 0.3}, // 0.001 = 1ms
		}, []string{"method", "path"}),
		durationSummary: prometheus.NewSummary(prometheus.SummaryOpts{
			Namespace:  "deliverynav",
			Name:       "request_duration_summary_seconds",
			Help:       "The duration of request",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		}),
		responseStatusCode: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "deliverynav",
				Name:      "response_status_code",
				Help:      "The status code of http response",
			}, []string{"status", "method", "path"},
		),
		totalRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "deliverynav",
				Name:      "total_requests",
				Help:      "The total number of requests",
			}, []string{"path", "method", "status"},
		),
	}
	reg.MustRegister(m.providerRequests, m.cacheResults, m.throttleWait, m.monitorTicks, m.activeMonitors,
		m.httpDuration, m.durationSummary, m.responseStatusCode, m.totalRequests)
	return m
}

func (m *Metrics) ProviderRequest(provider, kind string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.providerRequests.WithLabelValues(provider, kind, result).Inc()
}

func (m *Metrics) CacheLookup(kind string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheResults.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) ThrottleWait(d time.Duration) {
	if m == nil {
		return
	}
	m.throttleWait.Observe(d.Seconds())
}

func (m *Metrics) MonitorTick(level string) {
	if m == nil {
		return
	}
	m.monitorTicks.WithLabelValues(level).Inc()
}

func (m *Metrics) MonitorStarted() {
	if m == nil {
		return
	}
	m.activeMonitors.Inc()
}

func (m *Metrics) MonitorStopped() {
	if m == nil {
		return
	}
	m.activeMonitors.Dec()
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func NewResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{w, http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// PromeHttpMiddleware records request metrics labelled by the chi route pattern, so
// /api/navigations/{driverID} counts as one path whatever the driver.
func PromeHttpMiddleware(m *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m == nil {
				next.ServeHTTP(w, r)
				return
			}
			rw := NewResponseWriter(w)
			now := time.Now()

			next.ServeHTTP(rw, r)

			path := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				path = rctx.RoutePattern()
			}
			statusCode := strconv.Itoa(rw.statusCode)
			elapsed := time.Since(now).Seconds()

			m.httpDuration.With(prometheus.Labels{"method": r.Method, "path": path}).Observe(elapsed)
			m.responseStatusCode.With(prometheus.Labels{"status": statusCode, "method": r.Method, "path": path}).Inc()
			m.totalRequests.With(prometheus.Labels{"path": path, "method": r.Method, "status": statusCode}).Inc()
			m.durationSummary.Observe(elapsed)
		})
	}
}
