// Package observability exposes Prometheus metrics for the HTTP surface and
// the background scan pipeline.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects application metrics on a private registry.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	scansTotal      prometheus.Counter
	scanDecisions   *prometheus.CounterVec
	dispatchTotal   *prometheus.CounterVec
}

// NewMetrics initialises the registry and base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "recouvra_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "recouvra_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	scans := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "recouvra_relance_scans_total",
		Help: "Completed escalation scan runs.",
	})
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "recouvra_relance_decisions_total",
		Help: "Scan outcomes by kind: status_change, dispatched, escalated, skipped, failure.",
	}, []string{"kind"})
	dispatch := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "recouvra_messages_dispatched_total",
		Help: "Outbound messages by channel and result.",
	}, []string{"channel", "result"})
	registry.MustRegister(requests, duration, scans, decisions, dispatch)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		scansTotal:      scans,
		scanDecisions:   decisions,
		dispatchTotal:   dispatch,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ObserveScan records the outcome counts of one scan run.
func (m *Metrics) ObserveScan(statusChanges, dispatched, escalated, skipped, failures int) {
	if m == nil {
		return
	}
	m.scansTotal.Inc()
	m.scanDecisions.WithLabelValues("status_change").Add(float64(statusChanges))
	m.scanDecisions.WithLabelValues("dispatched").Add(float64(dispatched))
	m.scanDecisions.WithLabelValues("escalated").Add(float64(escalated))
	m.scanDecisions.WithLabelValues("skipped").Add(float64(skipped))
	m.scanDecisions.WithLabelValues("failure").Add(float64(failures))
}

// ObserveDispatch records one outbound message attempt.
func (m *Metrics) ObserveDispatch(channel string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.dispatchTotal.WithLabelValues(channel, result).Inc()
}

// Registerer exposes the registry for custom metric registration.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
