package observability

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Pipeline stages recorded by Metrics.ObserveStage
const (
	StageLoad     = "load"
	StageBuild    = "build"
	StageValidate = "validate"
	StageImpact   = "impact"
	StageExport   = "export"
)

// Metrics holds all Prometheus metrics.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Pipeline metrics
	StageDuration *prometheus.HistogramVec
	ErrorsTotal   *prometheus.CounterVec

	// Graph metrics
	PackagesTotal    prometheus.Gauge
	EdgesTotal       prometheus.Gauge
	ImpactedPackages prometheus.Histogram

	// Cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Snapshot metrics
	ReloadsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "morp_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "morp_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "morp_stage_duration_seconds",
				Help:    "Duration of pipeline stages in seconds",
				Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5},
			},
			[]string{"stage"},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "morp_errors_total",
				Help: "Total number of failed pipeline stages",
			},
			[]string{"stage"},
		),

		PackagesTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "morp_packages_total",
				Help: "Number of packages in the loaded graph",
			},
		),
		EdgesTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "morp_dependency_edges_total",
				Help: "Number of dependency edges in the loaded graph",
			},
		),
		ImpactedPackages: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "morp_impacted_packages",
				Help:    "Number of packages impacted per analysis",
				Buckets: prometheus.ExponentialBuckets(1, 2, 10),
			},
		),

		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "morp_cache_hits_total",
				Help: "Total number of impact cache hits",
			},
			[]string{"cache_type"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "morp_cache_misses_total",
				Help: "Total number of impact cache misses",
			},
			[]string{"cache_type"},
		),

		ReloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "morp_snapshot_reloads_total",
				Help: "Total number of snapshot reloads",
			},
			[]string{"trigger", "status"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.StageDuration,
		m.ErrorsTotal,
		m.PackagesTotal,
		m.EdgesTotal,
		m.ImpactedPackages,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.ReloadsTotal,
	)

	return m
}

// ObserveStage records the duration of a stage started at start, and counts
// it as an error when err is non-nil
func (m *Metrics) ObserveStage(stage string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	if err != nil {
		m.ErrorsTotal.WithLabelValues(stage).Inc()
	}
}

// SetGraphSize records the size of the current graph
func (m *Metrics) SetGraphSize(packages, edges int) {
	if m == nil {
		return
	}
	m.PackagesTotal.Set(float64(packages))
	m.EdgesTotal.Set(float64(edges))
}

// ObserveImpact records the number of impacted packages of one analysis
func (m *Metrics) ObserveImpact(impacted int) {
	if m == nil {
		return
	}
	m.ImpactedPackages.Observe(float64(impacted))
}

// CacheLookup records a cache hit or miss
func (m *Metrics) CacheLookup(cacheType string, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHitsTotal.WithLabelValues(cacheType).Inc()
	} else {
		m.CacheMissesTotal.WithLabelValues(cacheType).Inc()
	}
}

// Reload records a snapshot reload outcome
func (m *Metrics) Reload(trigger string, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.ReloadsTotal.WithLabelValues(trigger, status).Inc()
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics.
// route maps a request to its label; nil uses the URL path.
func HTTPMetricsMiddleware(metrics *Metrics, route func(*http.Request) string) func(http.Handler) http.Handler {
	if route == nil {
		route = func(r *http.Request) string { return r.URL.Path }
	}

	return func(next http.Handler) http.Handler {
		if metrics == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			label := route(r)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, label, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, label).Observe(time.Since(start).Seconds())
		})
	}
}

// MetricsHandler serves the gathered metrics in the Prometheus exposition format
func MetricsHandler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Push sends the gathered metrics to a Prometheus Pushgateway under job
func Push(ctx context.Context, url, job string, gatherer prometheus.Gatherer) error {
	return push.New(url, job).Gatherer(gatherer).PushContext(ctx)
}
