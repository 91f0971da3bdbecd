package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ssargent/marinedb/pkg/marine"
	"github.com/ssargent/marinedb/pkg/memory"
	"github.com/ssargent/marinedb/pkg/pool"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Metrics holds all Prometheus metrics for the API
type Metrics struct {
	// HTTP request metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight *prometheus.GaugeVec

	// Record service metrics
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	regionRecords     *prometheus.GaugeVec
	poolKeys          prometheus.Gauge
	poolDataSizeBytes prometheus.Gauge

	// API key authentication metrics
	authRequestsTotal *prometheus.CounterVec

	// Health check metrics
	healthChecksTotal *prometheus.CounterVec
}

// NewMetrics creates all Prometheus metrics and registers them on reg.
// A nil reg registers on the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marine_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "marine_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		httpRequestsInFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "marine_http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
			[]string{"method", "endpoint"},
		),

		operationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marine_operations_total",
				Help: "Total number of record operations by outcome",
			},
			[]string{"collection", "operation", "kind"},
		),

		operationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "marine_operation_duration_seconds",
				Help:    "Record operation duration in seconds, including dispatch wait",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"collection", "operation"},
		),

		regionRecords: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "marine_region_records",
				Help: "Number of keys stored in each memory region",
			},
			[]string{"region"},
		),

		poolKeys: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "marine_pool_keys",
				Help: "Total number of live keys in the backing pool",
			},
		),

		poolDataSizeBytes: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "marine_pool_data_size_bytes",
				Help: "Size of the backing pool data in bytes",
			},
		),

		authRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marine_auth_requests_total",
				Help: "Total number of authentication requests",
			},
			[]string{"status"},
		),

		healthChecksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marine_health_checks_total",
				Help: "Total number of health checks",
			},
			[]string{"status"},
		),
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	statusCodeStr := strconv.Itoa(statusCode)

	m.httpRequestsTotal.WithLabelValues(method, endpoint, statusCodeStr).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordOperation records one facade call. Successful calls are labelled "ok".
func (m *Metrics) RecordOperation(collection, operation string, kind marine.ErrorKind, duration time.Duration) {
	label := string(kind)
	if kind == marine.KindNone {
		label = "ok"
	}
	m.operationsTotal.WithLabelValues(collection, operation, label).Inc()
	m.operationDuration.WithLabelValues(collection, operation).Observe(duration.Seconds())
}

// UpdateRegionStats sets the per-region gauges.
func (m *Metrics) UpdateRegionStats(regions []memory.RegionStats) {
	for _, r := range regions {
		m.regionRecords.WithLabelValues(r.Name).Set(float64(r.Keys))
	}
}

// UpdatePoolStats updates backing pool statistics
func (m *Metrics) UpdatePoolStats(stats pool.Stats) {
	m.poolKeys.Set(float64(stats.Keys))
	m.poolDataSizeBytes.Set(float64(stats.DataSize))
}

// RecordAuthRequest records an authentication request
func (m *Metrics) RecordAuthRequest(success bool) {
	status := statusSuccess
	if !success {
		status = statusError
	}
	m.authRequestsTotal.WithLabelValues(status).Inc()
}

// RecordHealthCheck records a health check
func (m *Metrics) RecordHealthCheck(success bool) {
	status := statusSuccess
	if !success {
		status = statusError
	}
	m.healthChecksTotal.WithLabelValues(status).Inc()
}

// InstrumentHandler instruments an HTTP handler with metrics
func (m *Metrics) InstrumentHandler(method, endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		gauge := m.httpRequestsInFlight.WithLabelValues(method, endpoint)
		gauge.Inc()
		defer gauge.Dec()

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		handler(rw, r)

		m.RecordHTTPRequest(method, endpoint, rw.statusCode, time.Since(start))
	}
}

// InstrumentAuthMiddleware counts requests that presented an API key by outcome.
func (m *Metrics) InstrumentAuthMiddleware(next func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hasAPIKey := r.Header.Get(headerAPIKey) != ""

			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next(h).ServeHTTP(rw, r)

			if hasAPIKey {
				m.RecordAuthRequest(rw.statusCode != http.StatusUnauthorized)
			}
		})
	}
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
