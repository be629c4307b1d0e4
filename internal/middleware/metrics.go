package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboard_http_requests_total",
		Help: "Total number of HTTP requests served",
	}, []string{"route", "method", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dashboard_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})

	pagesRendered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboard_pages_rendered_total",
		Help: "Total number of rendered pages",
	}, []string{"page", "state"})

	// Upstream API metrics
	apiRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dashboard_api_request_duration_seconds",
		Help:    "Duration of upstream API requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint", "status"})

	apiRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboard_api_requests_total",
		Help: "Total number of upstream API requests",
	}, []string{"endpoint", "status"})

	// Cache metrics
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dashboard_cache_hits_total",
		Help: "Total number of cache hits",
	})

	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dashboard_cache_misses_total",
		Help: "Total number of cache misses",
	})

	cacheJoins = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dashboard_cache_inflight_joins_total",
		Help: "Total number of requests that joined an in-flight fetch",
	})

	// Rate limit metrics
	rateLimitExceeded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboard_rate_limit_exceeded_total",
		Help: "Total number of rate limit exceeded events",
	}, []string{"route"})

	// Storage metrics
	storageOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboard_storage_operations_total",
		Help: "Total number of storage operations",
	}, []string{"operation", "status"})

	storageOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dashboard_storage_operation_duration_seconds",
		Help:    "Duration of storage operations",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dashboard_active_sessions",
		Help: "Number of stored view sessions",
	})

	cachedQueries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dashboard_cached_queries",
		Help: "Number of resolved queries held in the cache",
	})
)

// Metrics provides methods to record metrics
type Metrics struct{}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordHTTPRequest records a served request
func (m *Metrics) RecordHTTPRequest(route, method string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordPageRendered records a page render; state is ready, loading or error
func (m *Metrics) RecordPageRendered(page, state string) {
	pagesRendered.WithLabelValues(page, state).Inc()
}

// RecordAPIRequest records an upstream API request
func (m *Metrics) RecordAPIRequest(endpoint, status string, duration time.Duration) {
	apiRequestDuration.WithLabelValues(endpoint, status).Observe(duration.Seconds())
	apiRequestsTotal.WithLabelValues(endpoint, status).Inc()
}

// RecordCacheHit records a cache hit
func (m *Metrics) RecordCacheHit() {
	cacheHits.Inc()
}

// RecordCacheMiss records a cache miss
func (m *Metrics) RecordCacheMiss() {
	cacheMisses.Inc()
}

// RecordCacheJoin records a request served by an in-flight fetch
func (m *Metrics) RecordCacheJoin() {
	cacheJoins.Inc()
}

// RecordRateLimitExceeded records a rate limit exceeded event
func (m *Metrics) RecordRateLimitExceeded(route string) {
	rateLimitExceeded.WithLabelValues(route).Inc()
}

// RecordStorageOperation records a storage operation
func (m *Metrics) RecordStorageOperation(operation, status string, duration time.Duration) {
	storageOperations.WithLabelValues(operation, status).Inc()
	storageOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// SetActiveSessions sets the number of stored sessions
func (m *Metrics) SetActiveSessions(count float64) {
	activeSessions.Set(count)
}

// SetCachedQueries sets the number of resolved cache entries
func (m *Metrics) SetCachedQueries(count float64) {
	cachedQueries.Set(count)
}

// statusRecorder captures the status code written by a handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// routeName returns the path template of the matched route so label values
// stay bounded
func routeName(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// Instrument records request count and latency per route
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		m.RecordHTTPRequest(routeName(r), r.Method, rec.status, time.Since(start))
	})
}

// StartMetricsServer starts the metrics HTTP server
func StartMetricsServer(port int, path string) error {
	router := mux.NewRouter()
	router.Handle(path, promhttp.Handler())

	// Health check endpoint
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	addr := fmt.Sprintf(":%d", port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return server.ListenAndServe()
}
