package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leapsec_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "leapsec_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	conversionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leapsec_conversions_total",
			Help: "Total conversions served, by source and target scale.",
		},
		[]string{"from", "to"},
	)

	tableEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "leapsec_table_entries",
			Help: "Number of records in the current leap-second table.",
		},
	)

	tableAgeSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "leapsec_table_age_seconds",
			Help: "Age of the current leap-second table in seconds.",
		},
	)

	lastRefreshTimestamp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "leapsec_last_refresh_timestamp_seconds",
			Help: "Unix time of the last successful table refresh.",
		},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpDurationSeconds)
	prometheus.MustRegister(conversionsTotal)
	prometheus.MustRegister(tableEntries)
	prometheus.MustRegister(tableAgeSeconds)
	prometheus.MustRegister(lastRefreshTimestamp)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// IncConversion records one served conversion between two time scales.
func IncConversion(from, to string) {
	conversionsTotal.WithLabelValues(from, to).Inc()
}

// SetTableEntries records the size of the current table snapshot.
func SetTableEntries(n int) {
	tableEntries.Set(float64(n))
}

// SetTableAge records the age of the current table snapshot.
func SetTableAge(seconds float64) {
	tableAgeSeconds.Set(seconds)
}

// SetLastRefresh records when the table was last refreshed.
func SetLastRefresh(ts time.Time) {
	lastRefreshTimestamp.Set(float64(ts.Unix()))
}

// knownRoutes are the exact paths the server registers.
var knownRoutes = map[string]bool{
	"/healthz":        true,
	"/readyz":         true,
	"/metrics":        true,
	"/api/v1/convert": true,
	"/api/v1/offset":  true,
	"/api/v1/table":   true,
}

// normalizeRoute collapses unknown paths to a single label so scanner traffic
// cannot blow up metric cardinality.
func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	if strings.HasPrefix(path, "/api/v1/") {
		return "/api/v1/other"
	}
	return "other"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		route := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(route, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(duration)
	})
}
