package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"fotos/internal/metrics"
)

// MetricsConfig holds configuration for the metrics middleware.
type MetricsConfig struct {
	// SkipPaths are path prefixes that are not recorded.
	SkipPaths []string
}

// DefaultMetricsConfig skips probes and the metrics endpoint itself.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		SkipPaths: []string{"/metrics", "/health", "/healthz", "/livez", "/readyz"},
	}
}

// Metrics records request counts, durations and in-flight requests.
func Metrics(config MetricsConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, path := range config.SkipPaths {
				if strings.HasPrefix(r.URL.Path, path) {
					next.ServeHTTP(w, r)
					return
				}
			}

			metrics.HTTPRequestsInFlight.Inc()
			defer metrics.HTTPRequestsInFlight.Dec()

			wrapped := newResponseWriter(w)
			start := time.Now()

			next.ServeHTTP(wrapped, r)

			path := normalizePath(r.URL.Path)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

// routePrefixes map per-photo URLs onto a single label.
var routePrefixes = []struct {
	prefix string
	label  string
}{
	{"/api/photos/", "/api/photos/{id}"},
	{"/api/stats/", "/api/stats/{id}"},
	{"/api/comments/", "/api/comments/{id}"},
	{"/files/", "/files/{path}"},
}

// normalizePath bounds label cardinality: photo ids and file names are
// collapsed, and anything outside the API is reported as static.
func normalizePath(path string) string {
	for _, rp := range routePrefixes {
		if strings.HasPrefix(path, rp.prefix) && len(path) > len(rp.prefix) {
			return rp.label
		}
	}
	if strings.HasPrefix(path, "/api/") || healthCheckPaths[path] {
		return path
	}
	switch path {
	case "/", "/version", "/feed.xml", "/feed.atom":
		return path
	}
	return "/{static}"
}
