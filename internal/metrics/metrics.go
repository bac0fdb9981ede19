package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fotos_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fotos_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fotos_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fotos_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fotos_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBSizeBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fotos_db_size_bytes",
			Help: "Size of the downloaded gallery database in bytes",
		},
	)
)

// Loader metrics
var (
	LoaderDownloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fotos_loader_downloads_total",
			Help: "Total number of gallery database downloads",
		},
		[]string{"source", "status"},
	)

	LoaderDownloadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fotos_loader_download_duration_seconds",
			Help:    "Time taken to download and open the gallery database",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	LoaderSharedWaits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fotos_loader_shared_waits_total",
			Help: "Callers that joined a load already in progress",
		},
	)

	LoaderReady = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fotos_loader_ready",
			Help: "Whether the gallery database is loaded (1 = loaded, 0 = not loaded)",
		},
	)
)

// Bluesky API metrics
var (
	BlueskyRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fotos_bluesky_requests_total",
			Help: "Total number of requests to the public Bluesky API",
		},
		[]string{"endpoint", "status"},
	)

	BlueskyRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fotos_bluesky_request_duration_seconds",
			Help:    "Bluesky API request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"endpoint"},
	)
)

// Engagement metrics
var (
	StatsLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fotos_stats_lookups_total",
			Help: "Engagement stats lookups by where the answer came from",
		},
		[]string{"source"}, // "cache", "api", "none", "error"
	)

	PostIDCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fotos_post_id_cache_hits_total",
			Help: "Post id lookups served from the session cache",
		},
	)

	PostIDCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fotos_post_id_cache_misses_total",
			Help: "Post id lookups that queried the database",
		},
	)

	SyncPostsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fotos_sync_posts_total",
			Help: "Posts processed by the stats refresher",
		},
		[]string{"status"}, // "updated", "failed"
	)
)

// Response cache metrics
var (
	ResponseCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fotos_response_cache_hits_total",
			Help: "Response cache hits by cache backend",
		},
		[]string{"backend"},
	)

	ResponseCacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fotos_response_cache_misses_total",
			Help: "Response cache misses by cache backend",
		},
		[]string{"backend"},
	)
)

// Gallery contents
var (
	GalleryPhotosTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fotos_gallery_photos_total",
			Help: "Number of photos in the gallery database",
		},
	)

	GalleryPostsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fotos_gallery_posts_total",
			Help: "Number of photos associated with a Bluesky post",
		},
	)

	GalleryCachedStatsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fotos_gallery_cached_stats_total",
			Help: "Number of photos with a cached engagement row",
		},
	)
)

// Filesystem metrics
var (
	FilesystemOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fotos_filesystem_operation_duration_seconds",
			Help:    "Filesystem operation duration in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"volume", "operation"},
	)

	FilesystemOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fotos_filesystem_operation_errors_total",
			Help: "Filesystem operation errors",
		},
		[]string{"volume", "operation"},
	)

	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fotos_filesystem_retry_attempts_total",
			Help: "Retries performed after NFS stale file handle errors",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fotos_filesystem_retry_success_total",
			Help: "Operations that succeeded after at least one retry",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fotos_filesystem_retry_failures_total",
			Help: "Operations that failed after exhausting retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fotos_filesystem_stale_errors_total",
			Help: "NFS stale file handle errors observed",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fotos_filesystem_retry_duration_seconds",
			Help:    "Total time spent in retried filesystem operations",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2},
		},
		[]string{"operation", "volume"},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fotos_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
