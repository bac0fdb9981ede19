package metrics

// InitializeMetrics pre-populates the expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup.
func InitializeMetrics() {
	for _, source := range []string{"http", "file", "s3"} {
		LoaderDownloadsTotal.WithLabelValues(source, "success")
		LoaderDownloadsTotal.WithLabelValues(source, "error")
	}

	for _, endpoint := range []string{"getPosts", "getPostThread"} {
		BlueskyRequestsTotal.WithLabelValues(endpoint, "success")
		BlueskyRequestsTotal.WithLabelValues(endpoint, "error")
		BlueskyRequestDuration.WithLabelValues(endpoint)
	}

	for _, source := range []string{"cache", "api", "none", "error"} {
		StatsLookupsTotal.WithLabelValues(source)
	}

	for _, backend := range []string{"memory", "redis"} {
		ResponseCacheHits.WithLabelValues(backend)
		ResponseCacheMisses.WithLabelValues(backend)
	}

	volumes := []string{"files", "cache", "static", "unknown"}
	for _, vol := range volumes {
		for _, op := range []string{"stat", "open", "read", "write"} {
			FilesystemOperationDuration.WithLabelValues(vol, op)
			FilesystemOperationErrors.WithLabelValues(vol, op)
			FilesystemRetryAttempts.WithLabelValues(op, vol)
			FilesystemRetrySuccess.WithLabelValues(op, vol)
			FilesystemRetryFailures.WithLabelValues(op, vol)
			FilesystemStaleErrors.WithLabelValues(op, vol)
			FilesystemRetryDuration.WithLabelValues(op, vol)
		}
	}

	for _, op := range []string{"list_photos", "get_photo", "lookup_post_id", "get_cached_stats",
		"list_popular", "list_feed", "gallery_stats"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}
}
