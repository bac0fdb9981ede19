// Package metrics provides Prometheus instrumentation for the fotos service.
//
// All metrics are prefixed with "fotos_" and registered with the default
// registry through promauto. The groups are:
//
//   - HTTP: request counts, durations and in-flight requests
//   - Database: query counts and durations by operation, database size
//   - Loader: gallery database downloads, shared waits, readiness
//   - Bluesky: public API requests by endpoint
//   - Engagement: where stats answers came from, post id cache hits
//   - Response cache: hits and misses by backend (memory or redis)
//   - Filesystem: NFS retry behaviour, reported via [NewFilesystemObserver]
//
// A [Collector] periodically copies gallery counts from a [StatsProvider]
// into gauges:
//
//	collector := metrics.NewCollector(provider, time.Minute)
//	collector.Start()
//	defer collector.Stop()
//
// Stats answer sources:
//
//	sum(rate(fotos_stats_lookups_total[5m])) by (source)
package metrics
