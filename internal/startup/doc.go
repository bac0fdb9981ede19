// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// Configuration is read from environment variables, after loading an
// optional .env file from the working directory. The following variables
// are supported:
//
//   - PORT: HTTP server port (default: 8080)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable or disable the metrics server (default: true)
//   - DATABASE_URL: Where fotos.db is downloaded from; http(s)://, s3://,
//     file:// or a local path (default: ./fotos.db)
//   - DATABASE_PRELOAD: Download the database at startup instead of on the
//     first request (default: false)
//   - CACHE_DIR: Directory holding the downloaded database (default: ./cache)
//   - FILES_DIR: Directory of photo files served under /files/ (default: ./files)
//   - STATIC_DIR: Front-end assets (default: ./web)
//   - TAGS_CACHE_FILE, ELEMENTS_CACHE_FILE: Tag index documents
//   - BLUESKY_API_URL: Public AppView base URL
//   - BLUESKY_HANDLE: Account that posts the photo threads
//   - SITE_URL, SITE_TITLE, SITE_DESCRIPTION, ORIGINAL_URL: Feed metadata
//   - REDIS_URL: Shared response cache; in-memory when unset
//   - RESPONSE_CACHE_TTL: Lifetime of cached responses (default: 5m)
//   - S3_REGION, S3_ENDPOINT, S3_ACCESS_KEY_ID, S3_SECRET_ACCESS_KEY:
//     Used when DATABASE_URL is an s3:// URL
//   - LOG_LEVEL: Logging level - debug, info, warn, error (default: info)
//   - LOG_STATIC_FILES: Log static file requests (default: false)
//   - LOG_HEALTH_CHECKS: Log health check requests (default: true)
//   - FOTOS_WORKERS: Override the worker pool size
//
// # Directory Setup
//
// The cache directory must be writable since the database is stored there.
// Missing files or static directories only produce warnings.
package startup
