// Package main provides the entry point for the fotos gallery server.
//
// fotos serves a community photo gallery whose catalogue lives in a single
// SQLite file, fotos.db, published by a separate process. The server keeps
// no state of its own: it downloads the database on first use and layers
// Bluesky engagement on top of it.
//
// # Application Lifecycle
//
//  1. Memory Configuration: Sets GOMEMLIMIT from MEMORY_LIMIT
//  2. Configuration Loading: Reads .env and environment variables and
//     validates directories
//  3. Database Loader: Resolves DATABASE_URL to an HTTP, S3 or file source.
//     The first request (or DATABASE_PRELOAD) downloads the file; concurrent
//     requests share one download
//  4. Component Initialization:
//     - Response cache: Redis when REDIS_URL is reachable, memory otherwise
//     - Bluesky client and engagement service
//     - Metrics collector
//  5. HTTP Server Setup: Routes, middleware and the static front end
//  6. Graceful Shutdown: Handles SIGINT/SIGTERM
//
// # HTTP Server
//
// The application runs two HTTP servers:
//
//  1. Main Server (default port 8080):
//     - Gallery API: photos, popular, stats, comments, tags, elements
//     - RSS and Atom feeds
//     - Photo files and the static front end
//     - Health, readiness and version endpoints
//
//  2. Metrics Server (default port 9090, optional):
//     - Prometheus metrics endpoint (/metrics)
//     - Health check endpoint (/health)
//
// # Graceful Shutdown
//
//  1. Stop metrics collector
//  2. Shutdown metrics server (if running)
//  3. Shutdown main HTTP server (30s timeout)
//  4. Close the response cache
//  5. Close the database and remove the downloaded copy
//
// # Build Requirements
//
// CGO is required for SQLite (mattn/go-sqlite3):
//
//	go build -o fotos ./cmd/fotos
//
// See [fotos/internal/startup] for the full list of environment variables.
package main
