package handlers

import (
	"net/http"
	"runtime"
	"time"

	"fotos/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusStarting = "starting"
	statusDegraded = "degraded"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status         string `json:"status"`
	Ready          bool   `json:"ready"`
	Version        string `json:"version"`
	Uptime         string `json:"uptime"`
	DatabaseLoaded bool   `json:"databaseLoaded"`
	LoadError      string `json:"loadError,omitempty"`
	CacheBackend   string `json:"cacheBackend,omitempty"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`

	// Gallery summary, once the database is loaded
	TotalPhotos int   `json:"totalPhotos,omitempty"`
	TotalPosts  int   `json:"totalPosts,omitempty"`
	CachedStats int   `json:"cachedStats,omitempty"`
	DBSizeBytes int64 `json:"dbSizeBytes,omitempty"`
}

// HealthCheck returns the health status of the service. It never triggers
// a database load. The database is loaded lazily, so a service that has not
// loaded it yet is reported as starting with a 200; only a failed load
// answers 503.
func (h *Handlers) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	response := HealthResponse{
		Ready:          h.db.Loaded(),
		Version:        startup.Version,
		Uptime:         time.Since(h.started).Round(time.Second).String(),
		DatabaseLoaded: h.db.Loaded(),
		GoVersion:      runtime.Version(),
		NumCPU:         runtime.NumCPU(),
		NumGoroutine:   runtime.NumGoroutine(),
	}
	if h.cache != nil {
		response.CacheBackend = h.cache.Backend()
	}

	status := http.StatusOK
	switch {
	case response.DatabaseLoaded:
		response.Status = statusHealthy
	case h.db.LastError() != nil:
		response.Status = statusDegraded
		response.LoadError = h.db.LastError().Error()
		status = http.StatusServiceUnavailable
	default:
		response.Status = statusStarting
	}

	if stats, ok := h.db.GalleryStats(); ok {
		response.TotalPhotos = stats.TotalPhotos
		response.TotalPosts = stats.TotalPosts
		response.CachedStats = stats.CachedStats
		response.DBSizeBytes = stats.DBSizeBytes
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(status)
	writeJSON(w, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{
			"status": "alive",
		})
	}
}

// ReadinessCheck returns 200 once the gallery database is loaded. A probe
// against a service that has not loaded it yet starts the load and waits.
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if _, err := h.db.Get(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		writeJSON(w, map[string]string{
			"status": "not_ready",
			"error":  errGalleryUnavailable,
		})
		return
	}

	w.WriteHeader(http.StatusOK)
	writeJSON(w, map[string]string{
		"status": "ready",
	})
}
