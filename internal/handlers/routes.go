package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterRoutes adds the health, API, feed and file routes to r. The
// static front end is registered by the caller after these.
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	// Health and version
	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet, http.MethodHead).Name("health")
	r.HandleFunc("/healthz", h.HealthCheck).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/livez", h.LivenessCheck).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/version", h.GetVersion).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/photos", h.ListPhotos).Methods(http.MethodGet)
	api.HandleFunc("/photos/{id}", h.GetPhoto).Methods(http.MethodGet)
	api.HandleFunc("/popular", h.GetPopular).Methods(http.MethodGet)

	api.HandleFunc("/stats", h.GetBatchStats).Methods(http.MethodPost)
	api.HandleFunc("/stats/{id}", h.GetStats).Methods(http.MethodGet)
	api.HandleFunc("/comments/{id}", h.GetComments).Methods(http.MethodGet)

	api.HandleFunc("/tags", h.GetTags).Methods(http.MethodGet)
	api.HandleFunc("/elements", h.GetElements).Methods(http.MethodGet)

	r.HandleFunc("/feed.xml", h.GetRSS).Methods(http.MethodGet)
	r.HandleFunc("/feed.atom", h.GetAtom).Methods(http.MethodGet)

	r.HandleFunc("/files/{path:.+}", h.ServeFile).Methods(http.MethodGet, http.MethodHead)
}
