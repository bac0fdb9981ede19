package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
)

// maxBatchPaths caps a batch stats request.
const maxBatchPaths = 100

// BatchStatsRequest asks for the stats of several photos at once.
type BatchStatsRequest struct {
	Paths []string `json:"paths"`
}

// GetStats returns the engagement of one photo. Failures degrade to an empty
// result, so this always answers 200.
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	stats := h.engagement.Stats(r.Context(), mux.Vars(r)["id"])
	writeJSONResponse(w, stats, "public, max-age=60")
}

// GetBatchStats returns engagement keyed by the requested paths.
func (h *Handlers) GetBatchStats(w http.ResponseWriter, r *http.Request) {
	var req BatchStatsRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	paths := make([]string, 0, len(req.Paths))
	for _, p := range req.Paths {
		if p != "" {
			paths = append(paths, p)
		}
	}
	if len(paths) == 0 {
		writeJSONError(w, "Paths array is required", http.StatusBadRequest)
		return
	}
	if len(paths) > maxBatchPaths {
		paths = paths[:maxBatchPaths]
	}

	writeJSONResponse(w, h.engagement.BatchStats(r.Context(), paths), "no-cache")
}

// GetComments returns the replies under a photo's Bluesky thread.
func (h *Handlers) GetComments(w http.ResponseWriter, r *http.Request) {
	thread := h.engagement.Comments(r.Context(), mux.Vars(r)["id"])
	writeJSONResponse(w, thread, "public, max-age=60")
}
