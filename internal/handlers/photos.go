package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"fotos/internal/database"
	"fotos/internal/engagement"
	"fotos/internal/gallery"
	"fotos/internal/logging"
)

// PhotosResponse is the filtered gallery, grouped by week.
type PhotosResponse struct {
	// Query is the canonical query string of the applied filter.
	Query string              `json:"query,omitempty"`
	Total int                 `json:"total"`
	Weeks []gallery.WeekGroup `json:"weeks"`
}

// PhotoResponse is a single photo with its gallery id and week.
type PhotoResponse struct {
	database.Photo
	PhotoID string       `json:"photoId"`
	FileURL string       `json:"fileUrl"`
	Week    gallery.Week `json:"week"`
}

// ListPhotos returns every photo matching the tag, element, search and week
// filters in the query string.
func (h *Handlers) ListPhotos(w http.ResponseWriter, r *http.Request) {
	db, ok := h.database(w, r)
	if !ok {
		return
	}

	filter := gallery.ParseFilter(r.URL.Query())
	resp, err := cached(r.Context(), h, "photos?"+filter.Query(), func() (PhotosResponse, error) {
		photos, err := db.ListPhotos(r.Context())
		if err != nil {
			return PhotosResponse{}, err
		}
		matched := filter.Apply(photos)
		weeks := gallery.GroupByWeek(matched)
		if weeks == nil {
			weeks = []gallery.WeekGroup{}
		}
		return PhotosResponse{Query: filter.Query(), Total: len(matched), Weeks: weeks}, nil
	})
	if err != nil {
		logging.Error("ListPhotos failed: %v", err)
		writeJSONError(w, "Failed to list photos", http.StatusInternalServerError)
		return
	}

	writeJSONResponse(w, resp, "public, max-age=60")
}

// GetPhoto returns one photo by gallery id ("123") or stored path
// ("123.jpg"). Photos flagged by moderation have their description
// replaced.
func (h *Handlers) GetPhoto(w http.ResponseWriter, r *http.Request) {
	db, ok := h.database(w, r)
	if !ok {
		return
	}

	ref := engagement.ParseRef(mux.Vars(r)["id"])
	for _, path := range engagement.CandidatePaths(ref) {
		photo, err := db.GetPhotoByPath(r.Context(), path)
		if errors.Is(err, database.ErrNotFound) {
			continue
		}
		if err != nil {
			logging.Error("GetPhoto %s failed: %v", path, err)
			writeJSONError(w, "Failed to get photo", http.StatusInternalServerError)
			return
		}

		p := gallery.Moderate(*photo)
		writeJSONResponse(w, PhotoResponse{
			Photo:   p,
			PhotoID: gallery.PhotoID(p.Path),
			FileURL: "/files/" + p.Path,
			Week:    gallery.WeekOf(p.Date),
		}, "public, max-age=300")
		return
	}

	writeJSONError(w, "Photo not found", http.StatusNotFound)
}
