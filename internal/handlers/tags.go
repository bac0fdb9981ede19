package handlers

import (
	"net/http"
	"os"
	"time"

	"fotos/internal/database"
	"fotos/internal/logging"
	"fotos/internal/tagindex"
)

// GetTags returns the hashtag index. The document written by the admin CLI
// is served when present; otherwise the index is built from the database.
func (h *Handlers) GetTags(w http.ResponseWriter, r *http.Request) {
	h.serveIndex(w, r, h.tagsFile, "tags", tagindex.BuildTags)
}

// GetElements returns the index of AI-detected elements.
func (h *Handlers) GetElements(w http.ResponseWriter, r *http.Request) {
	h.serveIndex(w, r, h.elementsFile, "elements", tagindex.BuildElements)
}

func (h *Handlers) serveIndex(w http.ResponseWriter, r *http.Request, file, name string, build func([]database.Photo, time.Time) tagindex.Index) {
	if file != "" {
		idx, err := tagindex.Load(file)
		if err == nil {
			writeJSONResponse(w, idx, "public, max-age=300")
			return
		}
		if !os.IsNotExist(err) {
			logging.Warn("Failed to read %s index %s: %v", name, file, err)
		}
	}

	db, ok := h.database(w, r)
	if !ok {
		return
	}

	idx, err := cached(r.Context(), h, "index:"+name, func() (tagindex.Index, error) {
		photos, err := db.ListPhotos(r.Context())
		if err != nil {
			return tagindex.Index{}, err
		}
		return build(photos, h.now()), nil
	})
	if err != nil {
		logging.Error("Building %s index failed: %v", name, err)
		writeJSONError(w, "Failed to build index", http.StatusInternalServerError)
		return
	}

	writeJSONResponse(w, idx, "public, max-age=300")
}
