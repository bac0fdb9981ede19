package handlers

import (
	"net/http"

	"fotos/internal/gallery"
	"fotos/internal/logging"
)

// GetPopular ranks photos by cached engagement for the period and sort in
// the query string. Unknown values fall back to all time by engagement.
func (h *Handlers) GetPopular(w http.ResponseWriter, r *http.Request) {
	db, ok := h.database(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	period := gallery.ParsePeriod(q.Get("period"))
	by := gallery.ParseSort(q.Get("sort"))

	page, err := cached(r.Context(), h, "popular:"+string(period)+":"+string(by), func() (gallery.PopularPage, error) {
		now := h.now()
		photos, err := db.ListPopular(r.Context(), period.Cutoff(now))
		if err != nil {
			return gallery.PopularPage{}, err
		}
		return gallery.Popular(photos, period, by, now), nil
	})
	if err != nil {
		logging.Error("GetPopular failed: %v", err)
		writeJSONError(w, "Failed to rank photos", http.StatusInternalServerError)
		return
	}

	writeJSONResponse(w, page, "public, max-age=300")
}
