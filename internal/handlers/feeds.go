package handlers

import (
	"net/http"

	"github.com/gorilla/feeds"

	"fotos/internal/feed"
	"fotos/internal/logging"
)

// GetRSS serves the RSS 2.0 feed of the latest photos.
func (h *Handlers) GetRSS(w http.ResponseWriter, r *http.Request) {
	h.serveFeed(w, r, "rss", "application/rss+xml; charset=utf-8", feed.RSS)
}

// GetAtom serves the same feed in Atom format.
func (h *Handlers) GetAtom(w http.ResponseWriter, r *http.Request) {
	h.serveFeed(w, r, "atom", "application/atom+xml; charset=utf-8", feed.Atom)
}

func (h *Handlers) serveFeed(w http.ResponseWriter, r *http.Request, format, contentType string, render func(*feeds.Feed) (string, error)) {
	db, ok := h.database(w, r)
	if !ok {
		return
	}

	body, err := cached(r.Context(), h, "feed:"+format, func() (string, error) {
		photos, err := db.ListForFeed(r.Context(), feed.MaxItems)
		if err != nil {
			return "", err
		}
		opts := h.feed
		opts.Now = h.now()
		return render(feed.Build(photos, opts))
	})
	if err != nil {
		logging.Error("Rendering %s feed failed: %v", format, err)
		http.Error(w, "Failed to render feed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=600")
	if _, err := w.Write([]byte(body)); err != nil {
		logging.Debug("Writing %s feed: %v", format, err)
	}
}
