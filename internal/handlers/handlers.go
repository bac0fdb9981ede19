package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"fotos/internal/cache"
	"fotos/internal/database"
	"fotos/internal/engagement"
	"fotos/internal/feed"
	"fotos/internal/logging"
	"fotos/internal/metrics"
	"fotos/internal/startup"
)

// errGalleryUnavailable is reported to clients when the database could not
// be loaded.
const errGalleryUnavailable = "gallery failed to load"

// DatabaseProvider hands out the gallery database. loader.Manager is the
// production implementation.
type DatabaseProvider interface {
	Get(ctx context.Context) (*database.Database, error)
	Loaded() bool
	LastError() error
	GalleryStats() (metrics.Stats, bool)
}

// EngagementService reports Bluesky engagement for photos.
type EngagementService interface {
	Stats(ctx context.Context, ref string) engagement.Stats
	BatchStats(ctx context.Context, refs []string) map[string]engagement.Stats
	Comments(ctx context.Context, ref string) engagement.CommentThread
}

type Handlers struct {
	db           DatabaseProvider
	engagement   EngagementService
	cache        cache.Cache
	cacheTTL     time.Duration
	filesDir     string
	tagsFile     string
	elementsFile string
	feed         feed.Options
	started      time.Time
	now          func() time.Time
}

func New(db DatabaseProvider, eng EngagementService, respCache cache.Cache, config *startup.Config) *Handlers {
	return &Handlers{
		db:           db,
		engagement:   eng,
		cache:        respCache,
		cacheTTL:     config.ResponseCacheTTL,
		filesDir:     config.FilesDir,
		tagsFile:     config.TagsCacheFile,
		elementsFile: config.ElementsCacheFile,
		feed: feed.Options{
			SiteURL:     config.SiteURL,
			Title:       config.SiteTitle,
			Description: config.SiteDescription,
			OriginalURL: config.OriginalURL,
		},
		started: time.Now(),
		now:     time.Now,
	}
}

// database returns the loaded gallery, writing a 503 when the load failed.
func (h *Handlers) database(w http.ResponseWriter, r *http.Request) (*database.Database, bool) {
	db, err := h.db.Get(r.Context())
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, false
		}
		logging.Error("Gallery database unavailable: %v", err)
		writeJSONError(w, errGalleryUnavailable, http.StatusServiceUnavailable)
		return nil, false
	}
	return db, true
}

// cached returns the value stored under key, or builds and stores it. Cache
// failures are logged and fall through to build.
func cached[T any](ctx context.Context, h *Handlers, key string, build func() (T, error)) (T, error) {
	var v T
	if h.cache == nil || h.cacheTTL <= 0 {
		return build()
	}

	hit, err := h.cache.Get(ctx, key, &v)
	if err != nil {
		logging.Warn("Response cache read %s failed: %v", key, err)
	} else if hit {
		return v, nil
	}

	v, err = build()
	if err != nil {
		return v, err
	}
	if err := h.cache.Set(ctx, key, v, h.cacheTTL); err != nil {
		logging.Warn("Response cache write %s failed: %v", key, err)
	}
	return v, nil
}
