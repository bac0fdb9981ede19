package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/singleflight"

	"fotos/internal/database"
	"fotos/internal/logging"
	"fotos/internal/metrics"
)

const flightKey = "gallery"

// Manager downloads the gallery database once and shares the open handle.
// Concurrent callers of Get while a load is running wait for that load
// instead of starting another one.
type Manager struct {
	source   Source
	cacheDir string

	group singleflight.Group

	mu      sync.RWMutex
	db      *database.Database
	file    string
	lastErr error
	loads   int
}

// New creates a Manager that fetches from source and stores the downloaded
// file in cacheDir.
func New(source Source, cacheDir string) *Manager {
	return &Manager{
		source:   source,
		cacheDir: cacheDir,
	}
}

// Get returns the loaded database, loading it first if needed. A failed load
// is reported to every caller that waited on it; the next call retries.
// Cancelling ctx abandons this caller's wait only.
func (m *Manager) Get(ctx context.Context) (*database.Database, error) {
	m.mu.RLock()
	db := m.db
	m.mu.RUnlock()
	if db != nil {
		return db, nil
	}

	ch := m.group.DoChan(flightKey, func() (interface{}, error) {
		return m.load(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		if res.Shared {
			metrics.LoaderSharedWaits.Inc()
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*database.Database), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Loaded reports whether the database is available without I/O.
func (m *Manager) Loaded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.db != nil
}

// LastError returns the error of the most recent failed load, or nil once a
// load succeeds.
func (m *Manager) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

// Loads returns how many fetches have been attempted.
func (m *Manager) Loads() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loads
}

// Source returns the configured source.
func (m *Manager) Source() Source {
	return m.source
}

// GalleryStats implements metrics.StatsProvider. It never triggers a load.
func (m *Manager) GalleryStats() (metrics.Stats, bool) {
	m.mu.RLock()
	db, file := m.db, m.file
	m.mu.RUnlock()
	if db == nil {
		return metrics.Stats{}, false
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stats, err := db.GalleryStats(ctx)
	if err != nil {
		logging.Warn("Failed to collect gallery stats: %v", err)
		return metrics.Stats{}, false
	}

	out := metrics.Stats{
		TotalPhotos: stats.TotalPhotos,
		TotalPosts:  stats.TotalPosts,
		CachedStats: stats.CachedStats,
	}
	if info, err := os.Stat(file); err == nil {
		out.DBSizeBytes = info.Size()
	}
	return out, true
}

// Close closes the database and removes the downloaded file.
func (m *Manager) Close() error {
	m.mu.Lock()
	db, file := m.db, m.file
	m.db, m.file = nil, ""
	m.mu.Unlock()

	metrics.LoaderReady.Set(0)
	if db == nil {
		return nil
	}

	err := db.Close()
	if file != "" {
		if rmErr := os.Remove(file); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			err = errors.Join(err, rmErr)
		}
	}
	return err
}

func (m *Manager) load(ctx context.Context) (*database.Database, error) {
	// A flight that finished between the fast path and DoChan already
	// stored the handle.
	m.mu.Lock()
	if m.db != nil {
		db := m.db
		m.mu.Unlock()
		return db, nil
	}
	m.loads++
	m.mu.Unlock()

	start := time.Now()
	db, file, err := m.fetchAndOpen(ctx)
	duration := time.Since(start)
	metrics.LoaderDownloadDuration.Observe(duration.Seconds())

	m.mu.Lock()
	defer m.mu.Unlock()

	if err != nil {
		metrics.LoaderDownloadsTotal.WithLabelValues(m.source.Kind(), "error").Inc()
		m.lastErr = err
		logging.Error("Failed to load gallery database from %s: %v", m.source, err)
		return nil, err
	}

	metrics.LoaderDownloadsTotal.WithLabelValues(m.source.Kind(), "success").Inc()
	metrics.LoaderReady.Set(1)
	m.db, m.file, m.lastErr = db, file, nil
	return db, nil
}

func (m *Manager) fetchAndOpen(ctx context.Context) (*database.Database, string, error) {
	logging.Info("Loading gallery database from %s", m.source)

	body, size, err := m.source.Fetch(ctx)
	if err != nil {
		var loadErr *LoadError
		if !errors.As(err, &loadErr) {
			err = &LoadError{Source: m.source.String(), Err: err}
		}
		return nil, "", err
	}
	defer body.Close()

	if err := os.MkdirAll(m.cacheDir, 0o755); err != nil {
		return nil, "", fmt.Errorf("create cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(m.cacheDir, "fotos-*.db")
	if err != nil {
		return nil, "", fmt.Errorf("create database file: %w", err)
	}
	path := tmp.Name()

	written, err := io.Copy(tmp, body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return nil, "", &LoadError{Source: m.source.String(), Err: err}
	}
	if size >= 0 && written != size {
		os.Remove(path)
		return nil, "", &LoadError{
			Source: m.source.String(),
			Err:    fmt.Errorf("short read: got %d of %d bytes", written, size),
		}
	}

	db, err := database.Open(ctx, path, database.Options{ReadOnly: true})
	if err != nil {
		os.Remove(path)
		return nil, "", err
	}

	// Opening is lazy; a query proves the file really is a gallery.
	stats, err := db.GalleryStats(ctx)
	if err != nil {
		db.Close()
		os.Remove(path)
		return nil, "", fmt.Errorf("invalid gallery database: %w", err)
	}

	logging.Info("Gallery database loaded: %s photos, %s posts (%s)",
		humanize.Comma(int64(stats.TotalPhotos)), humanize.Comma(int64(stats.TotalPosts)),
		humanize.Bytes(uint64(written)))
	return db, path, nil
}
