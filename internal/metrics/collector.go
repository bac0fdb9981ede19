package metrics

import (
	"time"

	"fotos/internal/logging"
)

// StatsProvider supplies gallery counts. ok is false while the database is
// not loaded yet, in which case the gauges are left untouched.
type StatsProvider interface {
	GalleryStats() (stats Stats, ok bool)
}

// Stats holds the current gallery counts
type Stats struct {
	TotalPhotos int
	TotalPosts  int
	CachedStats int
	DBSizeBytes int64
}

// Collector periodically collects and updates metrics
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection
func (c *Collector) Stop() {
	close(c.stopChan)
}

func (c *Collector) collectLoop() {
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.statsProvider == nil {
		return
	}

	stats, ok := c.statsProvider.GalleryStats()
	if !ok {
		return
	}

	GalleryPhotosTotal.Set(float64(stats.TotalPhotos))
	GalleryPostsTotal.Set(float64(stats.TotalPosts))
	GalleryCachedStatsTotal.Set(float64(stats.CachedStats))
	if stats.DBSizeBytes > 0 {
		DBSizeBytes.Set(float64(stats.DBSizeBytes))
	}

	logging.Debug("Metrics collected: photos=%d, posts=%d, cached_stats=%d",
		stats.TotalPhotos, stats.TotalPosts, stats.CachedStats)
}
