package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/dustin/go-humanize/english"
	"github.com/urfave/cli"

	"fotos/internal/bluesky"
	"fotos/internal/engagement"
)

// testLimit is the number of posts --test refreshes.
const testLimit = 3

var errSyncFailures = errors.New("some posts could not be refreshed")

// SyncStatsCommand registers the sync-stats cli command.
var SyncStatsCommand = cli.Command{
	Name:   "sync-stats",
	Usage:  "Refreshes cached Bluesky likes, comments and reposts older than 12h",
	Flags:  syncStatsFlags,
	Action: syncStatsAction,
}

var syncStatsFlags = []cli.Flag{
	cli.BoolFlag{
		Name:  "test, t",
		Usage: fmt.Sprintf("only process the first %d posts", testLimit),
	},
	cli.DurationFlag{
		Name:  "delay",
		Value: engagement.DefaultSyncDelay,
		Usage: "pause between API requests",
	},
}

func syncStatsAction(c *cli.Context) error {
	start := time.Now()
	cfg := config(c)

	db, err := openDB(c, false)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	refresher := &engagement.Refresher{
		DB:     db,
		Client: bluesky.NewClient(cfg.BlueskyAPIURL, &http.Client{Timeout: 30 * time.Second}),
		Handle: cfg.BlueskyHandle,
		Delay:  c.Duration("delay"),
		Out:    c.App.Writer,
	}
	if c.Bool("test") {
		refresher.Limit = testLimit
		fmt.Fprintf(c.App.Writer, "Test mode: processing at most %d posts\n", testLimit)
	}

	report, err := refresher.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "\nDone in %s: %s updated, %s skipped, %s failed\n",
		time.Since(start).Round(time.Millisecond),
		english.Plural(report.Updated, "post", "posts"),
		english.Plural(report.Skipped, "post", "posts"),
		english.Plural(report.Failed, "post", "posts"))

	if !report.OK() {
		return errSyncFailures
	}
	return nil
}

// CacheStatsCommand registers the cache-stats cli command.
var CacheStatsCommand = cli.Command{
	Name:   "cache-stats",
	Usage:  "Shows engagement cache coverage and the most liked photos",
	Flags:  []cli.Flag{cli.IntFlag{Name: "top", Value: 5, Usage: "number of photos to list"}},
	Action: cacheStatsAction,
}

func cacheStatsAction(c *cli.Context) error {
	db, err := openDB(c, false)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	stats, err := db.GalleryStats(ctx)
	if err != nil {
		return err
	}

	w := c.App.Writer
	fmt.Fprintf(w, "Photos:            %d\n", stats.TotalPhotos)
	fmt.Fprintf(w, "Linked to a post:  %d (%s)\n", stats.TotalPosts, percent(stats.TotalPosts, stats.TotalPhotos))
	fmt.Fprintf(w, "With cached stats: %d (%s of posts)\n", stats.CachedStats, percent(stats.CachedStats, stats.TotalPosts))

	top, err := db.TopByLikes(ctx, c.Int("top"))
	if err != nil {
		return err
	}
	if len(top) == 0 {
		return nil
	}

	fmt.Fprintf(w, "\nMost liked:\n")
	for i, p := range top {
		fmt.Fprintf(w, "%3d. %-12s %s, %s, %s\n", i+1, p.Path,
			english.Plural(p.LikeCount, "like", "likes"),
			english.Plural(p.CommentCount, "comment", "comments"),
			english.Plural(p.RepostCount, "repost", "reposts"))
	}
	return nil
}

func percent(part, total int) string {
	if total == 0 {
		return "0%"
	}
	return fmt.Sprintf("%.1f%%", float64(part)*100/float64(total))
}
