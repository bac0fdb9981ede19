package engagement

import (
	"context"
	"fmt"
	"io"
	"time"

	"fotos/internal/bluesky"
	"fotos/internal/database"
	"fotos/internal/logging"
	"fotos/internal/metrics"
)

// DefaultSyncDelay is the pause between consecutive Bluesky requests
// during a refresh.
const DefaultSyncDelay = 500 * time.Millisecond

// SyncReport summarises one refresh run.
type SyncReport struct {
	Total   int
	Updated int
	Skipped int
	Failed  int
}

// OK reports whether every due post was refreshed.
func (r SyncReport) OK() bool {
	return r.Failed == 0
}

// Refresher rewrites bluesky_interactions_cache from live thread data.
// Posts refreshed within FreshnessWindow are skipped.
type Refresher struct {
	DB     *database.Database
	Client PostFetcher
	Handle string

	// Delay is slept between API requests, never after the last post.
	Delay time.Duration
	// Limit caps the number of posts processed; zero means all.
	Limit int
	// Now defaults to time.Now.
	Now func() time.Time
	// Out receives per-post progress lines; nil discards them.
	Out io.Writer
}

// Run refreshes every due post. The returned error covers database
// failures only; per-post API failures are counted in the report.
func (r *Refresher) Run(ctx context.Context) (SyncReport, error) {
	var report SyncReport

	now := r.Now
	if now == nil {
		now = time.Now
	}
	out := r.Out
	if out == nil {
		out = io.Discard
	}

	posts, err := r.DB.ListPostsForSync(ctx)
	if err != nil {
		return report, fmt.Errorf("listing posts: %w", err)
	}
	if r.Limit > 0 && len(posts) > r.Limit {
		posts = posts[:r.Limit]
	}
	report.Total = len(posts)

	logging.Info("Refreshing Bluesky stats for %d posts", report.Total)

	for i, post := range posts {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		fmt.Fprintf(out, "[%d/%d] %s (post %s)\n", i+1, report.Total, post.Path, shortID(post.PostID))

		if IsRecent(post.LastUpdated, now()) {
			report.Skipped++
			metrics.SyncPostsTotal.WithLabelValues("skipped").Inc()
			fmt.Fprintln(out, "  skipped: updated less than 12h ago")
			continue
		}

		counts, err := threadCounts(ctx, r.Client, r.Handle, post.PostID)
		if err != nil {
			report.Failed++
			metrics.SyncPostsTotal.WithLabelValues("failed").Inc()
			logging.Warn("Refreshing post %s of %s failed: %v", post.PostID, post.Path, err)
			fmt.Fprintf(out, "  error: %v\n", err)
		} else {
			err = r.DB.UpsertInteractionStats(ctx, database.StatsUpdate{
				ImageID:   post.ImageID,
				Likes:     counts.Likes,
				Comments:  counts.Comments,
				Reposts:   counts.Reposts,
				UpdatedAt: now(),
			})
			if err != nil {
				return report, fmt.Errorf("storing stats for %s: %w", post.Path, err)
			}
			report.Updated++
			metrics.SyncPostsTotal.WithLabelValues("updated").Inc()
			fmt.Fprintf(out, "  updated: %d likes, %d comments, %d reposts\n", counts.Likes, counts.Comments, counts.Reposts)
		}

		if i < len(posts)-1 && r.Delay > 0 {
			select {
			case <-ctx.Done():
				return report, ctx.Err()
			case <-time.After(r.Delay):
			}
		}
	}

	logging.Info("Bluesky refresh done: %d updated, %d skipped, %d failed", report.Updated, report.Skipped, report.Failed)
	return report, nil
}

// threadCounts reads all three counters from a single getPostThread call.
func threadCounts(ctx context.Context, client PostFetcher, handle, postID string) (Counts, error) {
	thread, err := client.GetThread(ctx, bluesky.PostURI(handle, postID), 1)
	if err != nil {
		return Counts{}, err
	}
	return Counts{
		Likes:    thread.Post.LikeCount,
		Comments: len(thread.Replies),
		Reposts:  thread.Post.RepostCount,
	}, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8] + "..."
	}
	return id
}
