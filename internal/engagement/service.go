package engagement

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"

	"fotos/internal/bluesky"
	"fotos/internal/database"
	"fotos/internal/logging"
	"fotos/internal/metrics"
	"fotos/internal/workers"
)

// DBProvider hands out the gallery database, loading it on first use.
type DBProvider interface {
	Get(ctx context.Context) (*database.Database, error)
}

// PostFetcher is the part of the Bluesky client the service uses.
type PostFetcher interface {
	GetPost(ctx context.Context, uri string) (*bluesky.PostView, error)
	GetThread(ctx context.Context, uri string, depth int) (*bluesky.ThreadView, error)
}

// Stats is the engagement summary of one photo. Found is false when the
// photo has no Bluesky post or the lookup failed; counts are then zero and
// ThreadURL is empty.
type Stats struct {
	Found        bool   `json:"found"`
	LikeCount    int    `json:"likeCount"`
	CommentCount int    `json:"commentCount"`
	RepostCount  int    `json:"repostCount"`
	ThreadURL    string `json:"threadUrl,omitempty"`
	FromCache    bool   `json:"fromCache"`
}

// postIDEntry records a resolved post id or a confirmed absence.
type postIDEntry struct {
	id    string
	found bool
}

// Service resolves photos to Bluesky posts and reports their engagement.
// It is safe for concurrent use.
type Service struct {
	db     DBProvider
	client PostFetcher
	handle string
	now    func() time.Time

	// postIDs maps references (raw and cleaned) to postIDEntry for the
	// lifetime of the service.
	postIDs *cache.Cache

	// dbLookups counts post id queries against the database.
	dbLookups atomic.Int64
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source used for freshness checks.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a Service. handle is the account that posts the
// photo threads.
func NewService(db DBProvider, client PostFetcher, handle string, opts ...Option) *Service {
	s := &Service{
		db:      db,
		client:  client,
		handle:  handle,
		now:     time.Now,
		postIDs: cache.New(cache.NoExpiration, 0),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handle returns the account that owns the photo threads.
func (s *Service) Handle() string {
	return s.handle
}

// ResolvePostID returns the Bluesky post id of the photo ref refers to.
// found is false, with a nil error, when the photo has no post. Results,
// including misses, are cached under both ref and its cleaned form.
func (s *Service) ResolvePostID(ctx context.Context, ref string) (postID string, found bool, err error) {
	db, err := s.db.Get(ctx)
	if err != nil {
		return "", false, err
	}
	return s.resolvePostID(ctx, db, ref)
}

func (s *Service) resolvePostID(ctx context.Context, db *database.Database, ref string) (string, bool, error) {
	if v, ok := s.postIDs.Get(ref); ok {
		metrics.PostIDCacheHits.Inc()
		entry := v.(postIDEntry)
		return entry.id, entry.found, nil
	}
	metrics.PostIDCacheMisses.Inc()

	for _, candidate := range CandidatePaths(ref) {
		s.dbLookups.Add(1)
		postID, err := db.LookupPostID(ctx, candidate)
		if errors.Is(err, database.ErrNotFound) {
			continue
		}
		if err != nil {
			// Not cached, so a later call can retry.
			return "", false, err
		}

		entry := postIDEntry{id: postID, found: true}
		s.postIDs.SetDefault(ref, entry)
		s.postIDs.SetDefault(cleanRef(ref), entry)
		return postID, true, nil
	}

	s.postIDs.SetDefault(ref, postIDEntry{})
	s.postIDs.SetDefault(cleanRef(ref), postIDEntry{})
	return "", false, nil
}

// StatsFromCache returns the first cached stats row among the candidate
// paths of ref, or nil when none has one.
func (s *Service) StatsFromCache(ctx context.Context, ref string) (*database.CachedStats, error) {
	db, err := s.db.Get(ctx)
	if err != nil {
		return nil, err
	}
	return statsFromCache(ctx, db, ref)
}

func statsFromCache(ctx context.Context, db *database.Database, ref string) (*database.CachedStats, error) {
	for _, candidate := range CandidatePaths(ref) {
		stats, err := db.GetCachedStats(ctx, candidate)
		if errors.Is(err, database.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return stats, nil
	}
	return nil, nil
}

// Stats returns engagement for the photo ref refers to. Recent cached
// stats are used as is; otherwise the counts are fetched live. It never
// fails: errors are logged and reported as an empty Stats.
func (s *Service) Stats(ctx context.Context, ref string) Stats {
	ref = ParseRef(ref)

	db, err := s.db.Get(ctx)
	if err != nil {
		logging.Warn("Stats for %s unavailable: %v", ref, err)
		metrics.StatsLookupsTotal.WithLabelValues("error").Inc()
		return Stats{}
	}

	cached, err := statsFromCache(ctx, db, ref)
	if err != nil {
		logging.Warn("Reading cached stats for %s failed: %v", ref, err)
		cached = nil
	}

	if cached != nil && IsRecent(cached.LastUpdated, s.now()) {
		logging.Debug("Using cached stats for %s: %d likes", ref, cached.LikeCount)
		metrics.StatsLookupsTotal.WithLabelValues("cache").Inc()
		stats := Stats{
			Found:        true,
			LikeCount:    cached.LikeCount,
			CommentCount: cached.CommentCount,
			RepostCount:  cached.RepostCount,
			FromCache:    true,
		}
		if cached.PostID != "" {
			stats.ThreadURL = bluesky.ThreadURL(s.handle, cached.PostID)
		}
		return stats
	}

	var postID string
	if cached != nil && cached.PostID != "" {
		postID = cached.PostID
	} else {
		id, found, err := s.resolvePostID(ctx, db, ref)
		if err != nil {
			logging.Warn("Resolving post for %s failed: %v", ref, err)
			metrics.StatsLookupsTotal.WithLabelValues("error").Inc()
			return Stats{}
		}
		if !found {
			metrics.StatsLookupsTotal.WithLabelValues("none").Inc()
			return Stats{}
		}
		postID = id
	}

	counts, err := FetchCounts(ctx, s.client, s.handle, postID)
	if err != nil {
		logging.Warn("Fetching Bluesky stats for %s (post %s) failed: %v", ref, postID, err)
		metrics.StatsLookupsTotal.WithLabelValues("error").Inc()
		return Stats{}
	}

	metrics.StatsLookupsTotal.WithLabelValues("api").Inc()
	return Stats{
		Found:        true,
		LikeCount:    counts.Likes,
		CommentCount: counts.Comments,
		RepostCount:  counts.Reposts,
		ThreadURL:    bluesky.ThreadURL(s.handle, postID),
	}
}

// BatchStats looks up stats for several photos concurrently. The result is
// keyed by the references as given.
func (s *Service) BatchStats(ctx context.Context, refs []string) map[string]Stats {
	results := make([]Stats, len(refs))
	err := workers.ForEach(ctx, workers.ForIO(8), len(refs), func(ctx context.Context, i int) error {
		results[i] = s.Stats(ctx, refs[i])
		return nil
	})
	if err != nil {
		logging.Debug("Batch stats interrupted: %v", err)
	}

	out := make(map[string]Stats, len(refs))
	for i, ref := range refs {
		out[ref] = results[i]
	}
	return out
}

// Counts are live engagement numbers for one post.
type Counts struct {
	Likes    int
	Comments int
	Reposts  int
}

// FetchCounts reads a post's counters, then its direct replies. The
// comment count is the number of replies returned, or the post's
// replyCount when the thread carries no replies collection.
func FetchCounts(ctx context.Context, client PostFetcher, handle, postID string) (Counts, error) {
	uri := bluesky.PostURI(handle, postID)

	post, err := client.GetPost(ctx, uri)
	if err != nil {
		return Counts{}, err
	}

	thread, err := client.GetThread(ctx, uri, 1)
	if err != nil {
		return Counts{}, err
	}

	counts := Counts{
		Likes:    post.LikeCount,
		Comments: post.ReplyCount,
		Reposts:  post.RepostCount,
	}
	if thread.HasReplies {
		counts.Comments = len(thread.Replies)
	}
	return counts, nil
}
