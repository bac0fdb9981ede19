package engagement

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"fotos/internal/bluesky"
	"fotos/internal/database"
	"fotos/internal/mediatypes"
)

const testHandle = "fotos.aldeapucela.org"

var testNow = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

// staticDB serves an already opened database.
type staticDB struct {
	db  *database.Database
	err error
}

func (s staticDB) Get(context.Context) (*database.Database, error) {
	return s.db, s.err
}

// fakeAPI is a Bluesky AppView that counts requests per endpoint.
type fakeAPI struct {
	getPosts   atomic.Int32
	getThread  atomic.Int32
	failThread bool
	server     *httptest.Server
}

const apiPosts = `{"posts": [{"uri": "at://did:plc:abc/app.bsky.feed.post/3kpost",
  "likeCount": 7, "replyCount": 5, "repostCount": 1}]}`

const apiThread = `{"thread": {
  "post": {"uri": "at://did:plc:abc/app.bsky.feed.post/3kpost", "likeCount": 7, "replyCount": 5, "repostCount": 1},
  "replies": [
    {"post": {"uri": "at://did:plc:b/app.bsky.feed.post/rb", "author": {"did": "did:plc:b", "handle": "b.bsky.social"},
              "record": {"text": "segunda", "createdAt": "2025-06-10T11:00:00Z"}, "indexedAt": "2025-06-10T11:00:00Z"}},
    {"post": {"uri": "at://did:plc:c/app.bsky.feed.post/rc", "author": {"did": "did:plc:c", "handle": "c.bsky.social"},
              "record": {"createdAt": "2025-06-10T11:30:00Z"}, "indexedAt": "2025-06-10T11:30:00Z"}},
    {"post": {"uri": "at://did:plc:a/app.bsky.feed.post/ra", "author": {"did": "did:plc:a", "handle": "a.bsky.social", "displayName": "Ana"},
              "record": {"text": "primera", "createdAt": "2025-06-10T09:00:00Z"}, "indexedAt": "2025-06-10T09:00:00Z", "likeCount": 2}}
  ]
}}`

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()

	api := &fakeAPI{}
	api.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "app.bsky.feed.getPosts"):
			api.getPosts.Add(1)
			w.Write([]byte(apiPosts))
		case strings.HasSuffix(r.URL.Path, "app.bsky.feed.getPostThread"):
			api.getThread.Add(1)
			if api.failThread {
				http.Error(w, `{"error":"InternalServerError"}`, http.StatusInternalServerError)
				return
			}
			w.Write([]byte(apiThread))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(api.server.Close)
	return api
}

func (a *fakeAPI) client() *bluesky.Client {
	return bluesky.NewClient(a.server.URL+"/xrpc", a.server.Client())
}

func (a *fakeAPI) calls() int {
	return int(a.getPosts.Load() + a.getThread.Load())
}

// setupGallery creates a database with:
//
//	1.jpg  linked to post "p1", stats refreshed 11h59m ago
//	2.jpg  linked to post "3kpost", stats refreshed 12h01m ago
//	3.JPG  linked to post "p3", no stats
//	4.jpg  no post
func setupGallery(t *testing.T) *database.Database {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, filepath.Join(t.TempDir(), "fotos.db"), database.Options{CreateSchema: true})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ids := map[string]int64{}
	for _, path := range []string{"1.jpg", "2.jpg", "3.JPG", "4.jpg"} {
		id, err := db.InsertPhoto(ctx, database.Photo{Path: path, Date: "2025-06-01 10:00:00"})
		if err != nil {
			t.Fatal(err)
		}
		ids[path] = id
	}

	links := map[string]string{"1.jpg": "p1", "2.jpg": "3kpost", "3.JPG": "p3"}
	for path, postID := range links {
		if err := db.LinkPost(ctx, ids[path], postID); err != nil {
			t.Fatal(err)
		}
	}

	updates := []database.StatsUpdate{
		{ImageID: ids["1.jpg"], Likes: 40, Comments: 4, Reposts: 2, UpdatedAt: testNow.Add(-(11*time.Hour + 59*time.Minute))},
		{ImageID: ids["2.jpg"], Likes: 1, Comments: 1, Reposts: 0, UpdatedAt: testNow.Add(-(12*time.Hour + time.Minute))},
	}
	for _, u := range updates {
		if err := db.UpsertInteractionStats(ctx, u); err != nil {
			t.Fatal(err)
		}
	}
	return db
}

func newTestService(t *testing.T, db *database.Database, api *fakeAPI) *Service {
	t.Helper()
	return NewService(staticDB{db: db}, api.client(), testHandle, WithClock(func() time.Time { return testNow }))
}

// =============================================================================
// Reference Tests
// =============================================================================

func TestCandidatePaths(t *testing.T) {
	tests := []struct {
		ref  string
		want []string
	}{
		{"123", []string{"123.jpg", "123.JPG", "123.jpeg", "123.png"}},
		{"/files/123", []string{"123.jpg", "123.JPG", "123.jpeg", "123.png"}},
		{"/files/123.png", []string{"123.png"}},
		{"123.jpg", []string{"123.jpg"}},
		{"", nil},
		{"/files/", nil},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			if got := CandidatePaths(tt.ref); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("CandidatePaths(%q) = %v, want %v", tt.ref, got, tt.want)
			}
		})
	}
}

func TestParseRef(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://fotos.aldeapucela.org/#123", "123"},
		{"https://fotos.aldeapucela.org/files/123.jpg", "123.jpg"},
		{"http://localhost:8080/files/9.png/", "9.png"},
		{"/files/123.jpg", "/files/123.jpg"},
		{"123", "123"},
	}

	for _, tt := range tests {
		if got := ParseRef(tt.in); got != tt.want {
			t.Errorf("ParseRef(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsRecent(t *testing.T) {
	tests := []struct {
		name        string
		lastUpdated string
		want        bool
	}{
		{"11h59m ago", testNow.Add(-(11*time.Hour + 59*time.Minute)).Format(database.SQLiteTimeLayout), true},
		{"12h01m ago", testNow.Add(-(12*time.Hour + time.Minute)).Format(database.SQLiteTimeLayout), false},
		{"exactly 12h ago", testNow.Add(-12 * time.Hour).Format(database.SQLiteTimeLayout), false},
		{"rfc3339", testNow.Add(-time.Hour).Format(time.RFC3339), true},
		{"iso without zone", testNow.Add(-time.Hour).Format("2006-01-02T15:04:05"), true},
		{"fractional seconds", "2025-06-10 11:00:00.123456", true},
		{"empty", "", false},
		{"garbage", "ayer por la tarde", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRecent(tt.lastUpdated, testNow); got != tt.want {
				t.Errorf("IsRecent(%q) = %v, want %v", tt.lastUpdated, got, tt.want)
			}
		})
	}
}

func TestTimeAgo(t *testing.T) {
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{-time.Minute, "0 s"},
		{30 * time.Second, "30 s"},
		{24 * time.Minute, "24 min."},
		{3 * time.Hour, "3 h"},
		{5 * 24 * time.Hour, "5 d"},
		{35 * 24 * time.Hour, "1 mes"},
		{95 * 24 * time.Hour, "3 meses"},
		{400 * 24 * time.Hour, "1 año"},
		{800 * 24 * time.Hour, "2 años"},
	}

	for _, tt := range tests {
		if got := TimeAgo(testNow.Add(-tt.ago), testNow); got != tt.want {
			t.Errorf("TimeAgo(-%v) = %q, want %q", tt.ago, got, tt.want)
		}
	}
}

// =============================================================================
// Post Id Resolution Tests
// =============================================================================

func TestResolvePostID(t *testing.T) {
	svc := newTestService(t, setupGallery(t), newFakeAPI(t))
	ctx := context.Background()

	tests := []struct {
		ref       string
		wantID    string
		wantFound bool
	}{
		{"1", "p1", true},
		{"/files/1.jpg", "p1", true},
		{"3", "p3", true},
		{"4", "", false},
		{"99", "", false},
	}

	for _, tt := range tests {
		id, found, err := svc.ResolvePostID(ctx, tt.ref)
		if err != nil {
			t.Fatalf("ResolvePostID(%q) error = %v", tt.ref, err)
		}
		if id != tt.wantID || found != tt.wantFound {
			t.Errorf("ResolvePostID(%q) = (%q, %v), want (%q, %v)", tt.ref, id, found, tt.wantID, tt.wantFound)
		}
	}
}

func TestResolvePostID_StopsAtFirstMatch(t *testing.T) {
	svc := newTestService(t, setupGallery(t), newFakeAPI(t))

	// 3.JPG is the second candidate.
	if _, _, err := svc.ResolvePostID(context.Background(), "3"); err != nil {
		t.Fatal(err)
	}
	if got := svc.dbLookups.Load(); got != 2 {
		t.Errorf("lookups = %d, want 2", got)
	}
}

func TestResolvePostID_MissIsCached(t *testing.T) {
	svc := newTestService(t, setupGallery(t), newFakeAPI(t))
	ctx := context.Background()

	if _, found, _ := svc.ResolvePostID(ctx, "/files/99"); found {
		t.Fatal("expected no post for 99")
	}
	first := svc.dbLookups.Load()
	if first != int64(len(mediatypes.CandidateExtensions)) {
		t.Errorf("first resolution lookups = %d, want %d", first, len(mediatypes.CandidateExtensions))
	}

	// Both the raw and the cleaned key are cached.
	for _, ref := range []string{"/files/99", "99"} {
		id, found, err := svc.ResolvePostID(ctx, ref)
		if err != nil || found || id != "" {
			t.Errorf("ResolvePostID(%q) = (%q, %v, %v), want cached miss", ref, id, found, err)
		}
	}
	if got := svc.dbLookups.Load(); got != first {
		t.Errorf("cached resolution performed %d extra lookups", got-first)
	}
}

func TestResolvePostID_DatabaseUnavailable(t *testing.T) {
	wantErr := errors.New("download failed")
	svc := NewService(staticDB{err: wantErr}, newFakeAPI(t).client(), testHandle)

	if _, _, err := svc.ResolvePostID(context.Background(), "1"); !errors.Is(err, wantErr) {
		t.Errorf("error = %v, want %v", err, wantErr)
	}
}

// =============================================================================
// Stats Tests
// =============================================================================

func TestStats_RecentCacheSkipsAPI(t *testing.T) {
	api := newFakeAPI(t)
	svc := newTestService(t, setupGallery(t), api)

	got := svc.Stats(context.Background(), "1")

	want := Stats{
		Found:        true,
		LikeCount:    40,
		CommentCount: 4,
		RepostCount:  2,
		ThreadURL:    "https://bsky.app/profile/fotos.aldeapucela.org/post/p1",
		FromCache:    true,
	}
	if got != want {
		t.Errorf("Stats() = %+v, want %+v", got, want)
	}
	if api.calls() != 0 {
		t.Errorf("API calls = %d, want 0", api.calls())
	}
}

func TestStats_StaleCacheRefetches(t *testing.T) {
	api := newFakeAPI(t)
	svc := newTestService(t, setupGallery(t), api)

	got := svc.Stats(context.Background(), "https://fotos.aldeapucela.org/#2")

	// Comment count comes from the three replies returned, not replyCount.
	want := Stats{
		Found:        true,
		LikeCount:    7,
		CommentCount: 3,
		RepostCount:  1,
		ThreadURL:    "https://bsky.app/profile/fotos.aldeapucela.org/post/3kpost",
	}
	if got != want {
		t.Errorf("Stats() = %+v, want %+v", got, want)
	}
	if api.getPosts.Load() != 1 || api.getThread.Load() != 1 {
		t.Errorf("API calls = getPosts %d, getPostThread %d; want 1 and 1", api.getPosts.Load(), api.getThread.Load())
	}
}

func TestStats_MissingCacheRefetches(t *testing.T) {
	api := newFakeAPI(t)
	svc := newTestService(t, setupGallery(t), api)

	got := svc.Stats(context.Background(), "3")
	if !got.Found || got.FromCache || got.LikeCount != 7 {
		t.Errorf("Stats() = %+v, want live counts", got)
	}
	if got.ThreadURL != "https://bsky.app/profile/fotos.aldeapucela.org/post/p3" {
		t.Errorf("ThreadURL = %q", got.ThreadURL)
	}
	if api.calls() != 2 {
		t.Errorf("API calls = %d, want 2", api.calls())
	}
}

func TestStats_NoAssociation(t *testing.T) {
	api := newFakeAPI(t)
	svc := newTestService(t, setupGallery(t), api)

	for _, ref := range []string{"4", "99"} {
		if got := svc.Stats(context.Background(), ref); got != (Stats{}) {
			t.Errorf("Stats(%q) = %+v, want zero value", ref, got)
		}
	}
	if api.calls() != 0 {
		t.Errorf("API calls = %d, want 0", api.calls())
	}
}

func TestStats_APIFailureDegrades(t *testing.T) {
	api := newFakeAPI(t)
	api.failThread = true
	svc := newTestService(t, setupGallery(t), api)

	if got := svc.Stats(context.Background(), "2"); got != (Stats{}) {
		t.Errorf("Stats() = %+v, want zero value", got)
	}
}

func TestStats_DatabaseUnavailable(t *testing.T) {
	svc := NewService(staticDB{err: errors.New("boom")}, newFakeAPI(t).client(), testHandle)

	if got := svc.Stats(context.Background(), "1"); got != (Stats{}) {
		t.Errorf("Stats() = %+v, want zero value", got)
	}
}

func TestStatsFromCache(t *testing.T) {
	svc := newTestService(t, setupGallery(t), newFakeAPI(t))
	ctx := context.Background()

	stats, err := svc.StatsFromCache(ctx, "/files/1")
	if err != nil {
		t.Fatal(err)
	}
	if stats == nil || stats.PostID != "p1" || stats.LikeCount != 40 {
		t.Errorf("StatsFromCache() = %+v", stats)
	}

	stats, err = svc.StatsFromCache(ctx, "3")
	if err != nil || stats != nil {
		t.Errorf("StatsFromCache(3) = %+v, %v; want nil, nil", stats, err)
	}
}

func TestBatchStats(t *testing.T) {
	api := newFakeAPI(t)
	svc := newTestService(t, setupGallery(t), api)

	refs := []string{"1", "2", "4"}
	got := svc.BatchStats(context.Background(), refs)

	if len(got) != len(refs) {
		t.Fatalf("len = %d, want %d", len(got), len(refs))
	}
	if !got["1"].FromCache || got["1"].LikeCount != 40 {
		t.Errorf("1 = %+v", got["1"])
	}
	if got["2"].FromCache || got["2"].LikeCount != 7 {
		t.Errorf("2 = %+v", got["2"])
	}
	if got["4"].Found {
		t.Errorf("4 = %+v", got["4"])
	}
}

// =============================================================================
// Comments Tests
// =============================================================================

func TestComments(t *testing.T) {
	svc := newTestService(t, setupGallery(t), newFakeAPI(t))

	thread := svc.Comments(context.Background(), "2")
	if !thread.Found || thread.Unavailable {
		t.Fatalf("Comments() = %+v", thread)
	}
	if thread.CommentCount != 3 || thread.LikeCount != 7 {
		t.Errorf("counts = %d comments, %d likes", thread.CommentCount, thread.LikeCount)
	}

	// The reply without text is skipped and the rest are oldest first.
	if len(thread.Comments) != 2 {
		t.Fatalf("len(Comments) = %d, want 2", len(thread.Comments))
	}
	first := thread.Comments[0]
	if first.Text != "primera" || first.AuthorName != "Ana" {
		t.Errorf("first comment = %+v", first)
	}
	if first.TimeAgo != "3 h" {
		t.Errorf("TimeAgo = %q, want %q", first.TimeAgo, "3 h")
	}
	if first.URL != "https://bsky.app/profile/did:plc:a/post/ra" {
		t.Errorf("URL = %q", first.URL)
	}
	if thread.Comments[1].AuthorName != "b.bsky.social" {
		t.Errorf("second author = %q", thread.Comments[1].AuthorName)
	}
}

func TestComments_NoThread(t *testing.T) {
	api := newFakeAPI(t)
	svc := newTestService(t, setupGallery(t), api)

	thread := svc.Comments(context.Background(), "4")
	if thread.Found || thread.Unavailable || thread.ThreadURL != "" {
		t.Errorf("Comments() = %+v", thread)
	}
	if thread.Comments == nil {
		t.Error("Comments should be an empty slice, not nil")
	}
	if api.calls() != 0 {
		t.Errorf("API calls = %d, want 0", api.calls())
	}
}

func TestComments_Unavailable(t *testing.T) {
	api := newFakeAPI(t)
	api.failThread = true
	svc := newTestService(t, setupGallery(t), api)

	thread := svc.Comments(context.Background(), "2")
	if !thread.Found || !thread.Unavailable {
		t.Errorf("Comments() = %+v, want found but unavailable", thread)
	}
	if thread.ThreadURL == "" {
		t.Error("ThreadURL should be kept when the thread cannot be fetched")
	}
}

// =============================================================================
// Refresher Tests
// =============================================================================

func TestRefresher_Run(t *testing.T) {
	api := newFakeAPI(t)
	db := setupGallery(t)
	var out bytes.Buffer

	r := &Refresher{
		DB:     db,
		Client: api.client(),
		Handle: testHandle,
		Now:    func() time.Time { return testNow },
		Out:    &out,
	}

	report, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// 1.jpg is fresh; 2.jpg is stale and 3.JPG has no stats row.
	want := SyncReport{Total: 3, Updated: 2, Skipped: 1}
	if report != want {
		t.Errorf("report = %+v, want %+v", report, want)
	}
	if !report.OK() {
		t.Error("OK() = false")
	}
	if api.getPosts.Load() != 0 || api.getThread.Load() != 2 {
		t.Errorf("API calls = getPosts %d, getPostThread %d", api.getPosts.Load(), api.getThread.Load())
	}

	stats, err := db.GetCachedStats(context.Background(), "3.JPG")
	if err != nil {
		t.Fatal(err)
	}
	if stats.LikeCount != 7 || stats.CommentCount != 3 || stats.RepostCount != 1 {
		t.Errorf("stored stats = %+v", stats)
	}
	if !IsRecent(stats.LastUpdated, testNow) {
		t.Errorf("LastUpdated %q should be recent", stats.LastUpdated)
	}
	if !strings.Contains(out.String(), "[2/3] 2.jpg") {
		t.Errorf("progress output missing:\n%s", out.String())
	}
}

func TestRefresher_LimitAndFailures(t *testing.T) {
	api := newFakeAPI(t)
	api.failThread = true

	r := &Refresher{
		DB:     setupGallery(t),
		Client: api.client(),
		Handle: testHandle,
		Limit:  2,
		Now:    func() time.Time { return testNow },
	}

	report, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	want := SyncReport{Total: 2, Skipped: 1, Failed: 1}
	if report != want {
		t.Errorf("report = %+v, want %+v", report, want)
	}
	if report.OK() {
		t.Error("OK() = true with failures")
	}
}
