package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"fotos/internal/cache"
	"fotos/internal/database"
	"fotos/internal/engagement"
	"fotos/internal/gallery"
	"fotos/internal/loader"
	"fotos/internal/startup"
	"fotos/internal/tagindex"
)

var testNow = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

// seedGallery writes a gallery database with three photos:
//
//	1.jpg  week of 2025-06-09, appropriate, 5 likes 1 comment
//	2.jpg  week of 2025-06-02, flagged, 50 likes
//	3.png  week of 2025-05-19, not analysed, 2 likes
func seedGallery(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "fotos.db")
	db, err := database.Open(ctx, path, database.Options{CreateSchema: true})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()

	yes, no := true, false
	photos := []struct {
		photo       database.Photo
		appropriate *bool
		aiDesc      string
		aiTags      []string
		postID      string
		likes       int
		comments    int
	}{
		{database.Photo{Path: "1.jpg", Date: "2025-06-09 10:00:00", Author: "Ana", Description: "Atardecer en el #PisuergA"},
			&yes, "Un río al atardecer", []string{"río", "puente"}, "p1", 5, 1},
		{database.Photo{Path: "2.jpg", Date: "2025-06-02 09:00:00", Description: "Plaza Mayor #plazamayor"},
			&no, "", nil, "p2", 50, 0},
		{database.Photo{Path: "3.png", Date: "2025-05-20 12:00:00", Description: "#Pisuerga en mayo"},
			nil, "", nil, "p3", 2, 0},
	}

	for _, p := range photos {
		id, err := db.InsertPhoto(ctx, p.photo)
		if err != nil {
			t.Fatal(err)
		}
		if p.appropriate != nil {
			if err := db.SetAnalysis(ctx, id, p.appropriate, p.aiDesc, p.aiTags); err != nil {
				t.Fatal(err)
			}
		}
		if err := db.LinkPost(ctx, id, p.postID); err != nil {
			t.Fatal(err)
		}
		update := database.StatsUpdate{ImageID: id, Likes: p.likes, Comments: p.comments, UpdatedAt: testNow}
		if err := db.UpsertInteractionStats(ctx, update); err != nil {
			t.Fatal(err)
		}
	}
	return path
}

// stubEngagement records the refs it is asked about.
type stubEngagement struct {
	mu   sync.Mutex
	refs []string
}

func (s *stubEngagement) record(ref string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refs = append(s.refs, ref)
}

func (s *stubEngagement) Stats(_ context.Context, ref string) engagement.Stats {
	s.record(ref)
	if ref == "1" {
		return engagement.Stats{Found: true, LikeCount: 5, CommentCount: 1, ThreadURL: "https://bsky.app/profile/x/post/p1"}
	}
	return engagement.Stats{}
}

func (s *stubEngagement) BatchStats(ctx context.Context, refs []string) map[string]engagement.Stats {
	out := make(map[string]engagement.Stats, len(refs))
	for _, r := range refs {
		out[r] = s.Stats(ctx, r)
	}
	return out
}

func (s *stubEngagement) Comments(_ context.Context, ref string) engagement.CommentThread {
	s.record(ref)
	return engagement.CommentThread{Found: true, CommentCount: 1, Comments: []engagement.Comment{{Text: "¡Qué bonita!"}}}
}

type testEnv struct {
	h      *Handlers
	router *mux.Router
	loader *loader.Manager
	eng    *stubEngagement
	config *startup.Config
}

func newTestEnv(t *testing.T, dbPath string) *testEnv {
	t.Helper()

	dir := t.TempDir()
	config := &startup.Config{
		FilesDir:          filepath.Join(dir, "files"),
		TagsCacheFile:     filepath.Join(dir, "tags-cache.json"),
		ElementsCacheFile: filepath.Join(dir, "ai-tags-cache.json"),
		SiteURL:           "https://fotos.example.org",
		SiteTitle:         "Fotos de prueba",
		SiteDescription:   "Galería",
		OriginalURL:       "https://t.me/example/1/",
		ResponseCacheTTL:  time.Minute,
	}
	if err := os.MkdirAll(config.FilesDir, 0o755); err != nil {
		t.Fatal(err)
	}

	m := loader.New(&loader.FileSource{Path: dbPath}, t.TempDir())
	t.Cleanup(func() { m.Close() })

	eng := &stubEngagement{}
	h := New(m, eng, cache.NewMemory(time.Minute), config)
	h.now = func() time.Time { return testNow }

	r := mux.NewRouter()
	h.RegisterRoutes(r)
	return &testEnv{h: h, router: r, loader: m, eng: eng, config: config}
}

func (e *testEnv) do(t *testing.T, method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("invalid JSON %q: %v", w.Body.String(), err)
	}
}

// =============================================================================
// Health Tests
// =============================================================================

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t, seedGallery(t))

	w := env.do(t, http.MethodGet, "/health", nil)
	var resp HealthResponse
	decode(t, w, &resp)
	if w.Code != http.StatusOK || resp.Status != statusStarting || resp.DatabaseLoaded {
		t.Errorf("before load: code=%d resp=%+v", w.Code, resp)
	}
	if resp.CacheBackend != "memory" {
		t.Errorf("CacheBackend = %q, want memory", resp.CacheBackend)
	}

	if _, err := env.loader.Get(context.Background()); err != nil {
		t.Fatal(err)
	}

	w = env.do(t, http.MethodGet, "/healthz", nil)
	resp = HealthResponse{}
	decode(t, w, &resp)
	if w.Code != http.StatusOK || resp.Status != statusHealthy {
		t.Errorf("after load: code=%d status=%s", w.Code, resp.Status)
	}
	if resp.TotalPhotos != 3 || resp.TotalPosts != 3 || resp.CachedStats != 3 {
		t.Errorf("gallery totals = %+v", resp)
	}
}

func TestHealthCheck_Degraded(t *testing.T) {
	env := newTestEnv(t, filepath.Join(t.TempDir(), "missing.db"))
	env.loader.Get(context.Background())

	w := env.do(t, http.MethodGet, "/health", nil)
	var resp HealthResponse
	decode(t, w, &resp)
	if w.Code != http.StatusServiceUnavailable || resp.Status != statusDegraded || resp.LoadError == "" {
		t.Errorf("code=%d resp=%+v", w.Code, resp)
	}
}

func TestReadinessCheck(t *testing.T) {
	env := newTestEnv(t, seedGallery(t))

	w := env.do(t, http.MethodGet, "/readyz", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !env.loader.Loaded() {
		t.Error("readiness probe should load the database")
	}

	broken := newTestEnv(t, filepath.Join(t.TempDir(), "missing.db"))
	if w := broken.do(t, http.MethodGet, "/readyz", nil); w.Code != http.StatusServiceUnavailable {
		t.Errorf("broken status = %d, want 503", w.Code)
	}
}

func TestLivenessCheck(t *testing.T) {
	env := newTestEnv(t, filepath.Join(t.TempDir(), "missing.db"))

	if w := env.do(t, http.MethodGet, "/livez", nil); w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "alive") {
		t.Errorf("GET /livez = %d %q", w.Code, w.Body.String())
	}
	if w := env.do(t, http.MethodHead, "/livez", nil); w.Body.Len() != 0 {
		t.Errorf("HEAD /livez wrote a body: %q", w.Body.String())
	}
}

func TestGetVersion(t *testing.T) {
	env := newTestEnv(t, seedGallery(t))

	w := env.do(t, http.MethodGet, "/version", nil)
	var info startup.BuildInfo
	decode(t, w, &info)
	if info.Version != startup.Version {
		t.Errorf("Version = %q, want %q", info.Version, startup.Version)
	}
	if w.Header().Get("Cache-Control") != "no-cache" {
		t.Errorf("Cache-Control = %q", w.Header().Get("Cache-Control"))
	}
}

// =============================================================================
// Photo Tests
// =============================================================================

func TestListPhotos(t *testing.T) {
	env := newTestEnv(t, seedGallery(t))

	tests := []struct {
		name      string
		query     string
		wantTotal int
		wantWeeks int
	}{
		{"all", "", 3, 3},
		{"tag folds case", "?tag=%23Pisuerga", 2, 2},
		{"element", "?element=R%C3%ADo", 1, 1},
		{"search ai description", "?search=atardecer", 1, 1},
		{"week", "?week=2025-06-09_2025-06-15", 1, 1},
		{"combined", "?tag=pisuerga&week=2025-05-19_2025-05-25", 1, 1},
		{"flagged description hidden", "?tag=plazamayor", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodGet, "/api/photos"+tt.query, nil)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d: %s", w.Code, w.Body.String())
			}
			var resp PhotosResponse
			decode(t, w, &resp)
			if resp.Total != tt.wantTotal || len(resp.Weeks) != tt.wantWeeks {
				t.Errorf("total=%d weeks=%d, want %d/%d", resp.Total, len(resp.Weeks), tt.wantTotal, tt.wantWeeks)
			}
			if resp.Weeks == nil {
				t.Error("weeks should be an empty array, not null")
			}
		})
	}
}

func TestListPhotos_GroupsNewestWeekFirst(t *testing.T) {
	env := newTestEnv(t, seedGallery(t))

	var resp PhotosResponse
	decode(t, env.do(t, http.MethodGet, "/api/photos", nil), &resp)

	if resp.Weeks[0].Key != "2025-06-09_2025-06-15" {
		t.Errorf("first week = %s", resp.Weeks[0].Key)
	}
	flagged := resp.Weeks[1].Photos[0]
	if flagged.Description != gallery.UnavailableDescription {
		t.Errorf("flagged description = %q", flagged.Description)
	}
}

func TestListPhotos_DatabaseUnavailable(t *testing.T) {
	env := newTestEnv(t, filepath.Join(t.TempDir(), "missing.db"))

	w := env.do(t, http.MethodGet, "/api/photos", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
	var body map[string]string
	decode(t, w, &body)
	if body["error"] != errGalleryUnavailable {
		t.Errorf("error = %q", body["error"])
	}
}

func TestGetPhoto(t *testing.T) {
	env := newTestEnv(t, seedGallery(t))

	tests := []struct {
		ref      string
		wantCode int
		wantPath string
	}{
		{"1", http.StatusOK, "1.jpg"},
		{"1.jpg", http.StatusOK, "1.jpg"},
		{"3", http.StatusOK, "3.png"},
		{"99", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			w := env.do(t, http.MethodGet, "/api/photos/"+tt.ref, nil)
			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantCode)
			}
			if tt.wantPath == "" {
				return
			}
			var resp PhotoResponse
			decode(t, w, &resp)
			if resp.Path != tt.wantPath || resp.FileURL != "/files/"+tt.wantPath {
				t.Errorf("resp = %+v", resp)
			}
		})
	}
}

func TestGetPhoto_Moderated(t *testing.T) {
	env := newTestEnv(t, seedGallery(t))

	var resp PhotoResponse
	decode(t, env.do(t, http.MethodGet, "/api/photos/2", nil), &resp)
	if resp.Description != gallery.UnavailableDescription {
		t.Errorf("Description = %q", resp.Description)
	}
	if resp.Week.Key != "2025-06-02_2025-06-08" {
		t.Errorf("Week = %+v", resp.Week)
	}
}

// =============================================================================
// Popular Tests
// =============================================================================

func TestGetPopular(t *testing.T) {
	env := newTestEnv(t, seedGallery(t))

	tests := []struct {
		name       string
		query      string
		wantPaths  []string
		wantLikes  int
		wantPeriod gallery.Period
	}{
		{"all time excludes flagged", "", []string{"1.jpg", "3.png"}, 7, gallery.PeriodAll},
		{"last week", "?period=week", []string{"1.jpg"}, 5, gallery.PeriodWeek},
		{"unknown period", "?period=decade&sort=comments", []string{"1.jpg", "3.png"}, 7, gallery.PeriodAll},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodGet, "/api/popular"+tt.query, nil)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d: %s", w.Code, w.Body.String())
			}
			var page gallery.PopularPage
			decode(t, w, &page)

			if page.Period != tt.wantPeriod {
				t.Errorf("Period = %q, want %q", page.Period, tt.wantPeriod)
			}
			if page.Totals.Likes != tt.wantLikes {
				t.Errorf("Totals.Likes = %d, want %d", page.Totals.Likes, tt.wantLikes)
			}
			if len(page.Photos) != len(tt.wantPaths) {
				t.Fatalf("got %d photos, want %d", len(page.Photos), len(tt.wantPaths))
			}
			for i, p := range page.Photos {
				if p.Path != tt.wantPaths[i] {
					t.Errorf("photo %d = %s, want %s", i, p.Path, tt.wantPaths[i])
				}
			}
		})
	}
}

// =============================================================================
// Engagement Tests
// =============================================================================

func TestGetStats(t *testing.T) {
	env := newTestEnv(t, filepath.Join(t.TempDir(), "missing.db"))

	w := env.do(t, http.MethodGet, "/api/stats/1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var stats engagement.Stats
	decode(t, w, &stats)
	if !stats.Found || stats.LikeCount != 5 {
		t.Errorf("stats = %+v", stats)
	}

	// Engagement degrades instead of failing, even without a database.
	w = env.do(t, http.MethodGet, "/api/stats/42", nil)
	stats = engagement.Stats{}
	decode(t, w, &stats)
	if w.Code != http.StatusOK || stats.Found {
		t.Errorf("missing photo: code=%d stats=%+v", w.Code, stats)
	}
}

func TestGetBatchStats(t *testing.T) {
	env := newTestEnv(t, seedGallery(t))

	t.Run("valid", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/stats", []byte(`{"paths":["1","","2"]}`))
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		var result map[string]engagement.Stats
		decode(t, w, &result)
		if len(result) != 2 || !result["1"].Found || result["2"].Found {
			t.Errorf("result = %+v", result)
		}
	})

	t.Run("invalid body", func(t *testing.T) {
		if w := env.do(t, http.MethodPost, "/api/stats", []byte(`{`)); w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})

	t.Run("no paths", func(t *testing.T) {
		if w := env.do(t, http.MethodPost, "/api/stats", []byte(`{"paths":[""]}`)); w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})

	t.Run("capped", func(t *testing.T) {
		paths := make([]string, maxBatchPaths+20)
		for i := range paths {
			paths[i] = "p" + strings.Repeat("x", i)
		}
		body, _ := json.Marshal(BatchStatsRequest{Paths: paths})

		var result map[string]engagement.Stats
		decode(t, env.do(t, http.MethodPost, "/api/stats", body), &result)
		if len(result) != maxBatchPaths {
			t.Errorf("got %d results, want %d", len(result), maxBatchPaths)
		}
	})
}

func TestGetComments(t *testing.T) {
	env := newTestEnv(t, seedGallery(t))

	w := env.do(t, http.MethodGet, "/api/comments/1", nil)
	var thread engagement.CommentThread
	decode(t, w, &thread)
	if !thread.Found || len(thread.Comments) != 1 || thread.Comments[0].Text != "¡Qué bonita!" {
		t.Errorf("thread = %+v", thread)
	}
	if env.eng.refs[len(env.eng.refs)-1] != "1" {
		t.Errorf("refs = %v", env.eng.refs)
	}
}

// =============================================================================
// Index Tests
// =============================================================================

func TestGetTags_BuiltFromDatabase(t *testing.T) {
	env := newTestEnv(t, seedGallery(t))

	var idx tagindex.Index
	decode(t, env.do(t, http.MethodGet, "/api/tags", nil), &idx)

	if len(idx.Tags) == 0 || idx.Tags[0].Tag != "#pisuerga" || idx.Tags[0].Count != 2 {
		t.Errorf("tags = %+v", idx.Tags)
	}
}

func TestGetTags_ServedFromFile(t *testing.T) {
	env := newTestEnv(t, filepath.Join(t.TempDir(), "missing.db"))

	stored := tagindex.Index{LastUpdate: "2025-06-01T00:00:00.000000", Tags: []tagindex.Entry{{Tag: "#valladolid", Count: 9}}}
	if err := stored.Write(env.config.TagsCacheFile); err != nil {
		t.Fatal(err)
	}

	w := env.do(t, http.MethodGet, "/api/tags", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var idx tagindex.Index
	decode(t, w, &idx)
	if idx.LastUpdate != stored.LastUpdate || idx.Tags[0].Tag != "#valladolid" {
		t.Errorf("idx = %+v", idx)
	}
}

func TestGetElements(t *testing.T) {
	env := newTestEnv(t, seedGallery(t))

	var idx tagindex.Index
	decode(t, env.do(t, http.MethodGet, "/api/elements", nil), &idx)

	// Only the appropriate analysed photo contributes.
	if len(idx.Tags) != 2 {
		t.Fatalf("elements = %+v", idx.Tags)
	}
	for _, e := range idx.Tags {
		if e.Count != 1 || len(e.LatestPhotos) != 1 || e.LatestPhotos[0] != "1.jpg" {
			t.Errorf("entry = %+v", e)
		}
	}
}

// =============================================================================
// Feed Tests
// =============================================================================

func TestFeeds(t *testing.T) {
	env := newTestEnv(t, seedGallery(t))

	tests := []struct {
		path        string
		contentType string
		marker      string
	}{
		{"/feed.xml", "application/rss+xml; charset=utf-8", "<rss"},
		{"/feed.atom", "application/atom+xml; charset=utf-8", "<feed"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := env.do(t, http.MethodGet, tt.path, nil)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d", w.Code)
			}
			if ct := w.Header().Get("Content-Type"); ct != tt.contentType {
				t.Errorf("Content-Type = %q", ct)
			}
			body := w.Body.String()
			for _, want := range []string{tt.marker, "Fotos de prueba", "https://fotos.example.org/files/1.jpg"} {
				if !strings.Contains(body, want) {
					t.Errorf("feed missing %q", want)
				}
			}
		})
	}
}

// =============================================================================
// File Tests
// =============================================================================

func TestServeFile(t *testing.T) {
	env := newTestEnv(t, seedGallery(t))
	if err := os.WriteFile(filepath.Join(env.config.FilesDir, "1.jpg"), []byte("jpeg"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(env.config.FilesDir, "notes.txt"), []byte("notes"), 0o644); err != nil {
		t.Fatal(err)
	}
	secret := filepath.Join(filepath.Dir(env.config.FilesDir), "secret.jpg")
	if err := os.WriteFile(secret, []byte("secret"), 0o644); err != nil {
		t.Fatal(err)
	}

	w := env.do(t, http.MethodGet, "/files/1.jpg", nil)
	if w.Code != http.StatusOK || w.Body.String() != "jpeg" {
		t.Errorf("GET 1.jpg = %d %q", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Header().Get("Cache-Control"), "immutable") {
		t.Errorf("Cache-Control = %q", w.Header().Get("Cache-Control"))
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("Content-Type = %q, want image/jpeg", ct)
	}

	if w := env.do(t, http.MethodGet, "/files/2.jpg", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing file = %d, want 404", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/files/notes.txt", nil); w.Code != http.StatusNotFound {
		t.Errorf("non-photo file = %d, want 404", w.Code)
	}

	// The router cleans dot segments itself, so call the handler directly.
	for _, name := range []string{"../secret.jpg", "../../files/../secret.jpg", ""} {
		req := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/files/x", http.NoBody), map[string]string{"path": name})
		w := httptest.NewRecorder()
		env.h.ServeFile(w, req)
		if w.Code != http.StatusNotFound || strings.Contains(w.Body.String(), "secret") {
			t.Errorf("path %q = %d %q, want 404", name, w.Code, w.Body.String())
		}
	}
}

// =============================================================================
// Response Cache Tests
// =============================================================================

func TestCached(t *testing.T) {
	env := newTestEnv(t, seedGallery(t))
	ctx := context.Background()

	builds := 0
	build := func() (gallery.Totals, error) {
		builds++
		return gallery.Totals{Photos: builds}, nil
	}

	first, err := cached(ctx, env.h, "totals", build)
	if err != nil {
		t.Fatal(err)
	}
	second, err := cached(ctx, env.h, "totals", build)
	if err != nil {
		t.Fatal(err)
	}
	if builds != 1 || first != second {
		t.Errorf("builds=%d first=%+v second=%+v", builds, first, second)
	}

	env.h.cacheTTL = 0
	if _, err := cached(ctx, env.h, "totals", build); err != nil || builds != 2 {
		t.Errorf("disabled cache should rebuild: builds=%d err=%v", builds, err)
	}
}
