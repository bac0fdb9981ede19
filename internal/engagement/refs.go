package engagement

import (
	"net/url"
	"strings"
	"time"

	"fotos/internal/database"
	"fotos/internal/mediatypes"
)

// filesPrefix is the URL prefix photo files are served under.
const filesPrefix = "/files/"

// FreshnessWindow is how long cached stats are trusted.
const FreshnessWindow = 12 * time.Hour

// ParseRef extracts a photo reference from a canonical photo URL: the
// #fragment when present, otherwise the last path segment. Anything that is
// not an http(s) URL is returned unchanged.
func ParseRef(urlOrPath string) string {
	if !strings.HasPrefix(urlOrPath, "http://") && !strings.HasPrefix(urlOrPath, "https://") {
		return urlOrPath
	}

	u, err := url.Parse(urlOrPath)
	if err != nil {
		return urlOrPath
	}
	if u.Fragment != "" {
		return u.Fragment
	}

	p := strings.TrimRight(u.Path, "/")
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[i+1:]
	}
	return p
}

// cleanRef strips the files prefix from ref.
func cleanRef(ref string) string {
	return strings.TrimPrefix(ref, filesPrefix)
}

// CandidatePaths lists the stored paths a reference may correspond to, in
// the order they should be tried. A bare id expands to one path per known
// extension; a reference with an extension is used as is.
func CandidatePaths(ref string) []string {
	clean := cleanRef(ref)
	if clean == "" {
		return nil
	}
	if strings.Contains(clean, ".") {
		return []string{clean}
	}

	paths := make([]string, len(mediatypes.CandidateExtensions))
	for i, ext := range mediatypes.CandidateExtensions {
		paths[i] = clean + ext
	}
	return paths
}

var timestampLayouts = []string{
	database.SQLiteTimeLayout,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999",
}

// parseTimestamp reads a last_updated value. Layouts without a zone are UTC,
// matching SQLite's datetime('now').
func parseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// IsRecent reports whether lastUpdated lies within the freshness window
// before now. Missing or unparseable timestamps are never recent.
func IsRecent(lastUpdated string, now time.Time) bool {
	t, ok := parseTimestamp(lastUpdated)
	if !ok {
		return false
	}
	return now.Sub(t) < FreshnessWindow
}
