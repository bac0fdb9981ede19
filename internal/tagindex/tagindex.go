package tagindex

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"fotos/internal/database"
	"fotos/internal/filesystem"
)

// MaxLatestPhotos is how many example photos each entry keeps.
const MaxLatestPhotos = 4

// hashtagPattern matches '#' followed by word characters, including
// accented letters.
var hashtagPattern = regexp.MustCompile(`#[\p{L}\p{N}_]+`)

// Entry is one tag with its photo count.
type Entry struct {
	Tag          string   `json:"tag"`
	Count        int      `json:"count"`
	LatestPhotos []string `json:"latest_photos,omitempty"`
}

// Index is the cached tag document read by the front end.
type Index struct {
	LastUpdate string  `json:"lastUpdate"`
	Tags       []Entry `json:"tags"`
}

// counter accumulates entries in first-seen order.
type counter struct {
	entries map[string]*Entry
}

func newCounter() *counter {
	return &counter{entries: make(map[string]*Entry)}
}

func (c *counter) add(tag, path string) {
	e, ok := c.entries[tag]
	if !ok {
		e = &Entry{Tag: tag}
		c.entries[tag] = e
	}
	e.Count++
	if len(e.LatestPhotos) < MaxLatestPhotos {
		e.LatestPhotos = append(e.LatestPhotos, path)
	}
}

// index sorts entries by count, most used first, then alphabetically.
func (c *counter) index(now time.Time) Index {
	tags := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		tags = append(tags, *e)
	}
	sort.Slice(tags, func(i, j int) bool {
		if tags[i].Count != tags[j].Count {
			return tags[i].Count > tags[j].Count
		}
		return tags[i].Tag < tags[j].Tag
	})
	return Index{
		LastUpdate: now.Format("2006-01-02T15:04:05.000000"),
		Tags:       tags,
	}
}

// BuildTags counts the hashtags in photo descriptions. Tags are lowercased
// and keep their '#'. photos are expected newest first.
func BuildTags(photos []database.Photo, now time.Time) Index {
	c := newCounter()
	for _, p := range photos {
		if p.Description == "" {
			continue
		}
		for _, tag := range hashtagPattern.FindAllString(strings.ToLower(p.Description), -1) {
			c.add(tag, p.Path)
		}
	}
	return c.index(now)
}

// BuildElements counts the AI tags of photos moderation approved.
func BuildElements(photos []database.Photo, now time.Time) Index {
	c := newCounter()
	for _, p := range photos {
		if p.IsAppropriate == nil || !*p.IsAppropriate {
			continue
		}
		for _, tag := range p.AITags {
			c.add(tag, p.Path)
		}
	}
	return c.index(now)
}

// Load reads an index file.
func Load(path string) (*Index, error) {
	data, err := filesystem.ReadFileWithRetry(path, filesystem.DefaultRetryConfig())
	if err != nil {
		return nil, err
	}

	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if idx.Tags == nil {
		idx.Tags = []Entry{}
	}
	return &idx, nil
}

// Write stores idx at path, replacing any previous file atomically.
func (idx Index) Write(path string) error {
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return err
	}
	return filesystem.WriteFileAtomic(path, append(data, '\n'), 0o644)
}

// Exists reports whether an index file is present.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
