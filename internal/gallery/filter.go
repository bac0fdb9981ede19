package gallery

import (
	"net/url"
	"strings"

	"github.com/gosimple/slug"
	"github.com/gosimple/unidecode"

	"fotos/internal/database"
	"fotos/internal/mediatypes"
)

// UnavailableDescription replaces the description of moderated photos.
const UnavailableDescription = "Descripción no disponible"

// Filter narrows the photo list. The zero value matches every photo.
type Filter struct {
	// Tag is a normalized hashtag without the leading '#'.
	Tag string
	// Element is an AI tag, compared case-insensitively.
	Element string
	// Search is a lowercased free-text term.
	Search string
	// Week is a week key as produced by WeekOf.
	Week   string
	Period Period
	Sort   Sort
}

// ParseFilter reads a Filter from query parameters. Unknown period and sort
// values fall back to their defaults.
func ParseFilter(q url.Values) Filter {
	return Filter{
		Tag:     NormalizeTag(q.Get("tag")),
		Element: strings.TrimSpace(q.Get("element")),
		Search:  strings.ToLower(strings.TrimSpace(q.Get("search"))),
		Week:    strings.TrimSpace(q.Get("week")),
		Period:  ParsePeriod(q.Get("period")),
		Sort:    ParseSort(q.Get("sort")),
	}
}

// Query encodes the filter back into a query string, omitting defaults.
func (f Filter) Query() string {
	q := url.Values{}
	if f.Tag != "" {
		q.Set("tag", f.Tag)
	}
	if f.Element != "" {
		q.Set("element", f.Element)
	}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	if f.Week != "" {
		q.Set("week", f.Week)
	}
	if f.Period != "" && f.Period != PeriodAll {
		q.Set("period", string(f.Period))
	}
	if f.Sort != "" && f.Sort != SortLikes {
		q.Set("sort", string(f.Sort))
	}
	return q.Encode()
}

// IsZero reports whether the filter lets every photo through.
func (f Filter) IsZero() bool {
	return f.Tag == "" && f.Element == "" && f.Search == "" && f.Week == ""
}

// NormalizeTag lowercases a hashtag and strips its accents and leading '#'.
func NormalizeTag(tag string) string {
	tag = strings.TrimPrefix(strings.TrimSpace(tag), "#")
	if tag == "" {
		return ""
	}
	return slug.Make(tag)
}

// foldText lowercases text and strips accents so hashtags in descriptions
// compare equal to normalized tags.
func foldText(s string) string {
	return strings.ToLower(unidecode.Unidecode(s))
}

// Matches reports whether p passes every criterion of the filter.
func (f Filter) Matches(p database.Photo) bool {
	if f.Tag != "" && !strings.Contains(foldText(p.Description), "#"+f.Tag) {
		return false
	}

	if f.Element != "" && !hasTag(p.AITags, f.Element) {
		return false
	}

	if f.Search != "" {
		found := strings.Contains(strings.ToLower(p.Description), f.Search) ||
			strings.Contains(strings.ToLower(p.AIDescription), f.Search)
		for _, t := range p.AITags {
			if found {
				break
			}
			found = strings.Contains(strings.ToLower(t), f.Search)
		}
		if !found {
			return false
		}
	}

	if f.Week != "" && WeekOf(p.Date).Key != f.Week {
		return false
	}
	return true
}

func hasTag(tags []string, want string) bool {
	for _, t := range tags {
		if strings.EqualFold(t, want) {
			return true
		}
	}
	return false
}

// Moderate hides the description of photos flagged as inappropriate.
func Moderate(p database.Photo) database.Photo {
	if p.Flagged() {
		p.Description = UnavailableDescription
	}
	return p
}

// Apply moderates photos and keeps those matching f, preserving order.
// Moderation runs first, so a flagged photo never matches on its original
// description.
func (f Filter) Apply(photos []database.Photo) []database.Photo {
	out := make([]database.Photo, 0, len(photos))
	for _, p := range photos {
		p = Moderate(p)
		if f.Matches(p) {
			out = append(out, p)
		}
	}
	return out
}

// PhotoID returns the id used in #fragment links: the path without its
// directory and image extension.
func PhotoID(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		path = path[i+1:]
	}
	return mediatypes.TrimPhotoExt(path)
}
