package feed

import (
	"fmt"
	"html"
	"path"
	"strings"
	"time"

	"github.com/gorilla/feeds"

	"fotos/internal/database"
	"fotos/internal/gallery"
)

// MaxItems is the number of photos a feed carries.
const MaxItems = 100

const (
	titleLength = 60
	license     = "CC BY-SA 4.0"
	licenseURL  = "https://creativecommons.org/licenses/by-sa/4.0/"
)

// Options describes the site a feed is published for.
type Options struct {
	SiteURL     string
	Title       string
	Description string
	// OriginalURL is the prefix of the link to the original upload; the
	// photo id is appended. Empty disables the link.
	OriginalURL string
	// Now is used for photos with an unparseable date.
	Now time.Time
}

// Build turns the latest photos into a feed, newest first.
func Build(photos []database.Photo, opts Options) *feeds.Feed {
	site := strings.TrimRight(opts.SiteURL, "/")
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	f := &feeds.Feed{
		Title:       opts.Title,
		Link:        &feeds.Link{Href: site + "/"},
		Description: opts.Description,
		Copyright:   "Las imágenes están bajo licencia " + license + " - " + licenseURL,
		Created:     opts.Now,
	}

	if len(photos) > MaxItems {
		photos = photos[:MaxItems]
	}

	for i, p := range photos {
		fileURL := site + "/files/" + p.Path
		id := gallery.PhotoID(p.Path)

		created, ok := parseDate(p.Date)
		if !ok {
			created = opts.Now
		}
		if i == 0 {
			f.Updated = created
		}

		item := &feeds.Item{
			Id:          fileURL,
			Title:       Title(p),
			Link:        &feeds.Link{Href: site + "/#" + id},
			Description: itemHTML(p, fileURL, id, opts.OriginalURL),
			Created:     created,
		}
		if p.Author != "" {
			item.Author = &feeds.Author{Name: p.Author}
		}
		f.Items = append(f.Items, item)
	}
	return f
}

// Title is the first line of the description cut to 60 characters, with an
// ellipsis when cut. Photos without a description use their file name.
func Title(p database.Photo) string {
	if p.Description == "" {
		return path.Base(p.Path)
	}
	line := strings.SplitN(p.Description, "\n", 2)[0]
	runes := []rune(line)
	if len(runes) >= titleLength {
		return string(runes[:titleLength]) + "..."
	}
	return line
}

func itemHTML(p database.Photo, fileURL, id, originalURL string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<img src="%s" style="max-width:600px;height:auto;"/>`, html.EscapeString(fileURL))
	if p.Description != "" {
		fmt.Fprintf(&b, "<p>%s</p>", html.EscapeString(p.Description))
	}
	if p.Author != "" {
		fmt.Fprintf(&b, "<p>Autor: %s - %s</p>", html.EscapeString(p.Author), license)
		if originalURL != "" {
			fmt.Fprintf(&b, `<p><a href="%s%s">Ver original</a></p>`, html.EscapeString(originalURL), html.EscapeString(id))
		}
	}
	return b.String()
}

func parseDate(s string) (time.Time, bool) {
	t, err := time.Parse(database.SQLiteTimeLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// RSS renders f as RSS 2.0 in Spanish.
func RSS(f *feeds.Feed) (string, error) {
	rss := (&feeds.Rss{Feed: f}).RssFeed()
	rss.Language = "es"
	return feeds.ToXML(rss)
}

// Atom renders f as an Atom feed.
func Atom(f *feeds.Feed) (string, error) {
	return feeds.ToXML((&feeds.Atom{Feed: f}).AtomFeed())
}
