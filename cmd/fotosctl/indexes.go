package main

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
	"github.com/urfave/cli"

	"fotos/internal/database"
	"fotos/internal/feed"
	"fotos/internal/filesystem"
	"fotos/internal/tagindex"
)

// UpdateTagsCommand registers the update-tags cli command.
var UpdateTagsCommand = cli.Command{
	Name:   "update-tags",
	Usage:  "Writes the hashtag index read by the front end",
	Flags:  []cli.Flag{cli.StringFlag{Name: "out, o", Usage: "output file (default: TAGS_CACHE_FILE)"}},
	Action: updateTagsAction,
}

// UpdateAITagsCommand registers the update-ai-tags cli command.
var UpdateAITagsCommand = cli.Command{
	Name:   "update-ai-tags",
	Usage:  "Writes the index of AI-detected elements",
	Flags:  []cli.Flag{cli.StringFlag{Name: "out, o", Usage: "output file (default: ELEMENTS_CACHE_FILE)"}},
	Action: updateAITagsAction,
}

func updateTagsAction(c *cli.Context) error {
	return writeIndex(c, config(c).TagsCacheFile, "hashtag", tagindex.BuildTags)
}

func updateAITagsAction(c *cli.Context) error {
	return writeIndex(c, config(c).ElementsCacheFile, "element", tagindex.BuildElements)
}

func writeIndex(c *cli.Context, defaultOut, noun string, build func([]database.Photo, time.Time) tagindex.Index) error {
	out := c.String("out")
	if out == "" {
		out = defaultOut
	}

	db, err := openDB(c, false)
	if err != nil {
		return err
	}
	defer db.Close()

	photos, err := db.ListPhotos(context.Background())
	if err != nil {
		return err
	}

	idx := build(photos, time.Now())
	if err := idx.Write(out); err != nil {
		return fmt.Errorf("writing %s: %w", out, err)
	}

	fmt.Fprintf(c.App.Writer, "Wrote %s from %s to %s\n",
		english.Plural(len(idx.Tags), noun, ""),
		english.Plural(len(photos), "photo", ""), out)
	return nil
}

// FeedCommand registers the feed cli command.
var FeedCommand = cli.Command{
	Name:  "feed",
	Usage: "Writes the RSS feed of the latest photos",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "out, o", Value: "feed.xml", Usage: "output file"},
		cli.BoolFlag{Name: "atom", Usage: "write Atom instead of RSS"},
	},
	Action: feedAction,
}

func feedAction(c *cli.Context) error {
	cfg := config(c)

	db, err := openDB(c, false)
	if err != nil {
		return err
	}
	defer db.Close()

	photos, err := db.ListForFeed(context.Background(), feed.MaxItems)
	if err != nil {
		return err
	}

	f := feed.Build(photos, feed.Options{
		SiteURL:     cfg.SiteURL,
		Title:       cfg.SiteTitle,
		Description: cfg.SiteDescription,
		OriginalURL: cfg.OriginalURL,
	})

	render := feed.RSS
	if c.Bool("atom") {
		render = feed.Atom
	}
	body, err := render(f)
	if err != nil {
		return err
	}

	out := c.String("out")
	if err := filesystem.WriteFileAtomic(out, []byte(body), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", out, err)
	}

	fmt.Fprintf(c.App.Writer, "Wrote %s with %s (%s)\n", out,
		english.Plural(len(f.Items), "item", ""), humanize.Bytes(uint64(len(body))))
	return nil
}
