package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli"
	"golang.org/x/term"

	"fotos/internal/database"
	"fotos/internal/filesystem"
	"fotos/internal/gallery"
	"fotos/internal/logging"
	"fotos/internal/mediatypes"
)

// Overridden in tests.
var (
	stdin      io.Reader = os.Stdin
	isTerminal           = func() bool { return term.IsTerminal(int(os.Stdin.Fd())) }
)

// AddPhotoCommand registers the add-photo cli command.
var AddPhotoCommand = cli.Command{
	Name:      "add-photo",
	Usage:     "Copies an image into the files directory and adds it to the gallery",
	ArgsUsage: "<image file>",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "author, a", Usage: "name of the photographer"},
		cli.StringFlag{Name: "description", Usage: "caption, hashtags included"},
		cli.StringFlag{Name: "date", Usage: "capture date as YYYY-MM-DD HH:MM:SS (default: now)"},
	},
	Action: addPhotoAction,
}

func addPhotoAction(c *cli.Context) error {
	src := strings.TrimSpace(c.Args().First())
	if src == "" {
		return errors.New("add-photo requires an image file")
	}
	ext := mediatypes.Ext(src)
	if !mediatypes.IsPhoto(src) {
		return fmt.Errorf("%s is not a JPEG or PNG file", src)
	}

	date := c.String("date")
	if date == "" {
		date = time.Now().Format(database.SQLiteTimeLayout)
	} else if _, err := time.Parse(database.SQLiteTimeLayout, date); err != nil {
		return fmt.Errorf("invalid --date %q: want YYYY-MM-DD HH:MM:SS", date)
	}

	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}

	db, err := openDB(c, true)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	next, err := db.NextPhotoID(ctx)
	if err != nil {
		return err
	}

	name := strconv.FormatInt(next, 10) + ext
	dst := filepath.Join(config(c).FilesDir, name)
	if _, err := os.Stat(dst); err == nil {
		return fmt.Errorf("%s already exists", dst)
	}
	if err := filesystem.WriteFileAtomic(dst, data, 0o644); err != nil {
		return fmt.Errorf("copying to %s: %w", dst, err)
	}

	id, err := db.InsertPhoto(ctx, database.Photo{
		Path:        name,
		Date:        date,
		Author:      c.String("author"),
		Description: c.String("description"),
	})
	if err != nil {
		if rmErr := os.Remove(dst); rmErr != nil {
			logging.Warn("Could not remove %s: %v", dst, rmErr)
		}
		return err
	}

	fmt.Fprintf(c.App.Writer, "Added %s (id %d, %s)\n", name, id, humanize.Bytes(uint64(len(data))))
	return nil
}

// DeletePhotoCommand registers the delete-photo cli command.
var DeletePhotoCommand = cli.Command{
	Name:      "delete-photo",
	Usage:     "Removes a photo, its analysis, post link and stats, and its file",
	ArgsUsage: "<photo id>",
	Flags: []cli.Flag{
		cli.BoolFlag{Name: "force, f", Usage: "do not ask for confirmation"},
	},
	Action: deletePhotoAction,
}

func deletePhotoAction(c *cli.Context) error {
	id, err := strconv.ParseInt(c.Args().First(), 10, 64)
	if err != nil {
		return fmt.Errorf("delete-photo requires a numeric photo id")
	}

	db, err := openDB(c, false)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	photo, err := db.GetPhotoByID(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("photo %d not found", id)
	}
	if err != nil {
		return err
	}

	if !c.Bool("force") {
		if !isTerminal() {
			return errors.New("refusing to delete without --force: stdin is not a terminal")
		}
		ok, err := confirm(c.App.Writer, fmt.Sprintf("Delete %s (%s)?", photo.Path, photo.Date))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(c.App.Writer, "Cancelled")
			return nil
		}
	}

	path, err := db.DeletePhoto(ctx, id)
	if err != nil {
		return err
	}

	file := filepath.Join(config(c).FilesDir, path)
	if err := os.Remove(file); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("photo %d deleted but %s could not be removed: %w", id, file, err)
	}

	fmt.Fprintf(c.App.Writer, "Deleted %s\n", path)
	return nil
}

func confirm(w io.Writer, question string) (bool, error) {
	fmt.Fprintf(w, "%s [y/N] ", question)
	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes", "s", "si", "sí":
		return true, nil
	}
	return false, nil
}

// LinkPostCommand registers the link-post cli command.
var LinkPostCommand = cli.Command{
	Name:      "link-post",
	Usage:     "Associates a photo with its Bluesky post",
	ArgsUsage: "<photo id or path> <post id or URL>",
	Action:    linkPostAction,
}

func linkPostAction(c *cli.Context) error {
	if c.NArg() != 2 {
		return errors.New("link-post requires a photo and a post")
	}
	ref, postID := c.Args().Get(0), parsePostID(c.Args().Get(1))
	if postID == "" {
		return fmt.Errorf("invalid post %q", c.Args().Get(1))
	}

	db, err := openDB(c, false)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	var photo *database.Photo
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		photo, err = db.GetPhotoByID(ctx, id)
		if err != nil && !errors.Is(err, database.ErrNotFound) {
			return err
		}
	}
	if photo == nil {
		photo, err = db.GetPhotoByPath(ctx, ref)
		if errors.Is(err, database.ErrNotFound) {
			return fmt.Errorf("photo %s not found", ref)
		}
		if err != nil {
			return err
		}
	}

	if err := db.LinkPost(ctx, photo.ID, postID); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Linked %s (#%s) to post %s\n", photo.Path, gallery.PhotoID(photo.Path), postID)
	return nil
}

// parsePostID accepts a bare record key, a bsky.app URL or an at:// URI.
func parsePostID(s string) string {
	s = strings.TrimRight(strings.TrimSpace(s), "/")
	if i := strings.LastIndex(s, "/"); i >= 0 {
		s = s[i+1:]
	}
	return s
}
