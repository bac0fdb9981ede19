package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var errReadOnly = errors.New("database is read-only")

// ListPostsForSync returns every post association with the timestamp of its
// cached stats row, ordered by image id.
func (d *Database) ListPostsForSync(ctx context.Context) ([]PostAssociation, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_posts_for_sync", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var posts []PostAssociation
	err = d.db.SelectContext(ctx, &posts, `
	SELECT bp.image_id, bp.post_id, i.path, COALESCE(bic.last_updated, '') AS last_updated
	FROM bluesky_posts bp
	JOIN imagenes i ON bp.image_id = i.id
	LEFT JOIN bluesky_interactions_cache bic ON bp.image_id = bic.image_id
	ORDER BY bp.image_id
	`)
	return posts, err
}

// StatsUpdate is a fresh set of engagement counts for one image.
type StatsUpdate struct {
	ImageID  int64
	Likes    int
	Comments int
	Reposts  int
	// UpdatedAt defaults to the current time.
	UpdatedAt time.Time
}

// UpsertInteractionStats stores fresh engagement counts for an image. The
// timestamp is written in UTC using SQLite's datetime() layout.
func (d *Database) UpsertInteractionStats(ctx context.Context, u StatsUpdate) error {
	if d.readOnly {
		return errReadOnly
	}

	start := time.Now()
	var err error
	defer func() { recordQuery("upsert_interaction_stats", start, err) }()

	at := u.UpdatedAt
	if at.IsZero() {
		at = time.Now()
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, `
	INSERT OR REPLACE INTO bluesky_interactions_cache
		(image_id, like_count, comment_count, repost_count, last_updated)
	VALUES (?, ?, ?, ?, ?)
	`, u.ImageID, u.Likes, u.Comments, u.Reposts, at.UTC().Format(SQLiteTimeLayout))
	return err
}

// SetAnalysis stores the AI analysis of an image. A nil appropriate value
// leaves the photo unmoderated.
func (d *Database) SetAnalysis(ctx context.Context, imageID int64, appropriate *bool, description string, tags []string) error {
	if d.readOnly {
		return errReadOnly
	}

	var flag sql.NullInt64
	if appropriate != nil {
		flag.Valid = true
		if *appropriate {
			flag.Int64 = 1
		}
	}

	var encoded sql.NullString
	if tags != nil {
		raw, err := json.Marshal(tags)
		if err != nil {
			return err
		}
		encoded = sql.NullString{String: string(raw), Valid: true}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := d.db.ExecContext(ctx, `
	INSERT OR REPLACE INTO image_analysis (image_id, is_appropriate, description, tags)
	VALUES (?, ?, ?, ?)
	`, imageID, flag, nullString(description), encoded)
	return err
}

// LinkPost associates an image with a Bluesky post id, replacing any
// previous association.
func (d *Database) LinkPost(ctx context.Context, imageID int64, postID string) error {
	if d.readOnly {
		return errReadOnly
	}

	start := time.Now()
	var err error
	defer func() { recordQuery("link_post", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO bluesky_posts (image_id, post_id) VALUES (?, ?)`,
		imageID, postID)
	return err
}

// NextPhotoID returns the next numeric file name: one more than the largest
// numeric stem among stored paths, or 1 for an empty gallery.
func (d *Database) NextPhotoID(ctx context.Context) (int64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var maxID sql.NullInt64
	err := d.db.GetContext(ctx, &maxID,
		`SELECT MAX(CAST(SUBSTR(path, 1, LENGTH(path) - 4) AS INTEGER)) FROM imagenes`)
	if err != nil {
		return 0, err
	}
	if !maxID.Valid {
		return 1, nil
	}
	return maxID.Int64 + 1, nil
}

// InsertPhoto adds a photo row and returns its id.
func (d *Database) InsertPhoto(ctx context.Context, p Photo) (int64, error) {
	if d.readOnly {
		return 0, errReadOnly
	}

	start := time.Now()
	var err error
	defer func() { recordQuery("insert_photo", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := d.db.ExecContext(ctx,
		`INSERT INTO imagenes (path, date, author, description) VALUES (?, ?, ?, ?)`,
		p.Path, p.Date, nullString(p.Author), nullString(p.Description))
	if err != nil {
		return 0, fmt.Errorf("insert photo %s: %w", p.Path, err)
	}
	return res.LastInsertId()
}

// DeletePhoto removes a photo and its dependent rows, returning the stored
// path so the caller can remove the file.
func (d *Database) DeletePhoto(ctx context.Context, id int64) (string, error) {
	if d.readOnly {
		return "", errReadOnly
	}

	start := time.Now()
	var err error
	defer func() { recordQuery("delete_photo", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var path string
	err = tx.GetContext(ctx, &path, `SELECT path FROM imagenes WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNotFound
		return "", err
	}
	if err != nil {
		return "", err
	}

	// Older databases were created without foreign keys.
	for _, stmt := range []string{
		`DELETE FROM bluesky_interactions_cache WHERE image_id = ?`,
		`DELETE FROM bluesky_posts WHERE image_id = ?`,
		`DELETE FROM image_analysis WHERE image_id = ?`,
		`DELETE FROM imagenes WHERE id = ?`,
	} {
		if _, err = tx.ExecContext(ctx, stmt, id); err != nil {
			return "", err
		}
	}

	if err = tx.Commit(); err != nil {
		return "", err
	}
	return path, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
