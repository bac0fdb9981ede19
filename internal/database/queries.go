package database

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

const photoColumns = `
	i.id, i.path, i.date, i.author, i.description,
	ia.is_appropriate, ia.description AS ai_description, ia.tags AS ai_tags`

// ListPhotos returns every photo, newest first.
func (d *Database) ListPhotos(ctx context.Context) ([]Photo, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_photos", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var rows []photoRow
	err = d.db.SelectContext(ctx, &rows, `
	SELECT`+photoColumns+`
	FROM imagenes i
	LEFT JOIN image_analysis ia ON i.id = ia.image_id
	ORDER BY i.date DESC, i.id DESC
	`)
	if err != nil {
		return nil, err
	}

	photos := make([]Photo, len(rows))
	for i, r := range rows {
		photos[i] = r.toPhoto()
	}
	return photos, nil
}

// GetPhotoByPath returns the photo stored under path (e.g. "123.jpg").
func (d *Database) GetPhotoByPath(ctx context.Context, path string) (*Photo, error) {
	return d.getPhoto(ctx, "i.path = ?", path)
}

// GetPhotoByID returns the photo with the given row id.
func (d *Database) GetPhotoByID(ctx context.Context, id int64) (*Photo, error) {
	return d.getPhoto(ctx, "i.id = ?", id)
}

func (d *Database) getPhoto(ctx context.Context, where string, arg interface{}) (*Photo, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_photo", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var row photoRow
	err = d.db.GetContext(ctx, &row, `
	SELECT`+photoColumns+`
	FROM imagenes i
	LEFT JOIN image_analysis ia ON i.id = ia.image_id
	WHERE `+where, arg)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNotFound
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	p := row.toPhoto()
	return &p, nil
}

// LookupPostID returns the Bluesky post id associated with the photo stored
// under path. It returns ErrNotFound when there is no association.
func (d *Database) LookupPostID(ctx context.Context, path string) (string, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("lookup_post_id", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var postID string
	err = d.db.GetContext(ctx, &postID, `
	SELECT bp.post_id
	FROM bluesky_posts bp
	JOIN imagenes i ON bp.image_id = i.id
	WHERE i.path = ?
	`, path)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNotFound
		return "", err
	}
	if err != nil {
		return "", err
	}
	return postID, nil
}

// GetCachedStats returns the cached engagement row for the photo stored
// under path, or ErrNotFound.
func (d *Database) GetCachedStats(ctx context.Context, path string) (*CachedStats, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_cached_stats", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var stats CachedStats
	err = d.db.GetContext(ctx, &stats, `
	SELECT bic.image_id,
	       COALESCE(bp.post_id, '') AS post_id,
	       COALESCE(bic.like_count, 0) AS like_count,
	       COALESCE(bic.comment_count, 0) AS comment_count,
	       COALESCE(bic.repost_count, 0) AS repost_count,
	       COALESCE(bic.last_updated, '') AS last_updated
	FROM bluesky_interactions_cache bic
	JOIN imagenes i ON bic.image_id = i.id
	LEFT JOIN bluesky_posts bp ON bp.image_id = bic.image_id
	WHERE i.path = ?
	`, path)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNotFound
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// ListPopular returns photos with non-zero cached engagement that are not
// flagged as inappropriate, taken on or after since. A zero since means
// no cutoff. Results are ordered by engagement score, then likes.
func (d *Database) ListPopular(ctx context.Context, since time.Time) ([]PopularPhoto, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_popular", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cutoff := ""
	if !since.IsZero() {
		cutoff = since.Format(SQLiteTimeLayout)
	}

	var rows []popularRow
	err = d.db.SelectContext(ctx, &rows, `
	SELECT`+photoColumns+`,
	       COALESCE(bic.like_count, 0) AS like_count,
	       COALESCE(bic.comment_count, 0) AS comment_count,
	       COALESCE(bic.repost_count, 0) AS repost_count,
	       bic.last_updated
	FROM imagenes i
	JOIN bluesky_interactions_cache bic ON i.id = bic.image_id
	LEFT JOIN image_analysis ia ON i.id = ia.image_id
	WHERE (ia.is_appropriate = 1 OR ia.is_appropriate IS NULL)
	  AND (bic.like_count > 0 OR bic.comment_count > 0 OR bic.repost_count > 0)
	  AND (? = '' OR i.date >= ?)
	ORDER BY (bic.like_count + bic.comment_count * 2 + bic.repost_count) DESC, bic.like_count DESC
	`, cutoff, cutoff)
	if err != nil {
		return nil, err
	}

	photos := make([]PopularPhoto, len(rows))
	for i, r := range rows {
		photos[i] = PopularPhoto{
			Photo:        r.toPhoto(),
			LikeCount:    r.LikeCount,
			CommentCount: r.CommentCount,
			RepostCount:  r.RepostCount,
			LastUpdated:  r.LastUpdated.String,
		}
	}
	return photos, nil
}

// ListForFeed returns the latest photos that have a description.
func (d *Database) ListForFeed(ctx context.Context, limit int) ([]Photo, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_feed", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var rows []photoRow
	err = d.db.SelectContext(ctx, &rows, `
	SELECT`+photoColumns+`
	FROM imagenes i
	LEFT JOIN image_analysis ia ON i.id = ia.image_id
	WHERE i.description IS NOT NULL AND i.description != ''
	ORDER BY i.date DESC
	LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}

	photos := make([]Photo, len(rows))
	for i, r := range rows {
		photos[i] = r.toPhoto()
	}
	return photos, nil
}

// GalleryStats counts photos, post associations and cached stats rows.
func (d *Database) GalleryStats(ctx context.Context) (GalleryStats, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("gallery_stats", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var stats GalleryStats
	err = d.db.GetContext(ctx, &stats, `
	SELECT
		(SELECT COUNT(*) FROM imagenes) AS total_photos,
		(SELECT COUNT(*) FROM bluesky_posts) AS total_posts,
		(SELECT COUNT(*) FROM bluesky_interactions_cache) AS cached_stats
	`)
	return stats, err
}

// TopByLikes returns the n photos with the most cached likes.
func (d *Database) TopByLikes(ctx context.Context, n int) ([]PopularPhoto, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("top_by_likes", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var rows []popularRow
	err = d.db.SelectContext(ctx, &rows, `
	SELECT`+photoColumns+`,
	       COALESCE(bic.like_count, 0) AS like_count,
	       COALESCE(bic.comment_count, 0) AS comment_count,
	       COALESCE(bic.repost_count, 0) AS repost_count,
	       bic.last_updated
	FROM imagenes i
	JOIN bluesky_interactions_cache bic ON i.id = bic.image_id
	LEFT JOIN image_analysis ia ON i.id = ia.image_id
	ORDER BY bic.like_count DESC
	LIMIT ?
	`, n)
	if err != nil {
		return nil, err
	}

	photos := make([]PopularPhoto, len(rows))
	for i, r := range rows {
		photos[i] = PopularPhoto{
			Photo:        r.toPhoto(),
			LikeCount:    r.LikeCount,
			CommentCount: r.CommentCount,
			RepostCount:  r.RepostCount,
			LastUpdated:  r.LastUpdated.String,
		}
	}
	return photos, nil
}
