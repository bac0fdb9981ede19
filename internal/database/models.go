package database

import (
	"database/sql"
	"encoding/json"
	"strings"
)

// Photo is a row of imagenes joined with its optional AI analysis.
type Photo struct {
	ID            int64    `json:"id"`
	Path          string   `json:"path"`
	Date          string   `json:"date"`
	Author        string   `json:"author,omitempty"`
	Description   string   `json:"description,omitempty"`
	AIDescription string   `json:"aiDescription,omitempty"`
	AITags        []string `json:"aiTags,omitempty"`
	// IsAppropriate is nil when the photo has not been analysed.
	IsAppropriate *bool `json:"isAppropriate,omitempty"`
}

// Flagged reports whether moderation marked the photo as inappropriate.
func (p Photo) Flagged() bool {
	return p.IsAppropriate != nil && !*p.IsAppropriate
}

// PostAssociation links a photo to its Bluesky post.
type PostAssociation struct {
	ImageID int64  `db:"image_id" json:"imageId"`
	PostID  string `db:"post_id" json:"postId"`
	Path    string `db:"path" json:"path"`
	// LastUpdated is empty when the post has no cached stats row.
	LastUpdated string `db:"last_updated" json:"lastUpdated,omitempty"`
}

// CachedStats is a row of bluesky_interactions_cache. PostID is empty when
// the photo has cached stats but no post association.
type CachedStats struct {
	ImageID      int64  `db:"image_id" json:"imageId"`
	PostID       string `db:"post_id" json:"postId,omitempty"`
	LikeCount    int    `db:"like_count" json:"likeCount"`
	CommentCount int    `db:"comment_count" json:"commentCount"`
	RepostCount  int    `db:"repost_count" json:"repostCount"`
	LastUpdated  string `db:"last_updated" json:"lastUpdated"`
}

// PopularPhoto is a photo with non-zero cached engagement.
type PopularPhoto struct {
	Photo
	LikeCount    int    `json:"likeCount"`
	CommentCount int    `json:"commentCount"`
	RepostCount  int    `json:"repostCount"`
	LastUpdated  string `json:"lastUpdated,omitempty"`
}

// EngagementScore weighs comments double.
func (p PopularPhoto) EngagementScore() int {
	return p.LikeCount + 2*p.CommentCount + p.RepostCount
}

// GalleryStats summarises the contents of the database.
type GalleryStats struct {
	TotalPhotos int `db:"total_photos" json:"totalPhotos"`
	TotalPosts  int `db:"total_posts" json:"totalPosts"`
	CachedStats int `db:"cached_stats" json:"cachedStats"`
}

// photoRow is the scan target for photo queries.
type photoRow struct {
	ID            int64          `db:"id"`
	Path          string         `db:"path"`
	Date          string         `db:"date"`
	Author        sql.NullString `db:"author"`
	Description   sql.NullString `db:"description"`
	IsAppropriate sql.NullInt64  `db:"is_appropriate"`
	AIDescription sql.NullString `db:"ai_description"`
	AITags        sql.NullString `db:"ai_tags"`
}

func (r photoRow) toPhoto() Photo {
	p := Photo{
		ID:            r.ID,
		Path:          r.Path,
		Date:          r.Date,
		Author:        r.Author.String,
		Description:   r.Description.String,
		AIDescription: r.AIDescription.String,
		AITags:        parseTags(r.AITags.String),
	}
	if r.IsAppropriate.Valid {
		ok := r.IsAppropriate.Int64 == 1
		p.IsAppropriate = &ok
	}
	return p
}

type popularRow struct {
	photoRow
	LikeCount    int            `db:"like_count"`
	CommentCount int            `db:"comment_count"`
	RepostCount  int            `db:"repost_count"`
	LastUpdated  sql.NullString `db:"last_updated"`
}

// parseTags decodes the JSON array stored in image_analysis.tags. Invalid
// documents yield no tags.
func parseTags(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return nil
	}
	return tags
}
