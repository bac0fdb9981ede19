// Package database provides access to the gallery SQLite file (fotos.db).
//
// The web service opens the file read-only after the loader has downloaded
// it; the admin CLI opens a local copy read-write to refresh the Bluesky
// stats cache and to add or remove photos.
//
// Tables:
//   - imagenes: one row per photo (path, date, author, description)
//   - image_analysis: AI description, tags and moderation flag
//   - bluesky_posts: photo to Bluesky post id
//   - bluesky_interactions_cache: likes, comments and reposts with the
//     time they were fetched
package database
