// Package main provides fotosctl, the maintenance tool for the gallery
// database.
//
// fotosctl works on a local, writable copy of fotos.db (--db or FOTOS_DB)
// and reads the rest of its settings from the same environment variables
// as the server. Commands:
//
//   - sync-stats [--test]: refresh Bluesky engagement rows older than 12h,
//     pausing 500ms between posts. Exits with status 1 when any post failed.
//   - cache-stats: cache coverage and the most liked photos
//   - update-tags, update-ai-tags: write the hashtag and element indexes
//   - feed [--atom]: write the feed of the latest photos
//   - add-photo <file>: copy an image in as the next numeric file name
//   - delete-photo <id> [--force]: remove a photo, asking first on a terminal
//   - link-post <photo> <post>: associate a photo with its Bluesky post
package main
