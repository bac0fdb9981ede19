// Package handlers provides the HTTP handlers of the gallery.
//
// It includes handlers for:
//   - The photo list with tag, element, search and week filters
//   - Popular photos by period and sort
//   - Bluesky engagement stats and comment threads
//   - The hashtag and element indexes
//   - RSS and Atom feeds
//   - Photo files
//   - Health, readiness and version endpoints
//
// Every handler that needs the database obtains it from a DatabaseProvider,
// so the first request triggers the download. A failed load answers 503;
// engagement lookups degrade to empty results instead.
package handlers
