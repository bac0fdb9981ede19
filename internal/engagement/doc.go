// Package engagement connects gallery photos to their Bluesky threads.
//
// A photo reference (a path, a bare numeric id or a gallery URL) is
// resolved to candidate storage paths and then to a post id, with results
// cached for the lifetime of the Service. Engagement counts come from the
// interactions cache table when it was refreshed within FreshnessWindow,
// and from the Bluesky AppView otherwise.
//
// Lookups never fail towards the caller: a photo without a thread, an
// unreachable API or a malformed response all produce an empty Stats.
//
// Refresher implements the offline job that keeps the cache table warm.
package engagement
