// Package bluesky is a minimal client for the public Bluesky AppView.
//
// Only two unauthenticated endpoints are used: app.bsky.feed.getPosts for a
// post's counters and app.bsky.feed.getPostThread for its replies. Responses
// are read with gjson, so missing fields simply come back as zero values.
package bluesky
