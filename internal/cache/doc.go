// Package cache provides the response cache used by the HTTP handlers for
// derived views such as the popular ranking and the feeds.
//
// Values are stored as JSON under a "fotos:" prefix. Redis is used when
// REDIS_URL points at a reachable server, so several replicas share one
// cache; otherwise each process keeps its own in memory.
package cache
