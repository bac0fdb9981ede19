// Package loader fetches the prebuilt gallery database once per process and
// hands every caller the same read-only handle.
//
// The database may come from an HTTP(S) URL, a local or NFS path, or an S3
// object (see NewSource). Loading is single-flight: while one download is
// running, other callers wait for its outcome. A failed load leaves nothing
// behind, so the next Get starts a fresh attempt.
package loader
