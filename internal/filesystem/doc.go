/*
Package filesystem wraps the handful of file operations the gallery performs
on shared volumes (the photo files directory, the database cache directory)
with retry logic for NFS stale file handle errors (ESTALE).

Operations that fail with any other error return immediately. ESTALE
failures are retried with exponential backoff:

	f, err := filesystem.OpenWithRetry(path, filesystem.DefaultRetryConfig())

WriteFileAtomic writes through a temporary file and a rename, so the loader
and the admin CLI never leave a half-written database or index behind.

Metrics are reported through an Observer installed with SetObserver; volume
labels come from a VolumeResolver installed with SetDefaultVolumeResolver.
*/
package filesystem
