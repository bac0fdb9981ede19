// Package logging provides the leveled logger used across the fotos
// service and its admin CLI.
//
// Levels, from most to least verbose:
//   - DEBUG: loader progress, cache hits, per-request lookups
//   - INFO: startup, configuration, completed downloads
//   - WARN: degraded engagement lookups, recoverable I/O problems
//   - ERROR: failures that need an operator
//   - FATAL: unrecoverable startup errors (exits the process)
//
// The level comes from LOG_LEVEL, or DEBUG=true, and can be overridden
// with SetLevel.
package logging
