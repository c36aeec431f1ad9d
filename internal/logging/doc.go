// Package logging provides the leveled logger used across thumbcache.
//
// Levels, lowest first:
//   - DEBUG: identity resolution details, decoder signals, store hits
//   - INFO: startup configuration, cleanup and migration summaries
//   - WARN: degraded paths (corrupt store blob, generation fallback)
//   - ERROR: backend write failures
//
// The level comes from the DEBUG or LOG_LEVEL environment variables the
// first time it is needed, and can be overridden with SetLevel.
package logging
