// Package store persists thumbnail entries in a flat key-value backend.
//
// The whole cache lives in one serialized Record under a versioned
// namespace key. A Record holds canonical entries plus an alias index that
// maps every other known identity of a video to its canonical key; each
// entry also lists those identities in CrossReferenceIDs so that lookups
// still resolve when the alias index is incomplete (for example after a
// migration from the legacy namespace).
//
// Every write is a read-modify-write of the full Record. Writers in the same
// process are serialized; across processes the last write wins. A blob that
// fails to parse is treated as an empty store and is replaced by the next
// write.
//
// Backends:
//   - MemoryBackend: in-process map (go-cache), used for tests and ephemeral runs
//   - SQLiteBackend: single-table SQLite database in WAL mode
//   - RedisBackend: plain GET/SET/DEL against a Redis server
package store
