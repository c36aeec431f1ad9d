// Package metrics provides Prometheus instrumentation for thumbcache.
//
// All metrics are prefixed with "thumbcache_".
//
// # Metric Categories
//
// ## Cache Metrics
//
//   - CacheLookupsTotal: lookups by result tier (server, direct, alias,
//     cross_reference, miss)
//   - CacheEntries, CacheAliases, CachePayloadBytes: store size gauges,
//     refreshed by the Collector
//   - CacheCleanupRemoved: entries removed by cleanup passes
//   - CacheMigrationsTotal: migration runs by outcome
//   - CacheCorruptBlobs: persisted blobs that failed to parse
//
// ## Generation Metrics
//
//   - GenerationsTotal: thumbnail generations by status
//   - GenerationDuration: wall time of a generation, including fallbacks
//   - GenerationsPending: items currently in the pending state
//   - GenerationsCoalesced: requests that joined an in-flight generation
//   - DecoderSignalsTotal: decoder signals observed by the generator
//
// ## HTTP and Filesystem Metrics
//
// Request counters for the diagnostics server and NFS retry counters for
// local video sources.
package metrics
