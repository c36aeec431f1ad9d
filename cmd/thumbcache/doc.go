// Command thumbcache runs the video thumbnail cache.
//
// The serve subcommand starts the HTTP API: thumbnails are looked up under
// every identity of a media item (the URL with query parameters stripped,
// the last path segment, the file name without its extension) and generated
// with FFmpeg on a miss. Generated thumbnails are JPEG data URIs stored in a
// single record in the configured backend (memory, SQLite or Redis).
//
// The remaining subcommands operate on the same store from the shell:
//
//	thumbcache generate https://cdn.example.com/clip.mp4?sig=abc
//	thumbcache lookup ./clip.mp4
//	thumbcache dump --json
//	thumbcache cleanup --max-age 72h
//	thumbcache migrate
//	thumbcache clear --yes
//
// Configuration is read from the environment and an optional .env file:
//
//   - STORE_BACKEND: memory, sqlite or redis (default: sqlite)
//   - CACHE_DIR: directory for the SQLite database and spooled sources
//   - REDIS_ADDR, REDIS_PASSWORD, REDIS_DB: Redis connection
//   - CACHE_NAMESPACE, LEGACY_NAMESPACE: record keys
//   - RETENTION: age after which entries are cleaned up (default: 168h)
//   - GENERATION_TIMEOUT, METADATA_WAIT: generation limits
//   - PACING_DELAY, THUMBNAIL_WORKERS: generation throughput
//   - CLEANUP_INTERVAL: how often the server removes expired entries
//   - PORT: HTTP port (default: 8080)
//   - LOG_LEVEL: debug, info, warn or error
package main
