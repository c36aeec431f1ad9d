// Package config loads application configuration from environment variables
// (optionally seeded from a .env file) and logs the startup sequence.
//
// Environment variables:
//   - STORE_BACKEND: memory, sqlite (default) or redis
//   - CACHE_DIR: directory for the SQLite database and spooled sources
//   - REDIS_ADDR, REDIS_PASSWORD, REDIS_DB: Redis connection
//   - CACHE_NAMESPACE, LEGACY_NAMESPACE: store keys
//   - RETENTION: age after which entries are cleaned up (default 168h)
//   - GENERATION_TIMEOUT, METADATA_WAIT: generator limits
//   - PACING_DELAY, THUMBNAIL_WORKERS: generation throughput
//   - CLEANUP_INTERVAL: how often the server runs cleanup
//   - PORT, LOG_STATIC_FILES, LOG_HEALTH_CHECKS: HTTP server
package config
