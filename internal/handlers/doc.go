// Package handlers provides the HTTP API of the thumbnail cache server.
//
// It includes handlers for:
//   - Thumbnail lookup, generation, refresh and upload
//   - Cache maintenance (cleanup, migration, debug dump, clear)
//   - Health, version and Prometheus metrics endpoints
package handlers
