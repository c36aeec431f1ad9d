// Package middleware provides HTTP middleware for the thumbnail cache server.
//
// It includes:
//   - Request logging in W3C Extended Log Format
//   - Prometheus request metrics labeled by route template
//   - gzip compression for JSON responses
package middleware
