// Package filesystem wraps the os calls thumbcache makes against local video
// sources with retry logic for NFS stale file handle errors (ESTALE).
//
// Media libraries are frequently mounted over NFS. A file handle can go
// stale between the moment a source is resolved and the moment the decoder
// opens it; the operation usually succeeds when repeated after a short
// pause. Other errors are returned immediately.
//
// Metrics are reported through the Observer interface, set once at startup
// with SetObserver. When no observer is set, recording is skipped.
package filesystem
