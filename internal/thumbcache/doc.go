// Package thumbcache is the entry point for resolving a displayable
// thumbnail for a media item.
//
// A Service answers in order: the server-provided thumbnail, the persistent
// store under every identity of the item, and finally on-demand generation.
// Each item moves through uncached, pending, and then cached or failed;
// failed items are not retried within a session unless ForceRefresh is
// called.
//
// Concurrent requests for the same item share one generation. Generations
// across items are paced and capped, and run detached from the caller so a
// result is still persisted when the caller goes away.
//
// A Batch schedules generation for the items a view currently shows, in the
// order they were discovered, and stops delivering results once closed.
package thumbcache
