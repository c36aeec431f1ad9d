package handlers

import (
	"net/http"

	"thumbcache/internal/logging"
	"thumbcache/internal/metrics"
	"thumbcache/internal/store"
)

// DebugResponse is the full persisted record plus derived counts.
type DebugResponse struct {
	Namespace string        `json:"namespace"`
	Record    store.Record  `json:"record"`
	Stats     metrics.Stats `json:"stats"`
}

// DebugDump returns the raw cache record.
func (h *Handlers) DebugDump(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, DebugResponse{
		Namespace: h.svc.Store().Namespace(),
		Record:    h.svc.DebugDump(r.Context()),
		Stats:     h.svc.GetStats(),
	})
}

// GetStats returns entry, alias and pending counts.
func (h *Handlers) GetStats(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, h.svc.GetStats())
}

// Cleanup removes expired entries.
func (h *Handlers) Cleanup(w http.ResponseWriter, r *http.Request) {
	removed, err := h.svc.CleanupExpired(r.Context())
	if err != nil {
		logging.Error("cache cleanup failed: %v", err)
		writeJSONError(w, "cleanup failed", http.StatusInternalServerError)
		return
	}
	respondJSON(w, map[string]int{"removed": removed})
}

// Migrate copies entries from the legacy namespace.
func (h *Handlers) Migrate(w http.ResponseWriter, r *http.Request) {
	migrated, err := h.svc.MigrateIfNeeded(r.Context())
	if err != nil {
		logging.Error("cache migration failed: %v", err)
		writeJSONError(w, "migration failed", http.StatusInternalServerError)
		return
	}
	respondJSON(w, map[string]int{"migrated": migrated})
}

// ClearCache drops every entry.
func (h *Handlers) ClearCache(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Clear(r.Context()); err != nil {
		logging.Error("cache clear failed: %v", err)
		writeJSONError(w, "clear failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
