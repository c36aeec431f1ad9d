package handlers

import (
	"errors"
	"net/http"

	"thumbcache/internal/logging"
	"thumbcache/internal/thumbcache"

	"github.com/gorilla/mux"
)

// LookupThumbnail resolves a descriptor without generating.
func (h *Handlers) LookupThumbnail(w http.ResponseWriter, r *http.Request) {
	var d thumbcache.MediaDescriptor
	if !decodeDescriptor(w, r, &d) {
		return
	}
	respondJSON(w, h.svc.Lookup(r.Context(), d))
}

// EnsureThumbnail resolves a descriptor, generating on a miss. A client that
// disconnects early gets nothing, but the generation still completes and is
// cached.
func (h *Handlers) EnsureThumbnail(w http.ResponseWriter, r *http.Request) {
	var d thumbcache.MediaDescriptor
	if !decodeDescriptor(w, r, &d) {
		return
	}
	respondJSON(w, h.svc.Ensure(r.Context(), d))
}

// RefreshThumbnail regenerates regardless of cache state.
func (h *Handlers) RefreshThumbnail(w http.ResponseWriter, r *http.Request) {
	var d thumbcache.MediaDescriptor
	if !decodeDescriptor(w, r, &d) {
		return
	}
	respondJSON(w, h.svc.ForceRefresh(r.Context(), d))
}

// SaveRequest stores an externally produced thumbnail.
type SaveRequest struct {
	Media thumbcache.MediaDescriptor `json:"media"`
	Data  string                     `json:"data"`
}

// SaveThumbnail persists a client-supplied thumbnail.
func (h *Handlers) SaveThumbnail(w http.ResponseWriter, r *http.Request) {
	var req SaveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Media.PrimaryURL == "" && req.Media.AlternateURL == "" {
		writeJSONError(w, "descriptor has no URL", http.StatusBadRequest)
		return
	}

	if err := h.svc.Save(r.Context(), req.Media, req.Data); err != nil {
		if errors.Is(err, thumbcache.ErrInvalidPayload) {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		logging.Error("failed to save thumbnail: %v", err)
		writeJSONError(w, "failed to save thumbnail", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetThumbnailState reports the session state of one item.
func (h *Handlers) GetThumbnailState(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	respondJSON(w, map[string]string{
		"id":    id,
		"state": string(h.svc.State(id)),
	})
}
