package handlers

import (
	"time"

	"thumbcache/internal/thumbcache"

	"github.com/gorilla/mux"
)

// maxBodyBytes bounds request bodies; saved thumbnails are inline data URIs.
const maxBodyBytes = 8 << 20

type Handlers struct {
	svc     *thumbcache.Service
	backend string
	started time.Time
}

func New(svc *thumbcache.Service, backend string) *Handlers {
	return &Handlers{
		svc:     svc,
		backend: backend,
		started: time.Now(),
	}
}

// Register adds every route to r.
func (h *Handlers) Register(r *mux.Router) {
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")
	r.Handle("/metrics", h.MetricsHandler()).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/thumbnails/lookup", h.LookupThumbnail).Methods("POST")
	api.HandleFunc("/thumbnails/ensure", h.EnsureThumbnail).Methods("POST")
	api.HandleFunc("/thumbnails/refresh", h.RefreshThumbnail).Methods("POST")
	api.HandleFunc("/thumbnails/batch", h.BatchThumbnails).Methods("POST")
	api.HandleFunc("/thumbnails", h.SaveThumbnail).Methods("PUT")
	api.HandleFunc("/thumbnails/state/{id}", h.GetThumbnailState).Methods("GET")

	api.HandleFunc("/cache/debug", h.DebugDump).Methods("GET")
	api.HandleFunc("/cache/stats", h.GetStats).Methods("GET")
	api.HandleFunc("/cache/cleanup", h.Cleanup).Methods("POST")
	api.HandleFunc("/cache/migrate", h.Migrate).Methods("POST")
	api.HandleFunc("/cache", h.ClearCache).Methods("DELETE")
}
