package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"thumbcache/internal/config"
	"thumbcache/internal/logging"
)

const (
	statusHealthy  = "healthy"
	statusDegraded = "degraded"
)

// healthProbeKey is read, never written, to check the backend answers.
const healthProbeKey = "__thumbcache_health__"

// HealthResponse contains the health check response
type HealthResponse struct {
	Status       string `json:"status"`
	Version      string `json:"version"`
	Uptime       string `json:"uptime"`
	Backend      string `json:"backend"`
	BackendError string `json:"backendError,omitempty"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`

	// Cache summary
	Entries int `json:"entries"`
	Pending int `json:"pending"`
}

// HealthCheck returns the health status of the service
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:       statusHealthy,
		Version:      config.Version,
		Uptime:       time.Since(h.started).Round(time.Second).String(),
		Backend:      h.backend,
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if _, _, err := h.svc.Store().Backend().Get(ctx, healthProbeKey); err != nil {
		logging.Warn("Health check: backend %s unavailable: %v", h.backend, err)
		response.Status = statusDegraded
		response.BackendError = err.Error()
	} else {
		stats := h.svc.GetStats()
		response.Entries = stats.Entries
		response.Pending = stats.Pending
	}

	w.Header().Set("Content-Type", "application/json")
	if response.Status != statusHealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	writeJSON(w, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{
			"status": "alive",
		})
	}
}
