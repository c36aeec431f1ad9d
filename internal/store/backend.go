package store

import (
	"context"
	"errors"
	"time"

	"thumbcache/internal/metrics"
)

// ErrBackendUnavailable is returned when a backend cannot be reached.
var ErrBackendUnavailable = errors.New("store backend unavailable")

// Backend is a flat string key-value store.
type Backend interface {
	// Name identifies the backend in logs and metrics.
	Name() string
	// Get returns found=false with a nil error when key is absent.
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// observeOp records backend operation metrics
func observeOp(backend, op string, start time.Time, err error) {
	metrics.StoreOperationDuration.WithLabelValues(backend, op).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.StoreOperationErrors.WithLabelValues(backend, op).Inc()
	}
}
