package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics(backend string) {
	for _, tier := range []string{"server", "direct", "alias", "cross_reference", "miss"} {
		CacheLookupsTotal.WithLabelValues(tier)
	}

	for _, outcome := range []string{"migrated", "skipped", "error"} {
		CacheMigrationsTotal.WithLabelValues(outcome)
	}

	for _, op := range []string{"get", "set", "delete"} {
		StoreOperationDuration.WithLabelValues(backend, op)
		StoreOperationErrors.WithLabelValues(backend, op)
	}

	for _, status := range []string{"success", "failed", "invalid", "timeout"} {
		GenerationsTotal.WithLabelValues(status)
	}

	for _, sig := range []string{"metadata", "metadata_error", "frame", "frame_error", "metadata_wait", "timeout"} {
		DecoderSignalsTotal.WithLabelValues(sig)
	}

	for _, tool := range []string{"ffprobe", "ffmpeg"} {
		FFmpegDuration.WithLabelValues(tool)
	}

	for _, op := range []string{"stat", "open"} {
		FilesystemRetryAttempts.WithLabelValues(op)
		FilesystemRetrySuccess.WithLabelValues(op)
		FilesystemRetryFailures.WithLabelValues(op)
		FilesystemStaleErrors.WithLabelValues(op)
	}
}
