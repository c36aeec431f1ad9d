package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbcache_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "thumbcache_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "thumbcache_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Cache metrics
var (
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbcache_cache_lookups_total",
			Help: "Total number of thumbnail lookups by resolving tier",
		},
		[]string{"tier"}, // "server", "direct", "alias", "cross_reference", "miss"
	)

	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "thumbcache_cache_entries",
			Help: "Number of canonical thumbnail entries in the store",
		},
	)

	CacheAliases = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "thumbcache_cache_aliases",
			Help: "Number of alias keys pointing at canonical entries",
		},
	)

	CachePayloadBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "thumbcache_cache_payload_bytes",
			Help: "Total size of stored thumbnail payloads in bytes",
		},
	)

	CacheCleanupRemoved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "thumbcache_cache_cleanup_removed_total",
			Help: "Total number of entries removed by cleanup passes",
		},
	)

	CacheMigrationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbcache_cache_migrations_total",
			Help: "Total number of namespace migration runs by outcome",
		},
		[]string{"outcome"}, // "migrated", "skipped", "error"
	)

	CacheCorruptBlobs = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "thumbcache_cache_corrupt_blobs_total",
			Help: "Total number of persisted blobs that failed to parse",
		},
	)

	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "thumbcache_store_operation_duration_seconds",
			Help:    "Backend operation duration in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"backend", "operation"},
	)

	StoreOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbcache_store_operation_errors_total",
			Help: "Total number of failed backend operations",
		},
		[]string{"backend", "operation"},
	)
)

// Generation metrics
var (
	GenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbcache_generations_total",
			Help: "Total number of thumbnail generations",
		},
		[]string{"status"}, // "success", "failed", "invalid", "timeout"
	)

	GenerationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "thumbcache_generation_duration_seconds",
			Help:    "Thumbnail generation duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		},
	)

	GenerationsPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "thumbcache_generations_pending",
			Help: "Number of items with a generation in flight",
		},
	)

	GenerationsCoalesced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "thumbcache_generations_coalesced_total",
			Help: "Total number of requests that joined an in-flight generation",
		},
	)

	DecoderSignalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbcache_decoder_signals_total",
			Help: "Total number of decoder signals observed by the generator",
		},
		[]string{"signal"}, // "metadata", "metadata_error", "frame", "frame_error", "metadata_wait", "timeout"
	)

	FFmpegDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "thumbcache_ffmpeg_duration_seconds",
			Help:    "Duration of ffmpeg/ffprobe invocations in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"tool"}, // "ffprobe", "ffmpeg"
	)
)

// Filesystem retry metrics
var (
	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbcache_filesystem_retry_attempts_total",
			Help: "Total number of filesystem retry attempts after stale file handle errors",
		},
		[]string{"operation"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbcache_filesystem_retry_success_total",
			Help: "Total number of filesystem operations that succeeded after a retry",
		},
		[]string{"operation"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbcache_filesystem_retry_failures_total",
			Help: "Total number of filesystem operations that failed after all retries",
		},
		[]string{"operation"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbcache_filesystem_stale_errors_total",
			Help: "Total number of ESTALE errors observed",
		},
		[]string{"operation"},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "thumbcache_memory_usage_ratio",
			Help: "Heap usage as a ratio of the configured memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "thumbcache_memory_paused",
			Help: "1 while thumbnail generation is paused for memory pressure",
		},
	)

	MemoryPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "thumbcache_memory_pauses_total",
			Help: "Total number of times generation was paused for memory pressure",
		},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "thumbcache_app_info",
			Help: "Application information",
		},
		[]string{"version", "backend", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, backend, goVersion string) {
	AppInfo.WithLabelValues(version, backend, goVersion).Set(1)
}
