package memory

import (
	"math"
	"runtime/debug"

	"thumbcache/internal/logging"

	"github.com/caarlos0/env/v11"
	"github.com/dustin/go-humanize"
)

// DefaultMemoryRatio is the share of the container limit given to the Go
// heap. The rest is left for ffmpeg and ffprobe child processes.
const DefaultMemoryRatio = 0.75

// ConfigResult holds the result of memory configuration
type ConfigResult struct {
	// Configured indicates whether a Go memory limit is in effect
	Configured bool

	// Source is "GOMEMLIMIT", "MEMORY_LIMIT" or "none"
	Source string

	ContainerLimit int64
	GoMemLimit     int64
	Ratio          float64
}

type envLimits struct {
	GoMemLimit  string  `env:"GOMEMLIMIT"`
	MemoryLimit int64   `env:"MEMORY_LIMIT"`
	MemoryRatio float64 `env:"MEMORY_RATIO"`
}

// ConfigureFromEnv sets the Go memory limit from MEMORY_LIMIT (bytes, usually
// the Kubernetes Downward API) scaled by MEMORY_RATIO. An explicit GOMEMLIMIT
// wins. Call it before significant allocations.
func ConfigureFromEnv() ConfigResult {
	var limits envLimits
	if err := env.Parse(&limits); err != nil {
		logging.Warn("Ignoring memory limit settings: %v", err)
		return ConfigResult{Source: "none"}
	}
	return configure(limits, debug.SetMemoryLimit)
}

func configure(limits envLimits, setLimit func(int64) int64) ConfigResult {
	if limits.GoMemLimit != "" {
		result := ConfigResult{Source: "GOMEMLIMIT"}
		if limit := setLimit(-1); limit > 0 && limit < math.MaxInt64 {
			result.Configured = true
			result.GoMemLimit = limit
		}
		logging.Info("GOMEMLIMIT set via environment: %s", limits.GoMemLimit)
		return result
	}

	if limits.MemoryLimit <= 0 {
		logging.Debug("MEMORY_LIMIT not set, GOMEMLIMIT will not be configured automatically")
		return ConfigResult{Source: "none"}
	}

	ratio := limits.MemoryRatio
	if ratio == 0 {
		ratio = DefaultMemoryRatio
	} else if ratio < 0 || ratio > 1 {
		logging.Warn("MEMORY_RATIO %.2f out of range (0.0-1.0), using default %.2f", ratio, DefaultMemoryRatio)
		ratio = DefaultMemoryRatio
	}

	goMemLimit := int64(float64(limits.MemoryLimit) * ratio)
	setLimit(goMemLimit)

	logging.Info("Configured GOMEMLIMIT: %s (%.1f%% of %s container limit)",
		humanize.IBytes(uint64(goMemLimit)), ratio*100, humanize.IBytes(uint64(limits.MemoryLimit)))

	return ConfigResult{
		Configured:     true,
		Source:         "MEMORY_LIMIT",
		ContainerLimit: limits.MemoryLimit,
		GoMemLimit:     goMemLimit,
		Ratio:          ratio,
	}
}
