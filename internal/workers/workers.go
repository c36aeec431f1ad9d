package workers

import (
	"runtime"
)

// Count returns the number of workers for a task with the given
// CPU multiplier. A positive override replaces the computed value.
// A positive limit caps the result. The result is never below 1.
func Count(override int, multiplier float64, limit int) int {
	workers := override
	if workers <= 0 {
		// GOMAXPROCS is automatically set to container CPU limit in Go 1.19+
		workers = int(float64(runtime.GOMAXPROCS(0)) * multiplier)
	}

	if workers < 1 {
		workers = 1
	}
	if limit > 0 && workers > limit {
		workers = limit
	}

	return workers
}

// ForDecode returns the concurrency cap for video decodes (1.5 per CPU).
func ForDecode(override, limit int) int {
	return Count(override, 1.5, limit)
}
