// Package memory keeps the thumbnail server inside its container memory
// limit.
//
// [ConfigureFromEnv] sets GOMEMLIMIT from MEMORY_LIMIT (bytes, typically from
// the Kubernetes Downward API) scaled by MEMORY_RATIO, leaving headroom for
// the ffmpeg and ffprobe processes each generation spawns. An explicit
// GOMEMLIMIT always wins.
//
// [Monitor] samples heap usage and pauses new generations once usage crosses
// the critical water mark, resuming when it falls back under the high water
// mark:
//
//	monitor := memory.NewMonitor(memory.DefaultConfig())
//	monitor.Start()
//	defer monitor.Stop()
//
//	if err := monitor.Wait(ctx); err != nil {
//	    return err
//	}
package memory
