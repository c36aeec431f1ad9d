/*
Package workers sizes the cap on concurrent thumbnail decodes.

Go sets GOMAXPROCS from the container CPU limit, while runtime.NumCPU()
reports the host. Sizing from GOMAXPROCS keeps a pod limited to 2 cores from
starting one ffmpeg process per host CPU when a large batch of videos becomes
visible at once.

	// Mixed workload: ffmpeg decodes (CPU) plus remote reads (I/O)
	n := workers.ForDecode(cfg.Workers, 4)

An explicit override (THUMBNAIL_WORKERS, read by the config package) wins
over the computed value but is still capped by the limit.
*/
package workers
