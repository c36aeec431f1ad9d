package metrics

import (
	"time"

	"thumbcache/internal/logging"
)

// StatsProvider interface for collecting stats
type StatsProvider interface {
	GetStats() Stats
}

// Stats holds the current cache statistics
type Stats struct {
	Entries      int   `json:"entries"`
	Aliases      int   `json:"aliases"`
	PayloadBytes int64 `json:"payloadBytes"`
	Pending      int   `json:"pending"`
}

// Collector periodically collects and updates metrics
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection
func (c *Collector) Stop() {
	close(c.stopChan)
}

func (c *Collector) collectLoop() {
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.statsProvider == nil {
		return
	}

	stats := c.statsProvider.GetStats()

	CacheEntries.Set(float64(stats.Entries))
	CacheAliases.Set(float64(stats.Aliases))
	CachePayloadBytes.Set(float64(stats.PayloadBytes))
	GenerationsPending.Set(float64(stats.Pending))

	logging.Debug("Metrics collected: entries=%d, aliases=%d, bytes=%d, pending=%d",
		stats.Entries, stats.Aliases, stats.PayloadBytes, stats.Pending)
}
