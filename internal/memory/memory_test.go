package memory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func newTestMonitor(limit int64, alloc *atomic.Uint64) *Monitor {
	m := NewMonitor(Config{
		LimitBytes:        limit,
		HighWaterMark:     0.7,
		CriticalWaterMark: 0.85,
		CheckInterval:     time.Hour,
	})
	m.readAlloc = alloc.Load
	return m
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.HighWaterMark >= cfg.CriticalWaterMark {
		t.Errorf("HighWaterMark %.2f should be below CriticalWaterMark %.2f", cfg.HighWaterMark, cfg.CriticalWaterMark)
	}
	if cfg.CheckInterval != 5*time.Second {
		t.Errorf("CheckInterval = %v, want 5s", cfg.CheckInterval)
	}
}

func TestMonitorPausesAndResumes(t *testing.T) {
	var alloc atomic.Uint64
	m := newTestMonitor(1000, &alloc)
	defer m.Stop()

	tests := []struct {
		alloc      uint64
		wantPaused bool
	}{
		{500, false},
		{849, false},
		{850, true},
		// Between the marks the state holds.
		{750, true},
		{699, false},
		{800, false},
	}
	for _, tt := range tests {
		alloc.Store(tt.alloc)
		m.sample()
		if got := m.IsPaused(); got != tt.wantPaused {
			t.Errorf("alloc %d: paused = %v, want %v", tt.alloc, got, tt.wantPaused)
		}
	}
	if got := m.Usage(); got != 0.8 {
		t.Errorf("Usage() = %v, want 0.8", got)
	}
}

func TestMonitorWait(t *testing.T) {
	var alloc atomic.Uint64
	m := newTestMonitor(1000, &alloc)
	defer m.Stop()

	if err := m.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() while idle = %v", err)
	}

	alloc.Store(900)
	m.sample()

	done := make(chan error, 1)
	go func() { done <- m.Wait(context.Background()) }()

	select {
	case err := <-done:
		t.Fatalf("Wait() returned %v while paused", err)
	case <-time.After(20 * time.Millisecond):
	}

	alloc.Store(100)
	m.sample()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Wait() after resume = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait() did not return after resume")
	}
}

func TestMonitorWaitEndsEarly(t *testing.T) {
	var alloc atomic.Uint64
	alloc.Store(990)

	t.Run("context", func(t *testing.T) {
		m := newTestMonitor(1000, &alloc)
		defer m.Stop()
		m.sample()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		if err := m.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Wait() = %v, want deadline exceeded", err)
		}
	})

	t.Run("stop", func(t *testing.T) {
		m := newTestMonitor(1000, &alloc)
		m.sample()
		m.Stop()
		m.Stop()
		if err := m.Wait(context.Background()); !errors.Is(err, ErrStopped) {
			t.Errorf("Wait() = %v, want ErrStopped", err)
		}
	})
}

func TestConfigure(t *testing.T) {
	tests := []struct {
		name       string
		limits     envLimits
		current    int64
		wantSource string
		wantLimit  int64
		wantSet    bool
	}{
		{"nothing set", envLimits{}, 0, "none", 0, false},
		{"explicit GOMEMLIMIT", envLimits{GoMemLimit: "512MiB", MemoryLimit: 1 << 30}, 512 << 20, "GOMEMLIMIT", 512 << 20, false},
		{"container limit default ratio", envLimits{MemoryLimit: 1000}, 0, "MEMORY_LIMIT", 750, true},
		{"custom ratio", envLimits{MemoryLimit: 1000, MemoryRatio: 0.5}, 0, "MEMORY_LIMIT", 500, true},
		{"ratio out of range", envLimits{MemoryLimit: 1000, MemoryRatio: 1.5}, 0, "MEMORY_LIMIT", 750, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var set int64 = -1
			setLimit := func(v int64) int64 {
				if v < 0 {
					return tt.current
				}
				set = v
				return tt.current
			}

			res := configure(tt.limits, setLimit)
			if res.Source != tt.wantSource || res.GoMemLimit != tt.wantLimit {
				t.Errorf("configure() = %+v, want source %s limit %d", res, tt.wantSource, tt.wantLimit)
			}
			if tt.wantSet != (set == tt.wantLimit) {
				t.Errorf("limit applied = %d, want applied=%v", set, tt.wantSet)
			}
		})
	}
}
