package workers

import (
	"runtime"
	"testing"
)

func TestCount(t *testing.T) {
	availableCPU := runtime.GOMAXPROCS(0)

	tests := []struct {
		name       string
		override   int
		multiplier float64
		limit      int
		minExpect  int
		maxExpect  int
	}{
		{"CPU-bound (1.0x)", 0, 1.0, 0, 1, availableCPU},
		{"I/O-bound (2.0x)", 0, 2.0, 0, 1, availableCPU * 2},
		{"Limit lower than calculated", 0, 2.0, 2, 1, 2},
		{"Very low multiplier", 0, 0.01, 0, 1, 1},
		{"Override wins", 8, 1.0, 0, 8, 8},
		{"Override capped by limit", 20, 1.0, 10, 10, 10},
		{"Override below limit", 5, 1.0, 10, 5, 5},
		{"Negative override ignored", -5, 0.01, 0, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Count(tt.override, tt.multiplier, tt.limit)
			if got < tt.minExpect || got > tt.maxExpect {
				t.Errorf("Count(%d, %v, %d) = %d, want in [%d, %d]",
					tt.override, tt.multiplier, tt.limit, got, tt.minExpect, tt.maxExpect)
			}
		})
	}
}

func TestForDecode(t *testing.T) {
	tests := []struct {
		name     string
		override int
		limit    int
		check    func(int) bool
	}{
		{"Limit of 1", 0, 1, func(got int) bool { return got == 1 }},
		{"Limit of 4", 0, 4, func(got int) bool { return got >= 1 && got <= 4 }},
		{"Override 3", 3, 0, func(got int) bool { return got == 3 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ForDecode(tt.override, tt.limit); !tt.check(got) {
				t.Errorf("ForDecode(%d, %d) = %d", tt.override, tt.limit, got)
			}
		})
	}
}
