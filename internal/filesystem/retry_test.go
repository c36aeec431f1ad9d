package filesystem

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"
)

type countingObserver struct {
	attempts, successes, failures, stale int
}

func (c *countingObserver) ObserveRetryAttempt(string) { c.attempts++ }
func (c *countingObserver) ObserveRetrySuccess(string) { c.successes++ }
func (c *countingObserver) ObserveRetryFailure(string) { c.failures++ }
func (c *countingObserver) ObserveStaleError(string)   { c.stale++ }

// stubSleep records requested backoffs instead of sleeping.
func stubSleep(t *testing.T) *[]time.Duration {
	t.Helper()
	var slept []time.Duration
	original := sleep
	sleep = func(d time.Duration) { slept = append(slept, d) }
	t.Cleanup(func() { sleep = original })
	return &slept
}

func withObserver(t *testing.T) *countingObserver {
	t.Helper()
	obs := &countingObserver{}
	original := defaultObserver
	SetObserver(obs)
	t.Cleanup(func() { defaultObserver = original })
	return obs
}

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	if config.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", config.MaxRetries)
	}
	if config.InitialBackoff != 50*time.Millisecond {
		t.Errorf("InitialBackoff = %v, want 50ms", config.InitialBackoff)
	}
	if config.MaxBackoff != 500*time.Millisecond {
		t.Errorf("MaxBackoff = %v, want 500ms", config.MaxBackoff)
	}
}

func TestIsNFSStaleError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"ESTALE error", syscall.ESTALE, true},
		{"wrapped ESTALE", &fs.PathError{Op: "stat", Path: "/x", Err: syscall.ESTALE}, true},
		{"ENOENT error", syscall.ENOENT, false},
		{"generic error", os.ErrNotExist, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isNFSStaleError(tt.err); got != tt.want {
				t.Errorf("isNFSStaleError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWithRetry_RecoversFromStaleHandle(t *testing.T) {
	slept := stubSleep(t)
	obs := withObserver(t)

	calls := 0
	got, err := withRetry("stat", "/nfs/video.mp4", RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     15 * time.Millisecond,
	}, func() (int, error) {
		calls++
		if calls < 3 {
			return 0, syscall.ESTALE
		}
		return 42, nil
	})

	if err != nil {
		t.Fatalf("withRetry() error = %v", err)
	}
	if got != 42 {
		t.Errorf("withRetry() = %d, want 42", got)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	want := []time.Duration{10 * time.Millisecond, 15 * time.Millisecond}
	if len(*slept) != len(want) {
		t.Fatalf("slept %v, want %v", *slept, want)
	}
	for i := range want {
		if (*slept)[i] != want[i] {
			t.Errorf("backoff[%d] = %v, want %v (capped)", i, (*slept)[i], want[i])
		}
	}
	if obs.successes != 1 || obs.stale != 2 || obs.attempts != 2 || obs.failures != 0 {
		t.Errorf("observer = %+v", *obs)
	}
}

func TestWithRetry_GivesUpAfterMaxRetries(t *testing.T) {
	slept := stubSleep(t)
	obs := withObserver(t)

	calls := 0
	_, err := withRetry("open", "/nfs/video.mp4", RetryConfig{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond},
		func() (string, error) {
			calls++
			return "", syscall.ESTALE
		})

	if !errors.Is(err, syscall.ESTALE) {
		t.Errorf("error = %v, want ESTALE", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3 (1 + 2 retries)", calls)
	}
	if len(*slept) != 2 {
		t.Errorf("slept %d times, want 2 (no sleep after last attempt)", len(*slept))
	}
	if obs.failures != 1 {
		t.Errorf("failures = %d, want 1", obs.failures)
	}
}

func TestStatWithRetry_Success(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "clip.mp4")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	info, err := StatWithRetry(testFile, DefaultRetryConfig())
	if err != nil {
		t.Fatalf("StatWithRetry() error = %v, want nil", err)
	}
	if info.Size() != 4 {
		t.Errorf("FileInfo.Size() = %d, want 4", info.Size())
	}
}

func TestStatWithRetry_NotExistFailsFast(t *testing.T) {
	slept := stubSleep(t)

	_, err := StatWithRetry(filepath.Join(t.TempDir(), "missing.mp4"), DefaultRetryConfig())
	if !os.IsNotExist(err) {
		t.Errorf("StatWithRetry() error = %v, want os.IsNotExist", err)
	}
	if len(*slept) != 0 {
		t.Errorf("non-ESTALE error should not be retried, slept %v", *slept)
	}
}

func TestOpenWithRetry_Success(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(testFile, []byte("data"), 0o644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	f, err := OpenWithRetry(testFile, DefaultRetryConfig())
	if err != nil {
		t.Fatalf("OpenWithRetry() error = %v", err)
	}
	defer f.Close()

	buf := make([]byte, 4)
	if _, err := f.Read(buf); err != nil || string(buf) != "data" {
		t.Errorf("read %q, %v; want \"data\"", buf, err)
	}
}
