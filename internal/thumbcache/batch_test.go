package thumbcache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"thumbcache/internal/store"
)

type delivery struct {
	d MediaDescriptor
	r Result
}

func collect() (func(MediaDescriptor, Result), func() []delivery, chan struct{}) {
	var mu sync.Mutex
	var got []delivery
	signal := make(chan struct{}, 64)
	onResult := func(d MediaDescriptor, r Result) {
		mu.Lock()
		got = append(got, delivery{d, r})
		mu.Unlock()
		signal <- struct{}{}
	}
	snapshot := func() []delivery {
		mu.Lock()
		defer mu.Unlock()
		return append([]delivery(nil), got...)
	}
	return onResult, snapshot, signal
}

func TestBatchDispatchesInDiscoveryOrder(t *testing.T) {
	gen := newStubGenerator()
	svc := New(store.New(store.NewMemoryBackend()), gen, Options{Workers: 4, PacingDelay: 20 * time.Millisecond})
	onResult, snapshot, signal := collect()

	b := svc.NewBatch(context.Background(), onResult)
	defer b.Close()

	urls := []string{"https://cdn/v/1.mp4", "https://cdn/v/2.mp4", "https://cdn/v/3.mp4"}
	if n := b.Request(video(urls[0]), MediaDescriptor{ID: "img", Kind: "image", PrimaryURL: "https://cdn/p/x.jpg"}, video(urls[1])); n != 2 {
		t.Errorf("first Request() queued %d, want 2", n)
	}
	if n := b.Request(video(urls[2]), video(urls[0])); n != 1 {
		t.Errorf("second Request() queued %d, want 1", n)
	}

	for i := 0; i < len(urls); i++ {
		select {
		case <-signal:
		case <-time.After(5 * time.Second):
			t.Fatalf("received %d results, want %d", i, len(urls))
		}
	}

	calls := gen.Calls()
	if len(calls) != len(urls) {
		t.Fatalf("generator calls = %v, want %d", calls, len(urls))
	}
	for i, url := range urls {
		if calls[i] != url {
			t.Errorf("dispatch %d = %s, want %s", i, calls[i], url)
		}
	}
	for _, got := range snapshot() {
		if got.r.Status != StatusGenerated || got.r.URL != payloadFor(got.d.PrimaryURL) {
			t.Errorf("result for %s = %+v", got.d.ID, got.r)
		}
	}
}

func TestBatchServesCachedWithoutGenerating(t *testing.T) {
	ctx := context.Background()
	gen := newStubGenerator()
	svc := newTestService(t, gen)
	d := video("https://cdn/v/cached.mp4")
	if err := svc.Save(ctx, d, validJPEG(t)); err != nil {
		t.Fatal(err)
	}

	onResult, snapshot, signal := collect()
	b := svc.NewBatch(ctx, onResult)
	defer b.Close()
	b.Request(d)

	select {
	case <-signal:
	case <-time.After(5 * time.Second):
		t.Fatal("no result delivered")
	}
	if got := snapshot(); got[0].r.Status != StatusCached {
		t.Errorf("result = %+v, want cached", got[0].r)
	}
	if calls := gen.Calls(); len(calls) != 0 {
		t.Errorf("generator calls = %v, want none", calls)
	}
}

func TestBatchCloseSuppressesCallbacks(t *testing.T) {
	gen := newStubGenerator()
	url := "https://cdn/v/slow.mp4"
	release := gen.gate(url)
	defer release()
	svc := newTestService(t, gen)
	onResult, snapshot, _ := collect()

	b := svc.NewBatch(context.Background(), onResult)
	b.Request(video(url))
	<-gen.started

	b.Close()
	release()

	waitFor(t, "generation to persist", func() bool { return svc.State(url) == StateCached })
	time.Sleep(20 * time.Millisecond)

	if got := snapshot(); len(got) != 0 {
		t.Errorf("callbacks after Close = %+v, want none", got)
	}
	if r := svc.Lookup(context.Background(), video(url)); r.Status != StatusCached {
		t.Errorf("Lookup() = %+v, want cached", r)
	}

	// Requests after Close are ignored.
	b.Request(video("https://cdn/v/late.mp4"))
	time.Sleep(20 * time.Millisecond)
	for _, c := range gen.Calls() {
		if c == "https://cdn/v/late.mp4" {
			t.Error("closed batch dispatched a new item")
		}
	}
	b.Close()
}

func TestBatchCloseWaitsForRunningCallback(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, newStubGenerator())
	d := video("https://cdn/v/held.mp4")
	if err := svc.Save(ctx, d, validJPEG(t)); err != nil {
		t.Fatal(err)
	}

	entered := make(chan struct{})
	unblock := make(chan struct{})
	var closed atomic.Bool
	var afterClose atomic.Int32
	b := svc.NewBatch(ctx, func(MediaDescriptor, Result) {
		close(entered)
		<-unblock
		if closed.Load() {
			afterClose.Add(1)
		}
	})
	b.Request(d)

	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("callback never ran")
	}

	closeDone := make(chan struct{})
	go func() {
		b.Close()
		closed.Store(true)
		close(closeDone)
	}()

	select {
	case <-closeDone:
		t.Error("Close returned while a callback was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(unblock)
	select {
	case <-closeDone:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return after the callback finished")
	}
	if n := afterClose.Load(); n != 0 {
		t.Errorf("%d callbacks ran past Close", n)
	}
}

func TestBatchDoesNotRetryFailedItems(t *testing.T) {
	gen := newStubGenerator()
	url := "https://cdn/v/broken.mp4"
	gen.fail[url] = true
	svc := newTestService(t, gen)
	onResult, snapshot, signal := collect()

	first := svc.NewBatch(context.Background(), onResult)
	defer first.Close()
	first.Request(video(url))
	<-signal

	second := svc.NewBatch(context.Background(), onResult)
	defer second.Close()
	second.Request(video(url))
	<-signal

	got := snapshot()
	if len(got) != 2 || got[0].r.Status != StatusFailed || got[1].r.Status != StatusFailed {
		t.Errorf("results = %+v, want two failures", got)
	}
	if calls := gen.Calls(); len(calls) != 1 {
		t.Errorf("generator called %d times, want 1", len(calls))
	}
}
