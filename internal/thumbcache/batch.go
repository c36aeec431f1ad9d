package thumbcache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"thumbcache/internal/logging"
)

// Batch schedules thumbnails for the items of one view. Items are
// dispatched in the order they were requested, one per pacing interval, and
// each item is attempted at most once per Batch.
type Batch struct {
	svc      *Service
	onResult func(MediaDescriptor, Result)

	ctx    context.Context
	cancel context.CancelFunc
	alive  atomic.Bool
	wake   chan struct{}
	done   chan struct{}

	// deliverMu orders callbacks before Close: deliveries hold it shared,
	// Close exclusively while it flips alive.
	deliverMu sync.RWMutex

	mu        sync.Mutex
	queue     []MediaDescriptor
	attempted map[string]struct{}
}

// NewBatch starts a Batch. onResult is called from background goroutines
// for every resolved item until Close; it must not call Close itself.
func (s *Service) NewBatch(ctx context.Context, onResult func(MediaDescriptor, Result)) *Batch {
	ctx, cancel := context.WithCancel(ctx)
	b := &Batch{
		svc:       s,
		onResult:  onResult,
		ctx:       ctx,
		cancel:    cancel,
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
		attempted: make(map[string]struct{}),
	}
	b.alive.Store(true)
	go b.dispatch()
	return b
}

// Request queues video items not yet attempted by this Batch and returns
// how many were queued; each of them is delivered once unless the Batch is
// closed first. Other kinds are ignored.
func (b *Batch) Request(items ...MediaDescriptor) int {
	if !b.alive.Load() {
		return 0
	}

	added := 0
	b.mu.Lock()
	for _, d := range items {
		if !d.IsVideo() {
			continue
		}
		key := b.svc.itemKey(d)
		if _, ok := b.attempted[key]; ok {
			continue
		}
		b.attempted[key] = struct{}{}
		b.queue = append(b.queue, d)
		added++
	}
	b.mu.Unlock()

	if added > 0 {
		select {
		case b.wake <- struct{}{}:
		default:
		}
	}
	return added
}

// Close stops scheduling. Generations already dispatched keep running and
// are persisted, but their results are no longer delivered. A callback that
// started before Close finishes before Close returns.
func (b *Batch) Close() {
	b.deliverMu.Lock()
	wasAlive := b.alive.Swap(false)
	b.deliverMu.Unlock()
	if !wasAlive {
		return
	}
	b.cancel()
	<-b.done
}

func (b *Batch) next() (MediaDescriptor, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.queue) == 0 {
		return MediaDescriptor{}, false
	}
	d := b.queue[0]
	b.queue = b.queue[1:]
	return d, true
}

func (b *Batch) deliver(d MediaDescriptor, r Result) {
	b.deliverMu.RLock()
	defer b.deliverMu.RUnlock()
	if !b.alive.Load() || b.onResult == nil {
		return
	}
	b.onResult(d, r)
}

func (b *Batch) dispatch() {
	defer close(b.done)

	for {
		d, ok := b.next()
		if !ok {
			select {
			case <-b.ctx.Done():
				return
			case <-b.wake:
				continue
			}
		}
		if b.ctx.Err() != nil {
			return
		}

		r := b.svc.Lookup(b.ctx, d)
		if r.Status != StatusMiss && r.Status != StatusPending {
			b.deliver(d, r)
			continue
		}

		logging.Debug("Dispatching thumbnail generation for %s", b.svc.itemKey(d))
		go func(d MediaDescriptor) {
			b.deliver(d, b.svc.Ensure(b.ctx, d))
		}(d)

		if b.svc.opts.PacingDelay > 0 {
			timer := time.NewTimer(b.svc.opts.PacingDelay)
			select {
			case <-b.ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
	}
}
