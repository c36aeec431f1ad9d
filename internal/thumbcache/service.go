package thumbcache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"thumbcache/internal/identity"
	"thumbcache/internal/logging"
	"thumbcache/internal/metrics"
	"thumbcache/internal/store"
	"thumbcache/internal/thumbnail"
	"thumbcache/internal/workers"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const DefaultPacingDelay = 150 * time.Millisecond

// Generator produces a thumbnail for a source. *thumbnail.Generator
// satisfies it.
type Generator interface {
	Generate(ctx context.Context, src identity.Source) thumbnail.Result
}

// Gate holds back generation, for example under memory pressure.
// *memory.Monitor satisfies it.
type Gate interface {
	Wait(ctx context.Context) error
}

// Options configures a Service.
type Options struct {
	// MaxAge is the retention applied by CleanupExpired.
	MaxAge time.Duration
	// PacingDelay is the minimum spacing between generation dispatches.
	PacingDelay time.Duration
	// Workers caps concurrent generations; <= 0 sizes from the CPU count.
	Workers int
	// LegacyNamespace is the namespace MigrateIfNeeded reads from.
	LegacyNamespace string
	// Gate, when set, is waited on before each generation starts.
	Gate Gate
}

// Service resolves thumbnails for media items.
type Service struct {
	store   *store.Store
	gen     Generator
	opts    Options
	group   singleflight.Group
	limiter *rate.Limiter
	sem     *semaphore.Weighted

	mu     sync.Mutex
	states map[string]State
}

// New creates a Service. st and gen are required.
func New(st *store.Store, gen Generator, opts Options) *Service {
	if opts.MaxAge <= 0 {
		opts.MaxAge = store.DefaultMaxAge
	}
	if opts.PacingDelay < 0 {
		opts.PacingDelay = 0
	}
	if opts.LegacyNamespace == "" {
		opts.LegacyNamespace = store.LegacyNamespace
	}
	opts.Workers = workers.ForDecode(opts.Workers, 0)

	limit := rate.Inf
	if opts.PacingDelay > 0 {
		limit = rate.Every(opts.PacingDelay)
	}

	logging.Debug("Thumbnail service: %d workers, pacing %s, retention %s", opts.Workers, opts.PacingDelay, opts.MaxAge)

	return &Service{
		store:   st,
		gen:     gen,
		opts:    opts,
		limiter: rate.NewLimiter(limit, 1),
		sem:     semaphore.NewWeighted(int64(opts.Workers)),
		states:  make(map[string]State),
	}
}

// Store returns the underlying store.
func (s *Service) Store() *store.Store {
	return s.store
}

func (s *Service) itemKey(d MediaDescriptor) string {
	if d.ID != "" {
		return d.ID
	}
	primary, _ := identities(d)
	return primary
}

// identities resolves the store keys of d. A URL without a usable path
// segment would get a fresh placeholder each time; it is keyed by its hash
// instead so repeated requests for it meet in the same entry.
func identities(d MediaDescriptor) (string, []string) {
	primary, ids := identity.ForDescriptor(d.PrimaryURL, d.AlternateURL)
	if !identity.IsPlaceholder(primary) {
		return primary, ids
	}
	primary = identity.HashID(d.SourceURL())
	stable := []string{primary}
	for _, id := range ids {
		if !identity.IsPlaceholder(id) {
			stable = append(stable, id)
		}
	}
	return primary, identity.Merge(stable)
}

// State returns the session state of the item with the given id.
func (s *Service) State(id string) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.states[id]; ok {
		return st
	}
	return StateUncached
}

func (s *Service) setState(key string, st State) {
	s.mu.Lock()
	s.states[key] = st
	s.mu.Unlock()
}

// Lookup returns a thumbnail without generating one: the server thumbnail,
// then the store under every identity of the item. Images resolve to their
// own URL.
func (s *Service) Lookup(ctx context.Context, d MediaDescriptor) Result {
	if d.ServerThumbnail != "" {
		metrics.CacheLookupsTotal.WithLabelValues("server").Inc()
		return Result{URL: d.ServerThumbnail, Status: StatusServer}
	}
	if !d.IsVideo() {
		return Result{URL: d.PrimaryURL, Status: StatusImage}
	}

	key := s.itemKey(d)
	_, ids := identities(d)
	data, tier, ok := s.store.LookupAny(ctx, ids)
	metrics.CacheLookupsTotal.WithLabelValues(string(tier)).Inc()

	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.states[key]

	if ok {
		if state == "" || state == StateUncached {
			s.states[key] = StateCached
		}
		return Result{URL: data, Status: StatusCached}
	}

	switch state {
	case StatePending:
		return Result{Status: StatusPending}
	case StateFailed:
		return Result{Status: StatusFailed}
	}
	return Result{Status: StatusMiss}
}

// Ensure returns a thumbnail for d, generating one on a miss. Items that
// already failed in this session are not retried. If ctx ends before the
// generation does, Ensure returns a pending Result and the generation
// continues in the background.
func (s *Service) Ensure(ctx context.Context, d MediaDescriptor) Result {
	r := s.Lookup(ctx, d)
	if r.Status != StatusMiss && r.Status != StatusPending {
		return r
	}
	return s.generate(ctx, d)
}

// ForceRefresh regenerates the thumbnail for d regardless of cached or
// failed state. It joins a generation already in flight for the item.
func (s *Service) ForceRefresh(ctx context.Context, d MediaDescriptor) Result {
	if !d.IsVideo() {
		return s.Lookup(ctx, d)
	}
	logging.Debug("Forcing thumbnail refresh for %s", s.itemKey(d))
	return s.generate(ctx, d)
}

func (s *Service) generate(ctx context.Context, d MediaDescriptor) Result {
	key := s.itemKey(d)

	s.mu.Lock()
	joined := s.states[key] == StatePending
	s.states[key] = StatePending
	s.mu.Unlock()
	if joined {
		metrics.GenerationsCoalesced.Inc()
	}

	genCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (any, error) {
		return s.run(genCtx, key, d), nil
	})

	select {
	case res := <-ch:
		r := res.Val.(Result)
		// A caller that joined after the flight settled the state has
		// marked the item pending again.
		s.settle(key, r)
		return r
	case <-ctx.Done():
		return Result{Status: StatusPending}
	}
}

// settle records the terminal state of a finished generation.
func (s *Service) settle(key string, r Result) {
	switch r.Status {
	case StatusGenerated, StatusCached:
		s.setState(key, StateCached)
	case StatusFailed:
		s.setState(key, StateFailed)
	}
}

func (s *Service) run(ctx context.Context, key string, d MediaDescriptor) Result {
	if err := s.limiter.Wait(ctx); err != nil {
		logging.Warn("Thumbnail pacing wait failed for %s: %v", key, err)
	}
	if s.opts.Gate != nil {
		if err := s.opts.Gate.Wait(ctx); err != nil {
			logging.Debug("Generation gate for %s released early: %v", key, err)
		}
	}
	if err := s.sem.Acquire(ctx, 1); err != nil {
		s.setState(key, StateFailed)
		return Result{Status: StatusFailed}
	}
	defer s.sem.Release(1)

	src := d.SourceURL()
	res := s.gen.Generate(ctx, identity.URLSource(src))
	if !res.OK() {
		logging.Info("Thumbnail generation failed for %s", key)
		s.setState(key, StateFailed)
		return Result{Status: StatusFailed}
	}

	primary, ids := identities(d)
	if err := s.store.Put(ctx, primary, res.Data, src, ids); err != nil {
		logging.Warn("Failed to persist thumbnail for %s: %v", key, err)
	}

	s.setState(key, StateCached)
	logging.Debug("Generated thumbnail for %s (%dx%d, %d ids)", key, res.Width, res.Height, len(ids))
	return Result{URL: res.Data, Status: StatusGenerated}
}

// Save validates data and persists it under every identity of d.
func (s *Service) Save(ctx context.Context, d MediaDescriptor, data string) error {
	if err := thumbnail.ValidatePayload(data); err != nil {
		return err
	}
	primary, ids := identities(d)
	if err := s.store.Put(ctx, primary, data, d.SourceURL(), ids); err != nil {
		return fmt.Errorf("save thumbnail: %w", err)
	}
	s.setState(s.itemKey(d), StateCached)
	return nil
}

// CleanupExpired removes entries older than the configured retention.
func (s *Service) CleanupExpired(ctx context.Context) (int, error) {
	return s.store.Cleanup(ctx, s.opts.MaxAge)
}

// MigrateIfNeeded moves entries from the legacy namespace.
func (s *Service) MigrateIfNeeded(ctx context.Context) (int, error) {
	return s.store.Migrate(ctx, s.opts.LegacyNamespace, s.store.Namespace())
}

// DebugDump returns the whole persisted record.
func (s *Service) DebugDump(ctx context.Context) store.Record {
	return s.store.Dump(ctx)
}

// Clear empties the store and forgets session state for idle items.
func (s *Service) Clear(ctx context.Context) error {
	if err := s.store.Clear(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	for key, st := range s.states {
		if st != StatePending {
			delete(s.states, key)
		}
	}
	s.mu.Unlock()
	return nil
}

// GetStats implements metrics.StatsProvider.
func (s *Service) GetStats() metrics.Stats {
	st := s.store.Stats(context.Background())

	s.mu.Lock()
	pending := 0
	for _, state := range s.states {
		if state == StatePending {
			pending++
		}
	}
	s.mu.Unlock()

	return metrics.Stats{
		Entries:      st.Entries,
		Aliases:      st.Aliases,
		PayloadBytes: st.PayloadBytes,
		Pending:      pending,
	}
}
