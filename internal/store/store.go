package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"thumbcache/internal/logging"
	"thumbcache/internal/metrics"
)

const (
	// Namespace is the key the current Record is stored under.
	Namespace = "video_thumbnail_cache_v2"
	// LegacyNamespace holds the flat pre-alias schema.
	LegacyNamespace = "video_thumbnail_cache"
	// DefaultMaxAge is the retention window applied by Cleanup.
	DefaultMaxAge = 7 * 24 * time.Hour

	recordVersion = 2
)

// Tier names the lookup stage that resolved a key.
type Tier string

const (
	TierDirect         Tier = "direct"
	TierAlias          Tier = "alias"
	TierCrossReference Tier = "cross_reference"
	TierMiss           Tier = "miss"
)

// Entry is one cached thumbnail.
type Entry struct {
	ThumbnailData     string   `json:"thumbnailData"`
	CreatedAt         int64    `json:"createdAt"` // unix milliseconds
	SourceURL         string   `json:"sourceUrl,omitempty"`
	CrossReferenceIDs []string `json:"crossReferenceIds"`
}

// Record is the serialized form of the whole cache.
type Record struct {
	Version int               `json:"version"`
	Entries map[string]Entry  `json:"entries"`
	Aliases map[string]string `json:"aliases"`
}

// Stats summarizes a Record.
type Stats struct {
	Entries      int
	Aliases      int
	PayloadBytes int64
}

// legacyEntry is the per-key value of the flat legacy schema.
type legacyEntry struct {
	ThumbnailData     string   `json:"thumbnailData"`
	CreatedAt         int64    `json:"createdAt"`
	SourceURL         string   `json:"sourceUrl,omitempty"`
	CrossReferenceIDs []string `json:"crossReferenceIds,omitempty"`
}

func newRecord() Record {
	return Record{
		Version: recordVersion,
		Entries: make(map[string]Entry),
		Aliases: make(map[string]string),
	}
}

// Store reads and writes the thumbnail Record through a Backend.
type Store struct {
	backend   Backend
	namespace string
	now       func() time.Time

	// mu serializes read-modify-write cycles within this process.
	mu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithNamespace overrides the namespace key.
func WithNamespace(ns string) Option {
	return func(s *Store) {
		if ns != "" {
			s.namespace = ns
		}
	}
}

// WithClock overrides the time source used for createdAt and cleanup.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a Store on top of backend.
func New(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend:   backend,
		namespace: Namespace,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Namespace returns the key the Record is stored under.
func (s *Store) Namespace() string {
	return s.namespace
}

// Backend returns the underlying backend.
func (s *Store) Backend() Backend {
	return s.backend
}

// load reads the Record. Missing and corrupt blobs yield an empty Record.
// A backend read failure also yields an empty Record but is reported, so
// writers can refuse to overwrite data they could not see.
func (s *Store) load(ctx context.Context) (Record, error) {
	raw, found, err := s.backend.Get(ctx, s.namespace)
	if err != nil {
		logging.Warn("Thumbnail cache read failed (%s): %v", s.backend.Name(), err)
		return newRecord(), fmt.Errorf("read thumbnail cache: %w", ErrBackendUnavailable)
	}
	if !found || raw == "" {
		return newRecord(), nil
	}

	rec, err := decodeRecord(raw)
	if err != nil {
		logging.Warn("Thumbnail cache blob under %q is corrupt, treating as empty: %v", s.namespace, err)
		metrics.CacheCorruptBlobs.Inc()
		return newRecord(), nil
	}
	return rec, nil
}

func decodeRecord(raw string) (Record, error) {
	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return Record{}, err
	}
	if rec.Entries == nil {
		rec.Entries = make(map[string]Entry)
	}
	if rec.Aliases == nil {
		rec.Aliases = make(map[string]string)
	}
	rec.Version = recordVersion
	return rec, nil
}

func (s *Store) save(ctx context.Context, rec Record) error {
	return s.saveTo(ctx, s.namespace, rec)
}

func (s *Store) saveTo(ctx context.Context, namespace string, rec Record) error {
	rec.Version = recordVersion
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode thumbnail cache: %w", err)
	}
	if err := s.backend.Set(ctx, namespace, string(data)); err != nil {
		return fmt.Errorf("write thumbnail cache: %w", err)
	}
	return nil
}

// Get returns the thumbnail stored under key or any of its aliases.
func (s *Store) Get(ctx context.Context, key string) (string, bool) {
	data, _, ok := s.Lookup(ctx, key)
	return data, ok
}

// Lookup is Get that also reports which tier resolved the key.
// It never fails: backend errors and corrupt blobs read as a miss.
func (s *Store) Lookup(ctx context.Context, key string) (string, Tier, bool) {
	if key == "" {
		return "", TierMiss, false
	}
	rec, _ := s.load(ctx)
	return rec.resolve(key)
}

// LookupAny resolves keys in order and returns the first hit. The Record is
// read once.
func (s *Store) LookupAny(ctx context.Context, keys []string) (string, Tier, bool) {
	if len(keys) == 0 {
		return "", TierMiss, false
	}
	rec, _ := s.load(ctx)
	for _, key := range keys {
		if key == "" {
			continue
		}
		if data, tier, ok := rec.resolve(key); ok {
			return data, tier, true
		}
	}
	return "", TierMiss, false
}

func (r Record) resolve(key string) (string, Tier, bool) {
	if e, ok := r.Entries[key]; ok {
		return e.ThumbnailData, TierDirect, true
	}
	if canonical, ok := r.Aliases[key]; ok {
		if e, ok := r.Entries[canonical]; ok {
			return e.ThumbnailData, TierAlias, true
		}
	}
	// Sorted scan keeps the fallback deterministic when several entries
	// list the same cross-reference.
	keys := make([]string, 0, len(r.Entries))
	for k := range r.Entries {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		e := r.Entries[k]
		if slices.Contains(e.CrossReferenceIDs, key) {
			return e.ThumbnailData, TierCrossReference, true
		}
	}
	return "", TierMiss, false
}

// Put stores data under primaryKey and makes every id in allKnownIDs
// resolve to it. Existing entries under any of those ids are superseded.
func (s *Store) Put(ctx context.Context, primaryKey, data, sourceURL string, allKnownIDs []string) error {
	if primaryKey == "" {
		return errors.New("put thumbnail: empty primary key")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.load(ctx)
	if err != nil {
		return fmt.Errorf("put thumbnail %q: %w", primaryKey, err)
	}

	ids := []string{primaryKey}
	for _, id := range allKnownIDs {
		if id != "" && !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	for _, id := range ids {
		rec.detach(id)
	}

	rec.Entries[primaryKey] = Entry{
		ThumbnailData:     data,
		CreatedAt:         s.now().UnixMilli(),
		SourceURL:         sourceURL,
		CrossReferenceIDs: slices.Clone(ids[1:]),
	}
	for _, alias := range ids[1:] {
		rec.Aliases[alias] = primaryKey
	}

	logging.Debug("Thumbnail cached under %q with %d aliases", primaryKey, len(ids)-1)
	return s.save(ctx, rec)
}

// detach removes key from the Record without losing the thumbnail it may
// carry for other aliases: a canonical entry is re-homed under its first
// remaining alias.
func (r Record) detach(key string) {
	if e, ok := r.Entries[key]; ok {
		delete(r.Entries, key)

		var remaining []string
		for _, alias := range e.CrossReferenceIDs {
			if r.Aliases[alias] == key {
				remaining = append(remaining, alias)
			}
		}
		if len(remaining) == 0 {
			return
		}
		home := remaining[0]
		delete(r.Aliases, home)
		e.CrossReferenceIDs = slices.DeleteFunc(slices.Clone(e.CrossReferenceIDs), func(id string) bool {
			return id == home || id == key
		})
		r.Entries[home] = e
		for _, alias := range remaining[1:] {
			r.Aliases[alias] = home
		}
		return
	}

	if canonical, ok := r.Aliases[key]; ok {
		delete(r.Aliases, key)
		if e, ok := r.Entries[canonical]; ok {
			e.CrossReferenceIDs = slices.DeleteFunc(slices.Clone(e.CrossReferenceIDs), func(id string) bool { return id == key })
			r.Entries[canonical] = e
		}
	}
}

// Cleanup removes entries whose age exceeds maxAge (an entry exactly maxAge
// old is kept) together with their aliases. maxAge <= 0 means DefaultMaxAge.
func (s *Store) Cleanup(ctx context.Context, maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.load(ctx)
	if err != nil {
		return 0, fmt.Errorf("cleanup thumbnails: %w", err)
	}
	now := s.now().UnixMilli()
	limit := maxAge.Milliseconds()

	removed := 0
	for key, e := range rec.Entries {
		if now-e.CreatedAt > limit {
			delete(rec.Entries, key)
			removed++
		}
	}

	dangling := 0
	for alias, canonical := range rec.Aliases {
		if _, ok := rec.Entries[canonical]; !ok {
			delete(rec.Aliases, alias)
			dangling++
		}
	}

	if removed == 0 && dangling == 0 {
		return 0, nil
	}
	if err := s.save(ctx, rec); err != nil {
		return 0, err
	}

	metrics.CacheCleanupRemoved.Add(float64(removed))
	logging.Info("Thumbnail cache cleanup removed %d expired entries and %d aliases", removed, dangling)
	return removed, nil
}

// Migrate copies a legacy flat Record from oldNamespace into the current
// schema under newNamespace and deletes the legacy key. It does nothing when
// newNamespace already holds entries or oldNamespace holds nothing usable.
func (s *Store) Migrate(ctx context.Context, oldNamespace, newNamespace string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, found, err := s.backend.Get(ctx, newNamespace)
	if err != nil {
		metrics.CacheMigrationsTotal.WithLabelValues("error").Inc()
		return 0, fmt.Errorf("read %s: %w", newNamespace, err)
	}
	if found {
		if rec, err := decodeRecord(current); err == nil && len(rec.Entries) > 0 {
			metrics.CacheMigrationsTotal.WithLabelValues("skipped").Inc()
			return 0, nil
		}
	}

	old, found, err := s.backend.Get(ctx, oldNamespace)
	if err != nil {
		metrics.CacheMigrationsTotal.WithLabelValues("error").Inc()
		return 0, fmt.Errorf("read %s: %w", oldNamespace, err)
	}
	if !found {
		metrics.CacheMigrationsTotal.WithLabelValues("skipped").Inc()
		return 0, nil
	}

	var legacy map[string]legacyEntry
	if err := json.Unmarshal([]byte(old), &legacy); err != nil {
		logging.Warn("Legacy thumbnail cache under %q is corrupt, not migrating: %v", oldNamespace, err)
		metrics.CacheMigrationsTotal.WithLabelValues("skipped").Inc()
		return 0, nil
	}

	rec := newRecord()
	for key, le := range legacy {
		if key == "" || le.ThumbnailData == "" {
			continue
		}
		refs := le.CrossReferenceIDs
		if len(refs) == 0 {
			refs = []string{key}
		}
		rec.Entries[key] = Entry{
			ThumbnailData:     le.ThumbnailData,
			CreatedAt:         le.CreatedAt,
			SourceURL:         le.SourceURL,
			CrossReferenceIDs: slices.Clone(refs),
		}
	}
	// Index cross-references that are not themselves entries.
	for key, e := range rec.Entries {
		for _, ref := range e.CrossReferenceIDs {
			if ref == key {
				continue
			}
			if _, isEntry := rec.Entries[ref]; isEntry {
				continue
			}
			if _, taken := rec.Aliases[ref]; !taken {
				rec.Aliases[ref] = key
			}
		}
	}

	if err := s.saveTo(ctx, newNamespace, rec); err != nil {
		metrics.CacheMigrationsTotal.WithLabelValues("error").Inc()
		return 0, err
	}
	if err := s.backend.Delete(ctx, oldNamespace); err != nil {
		logging.Warn("Failed to delete legacy thumbnail cache %q: %v", oldNamespace, err)
	}

	metrics.CacheMigrationsTotal.WithLabelValues("migrated").Inc()
	logging.Info("Migrated %d thumbnail entries from %q to %q", len(rec.Entries), oldNamespace, newNamespace)
	return len(rec.Entries), nil
}

// Dump returns the full Record. It never fails; an unreadable store dumps
// as empty.
func (s *Store) Dump(ctx context.Context) Record {
	rec, _ := s.load(ctx)
	return rec
}

// Clear replaces the Record with an empty one.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(ctx, newRecord())
}

// Stats summarizes the current Record.
func (s *Store) Stats(ctx context.Context) Stats {
	rec, _ := s.load(ctx)
	st := Stats{Entries: len(rec.Entries), Aliases: len(rec.Aliases)}
	for _, e := range rec.Entries {
		st.PayloadBytes += int64(len(e.ThumbnailData))
	}
	return st
}
