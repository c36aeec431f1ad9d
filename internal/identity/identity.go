// Package identity derives cache keys for video sources.
//
// The same video is reachable through URLs that change over time: presigned
// URLs rotate their query tokens, and a path can show up both relative and
// absolute. PrimaryID picks one deterministic key; AllPossibleIDs lists every
// form under which a previously cached thumbnail might have been stored.
package identity

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"thumbcache/internal/filesystem"
	"thumbcache/internal/logging"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

// Source is a video reference: either a URL (absolute or relative) or a
// local file. Data optionally carries the raw video bytes; URL then names
// them for identity purposes.
type Source struct {
	URL  string
	File *LocalFile
	Data []byte
}

// LocalFile identifies a file on disk by name and modification time.
type LocalFile struct {
	Path    string
	Name    string
	ModTime time.Time
}

// URLSource wraps a raw URL string.
func URLSource(raw string) Source {
	return Source{URL: raw}
}

// BytesSource wraps in-memory video bytes known under name.
func BytesSource(name string, data []byte) Source {
	return Source{URL: name, Data: data}
}

// FileSource stats path and returns a Source for it.
func FileSource(p string) (Source, error) {
	info, err := filesystem.StatWithRetry(p, filesystem.DefaultRetryConfig())
	if err != nil {
		return Source{}, fmt.Errorf("stat video source: %w", err)
	}
	if info.IsDir() {
		return Source{}, fmt.Errorf("video source %s is a directory", p)
	}
	return Source{File: &LocalFile{Path: p, Name: info.Name(), ModTime: info.ModTime()}}, nil
}

// IsFile reports whether the source refers to a local file.
func (s Source) IsFile() bool {
	return s.File != nil
}

// String returns the raw form of the source.
func (s Source) String() string {
	if s.File != nil {
		return s.File.Path
	}
	return s.URL
}

// PrimaryID returns the canonical cache key for src.
//
// URLs map to their last path segment without the query string; a URL whose
// path has no usable segment gets a time-based placeholder. Local files map
// to name plus modification time in milliseconds.
func PrimaryID(src Source) string {
	if src.File != nil {
		return fileID(src.File)
	}

	parts, ok := parseURL(src.URL)
	if !ok {
		if src.URL == "" {
			return placeholderID()
		}
		return src.URL
	}
	if parts.segment == "" {
		return placeholderID()
	}
	return parts.segment
}

// AllPossibleIDs returns every candidate key for src, most specific first,
// without duplicates or empty strings. The result is never empty.
func AllPossibleIDs(src Source) []string {
	if src.File != nil {
		name := src.File.Name
		return dedupe(fileID(src.File), name, trimExt(name))
	}

	raw := src.URL
	if raw == "" {
		return []string{PrimaryID(src)}
	}

	parts, ok := parseURL(raw)
	if !ok {
		return dedupe(raw, HashID(raw))
	}

	return dedupe(
		raw,
		parts.path,
		parts.rawSegment,
		parts.segment,
		trimExt(parts.segment),
		HashID(raw),
	)
}

// ForDescriptor resolves the identities of a media item reachable through
// up to two URLs. The alternate URL is preferred when present; ids of the
// other URL follow.
func ForDescriptor(primaryURL, alternateURL string) (string, []string) {
	preferred, other := primaryURL, alternateURL
	if alternateURL != "" {
		preferred, other = alternateURL, primaryURL
	}
	src := URLSource(preferred)
	primary := PrimaryID(src)
	ids := AllPossibleIDs(src)
	if other != "" && other != preferred {
		ids = Merge(ids, AllPossibleIDs(URLSource(other)))
	}
	return primary, ids
}

// Merge concatenates id lists, keeping first occurrences.
func Merge(lists ...[]string) []string {
	var all []string
	for _, l := range lists {
		all = append(all, l...)
	}
	return dedupe(all...)
}

type urlParts struct {
	path       string
	rawSegment string
	segment    string
}

func parseURL(raw string) (urlParts, bool) {
	if raw == "" {
		return urlParts{}, false
	}
	u, err := url.Parse(raw)
	if err != nil {
		logging.Debug("identity: malformed source URL %q, using raw string: %v", raw, err)
		return urlParts{}, false
	}

	p := u.Path
	if p == "" && u.Opaque != "" {
		p = u.Opaque
	}
	rawSegment := p
	if i := strings.LastIndex(p, "/"); i >= 0 {
		rawSegment = p[i+1:]
	}
	// Encoded '?' survives parsing in the segment; drop anything after it.
	segment := rawSegment
	if i := strings.Index(segment, "?"); i >= 0 {
		segment = segment[:i]
	}

	return urlParts{path: p, rawSegment: rawSegment, segment: segment}, true
}

func fileID(f *LocalFile) string {
	return f.Name + "_" + strconv.FormatInt(f.ModTime.UnixMilli(), 10)
}

func trimExt(name string) string {
	ext := path.Ext(name)
	if ext == "" {
		ext = filepath.Ext(name)
	}
	return strings.TrimSuffix(name, ext)
}

// HashID returns the hash-based key of a raw source string.
func HashID(raw string) string {
	return fmt.Sprintf("hash-%016x", xxhash.Sum64String(raw))
}

const placeholderPrefix = "video-"

func placeholderID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return placeholderPrefix + strconv.FormatInt(time.Now().UnixMilli(), 10)
	}
	return placeholderPrefix + id.String()
}

// IsPlaceholder reports whether id was minted by PrimaryID for a source
// with no usable name. Such ids differ on every call.
func IsPlaceholder(id string) bool {
	rest, ok := strings.CutPrefix(id, placeholderPrefix)
	if !ok {
		return false
	}
	if _, err := uuid.Parse(rest); err == nil {
		return true
	}
	_, err := strconv.ParseInt(rest, 10, 64)
	return err == nil
}

func dedupe(ids ...string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
