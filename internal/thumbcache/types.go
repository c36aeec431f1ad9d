package thumbcache

import (
	"strings"

	"thumbcache/internal/thumbnail"
)

// ErrInvalidPayload is returned by Save for payloads that are not usable
// thumbnails.
var ErrInvalidPayload = thumbnail.ErrInvalidPayload

// Kind is the media kind of a descriptor.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

// ParseKind normalizes a kind string. "photo" is treated as an image;
// anything unrecognized is reported as not ok.
func ParseKind(s string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "video":
		return KindVideo, true
	case "image", "photo":
		return KindImage, true
	}
	return "", false
}

// MediaDescriptor identifies a media item and where it can be fetched.
type MediaDescriptor struct {
	ID              string `json:"id"`
	Kind            string `json:"kind"`
	PrimaryURL      string `json:"primaryUrl"`
	AlternateURL    string `json:"alternateUrl,omitempty"`
	ServerThumbnail string `json:"serverThumbnail,omitempty"`
}

// IsVideo reports whether the descriptor is a video.
func (d MediaDescriptor) IsVideo() bool {
	k, _ := ParseKind(d.Kind)
	return k == KindVideo
}

// SourceURL returns the URL to decode: the alternate URL when present.
func (d MediaDescriptor) SourceURL() string {
	if d.AlternateURL != "" {
		return d.AlternateURL
	}
	return d.PrimaryURL
}

// Status says where a Result came from.
type Status string

const (
	StatusServer    Status = "server"
	StatusCached    Status = "cached"
	StatusGenerated Status = "generated"
	StatusPending   Status = "pending"
	StatusFailed    Status = "failed"
	StatusMiss      Status = "miss"
	StatusImage     Status = "image"
)

// Result is a displayable image URL or an explicit absence of one.
type Result struct {
	URL    string `json:"url"`
	Status Status `json:"status"`
}

// State is the per-item generation state within a session.
type State string

const (
	StateUncached State = "uncached"
	StatePending  State = "pending"
	StateCached   State = "cached"
	StateFailed   State = "failed"
)
