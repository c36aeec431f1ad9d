package thumbnail

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

const (
	// MinPayloadLength is the shortest data URI accepted as a real thumbnail.
	// Anything shorter is an encoder artifact of an empty canvas.
	MinPayloadLength = 100

	// DefaultQuality is the JPEG quality used for encoded thumbnails.
	DefaultQuality = 80

	jpegDataURIPrefix = "data:image/jpeg;base64,"
)

// ErrInvalidPayload is returned for thumbnail payloads that are too short or
// do not decode as an image.
var ErrInvalidPayload = errors.New("invalid thumbnail payload")

// EncodeDataURI encodes img as a JPEG data URI.
func EncodeDataURI(img image.Image, quality int) (string, error) {
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return "", fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return jpegDataURIPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// IsUsable reports whether data is long enough to be a real thumbnail.
func IsUsable(data string) bool {
	return len(data) >= MinPayloadLength
}

// ValidatePayload checks that data is a base64 image data URI of usable
// length whose content decodes as jpeg, png, gif or webp.
func ValidatePayload(data string) error {
	if !IsUsable(data) {
		return fmt.Errorf("%w: %d chars, need at least %d", ErrInvalidPayload, len(data), MinPayloadLength)
	}

	header, encoded, ok := strings.Cut(data, ",")
	if !ok || !strings.HasPrefix(header, "data:image/") || !strings.HasSuffix(header, ";base64") {
		return fmt.Errorf("%w: not a base64 image data URI", ErrInvalidPayload)
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return fmt.Errorf("%w: empty %s image", ErrInvalidPayload, format)
	}
	return nil
}
