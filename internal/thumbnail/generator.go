package thumbnail

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"thumbcache/internal/filesystem"
	"thumbcache/internal/identity"
	"thumbcache/internal/logging"
	"thumbcache/internal/metrics"

	"github.com/disintegration/imaging"
	"github.com/h2non/filetype"
)

const (
	DefaultTimeout      = 10 * time.Second
	DefaultMetadataWait = 3 * time.Second

	// FallbackSeek is used when the duration is unknown.
	FallbackSeek = 1.0
	seekFraction = 0.25

	fallbackWidth  = 320
	fallbackHeight = 240

	// filetype needs at most this many bytes to match a signature.
	sniffLength = 261
)

var errNotVideo = errors.New("source is not a video")

// Metadata describes a video as reported by the decoder. Duration is in
// seconds and may be zero or NaN when unknown.
type Metadata struct {
	Duration float64
	Width    int
	Height   int
}

// Decoder reads metadata and frames from a video input (a URL or a path).
type Decoder interface {
	Probe(ctx context.Context, input string) (Metadata, error)
	Frame(ctx context.Context, input string, at float64) (image.Image, error)
}

// Options tunes a Generator. Zero values select the defaults.
type Options struct {
	Timeout      time.Duration
	MetadataWait time.Duration
	Quality      int
	// TempDir is where in-memory sources are spooled; empty means os.TempDir.
	TempDir string
}

// Result is the outcome of one generation. Data is empty when no thumbnail
// could be produced.
type Result struct {
	Data   string
	Width  int
	Height int
}

// OK reports whether the result carries a usable thumbnail.
func (r Result) OK() bool {
	return r.Data != ""
}

// Generator produces thumbnails with a Decoder.
type Generator struct {
	decoder Decoder
	opts    Options
}

// New creates a Generator.
func New(decoder Decoder, opts Options) *Generator {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MetadataWait <= 0 {
		opts.MetadataWait = DefaultMetadataWait
	}
	if opts.Quality <= 0 {
		opts.Quality = DefaultQuality
	}
	return &Generator{decoder: decoder, opts: opts}
}

// Timeout returns the hard limit applied to each generation.
func (g *Generator) Timeout() time.Duration {
	return g.opts.Timeout
}

type signalKind string

const (
	signalMetadata      signalKind = "metadata"
	signalMetadataError signalKind = "metadata_error"
	signalFrame         signalKind = "frame"
	signalFrameError    signalKind = "frame_error"
)

type signal struct {
	kind  signalKind
	meta  Metadata
	frame image.Image
	err   error
}

// Generate captures and encodes one frame of src. It never fails; see
// Result.OK.
func (g *Generator) Generate(ctx context.Context, src identity.Source) Result {
	start := time.Now()
	status := "failed"
	defer func() {
		metrics.GenerationsTotal.WithLabelValues(status).Inc()
		metrics.GenerationDuration.Observe(time.Since(start).Seconds())
	}()

	input, cleanup, err := g.resolveInput(src)
	defer cleanup()
	if err != nil {
		logging.Debug("Thumbnail source %s rejected: %v", src, err)
		return Result{}
	}

	ctx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
	defer cancel()

	// Buffered for every signal that can be sent, so late senders never block
	// after Generate returns.
	signals := make(chan signal, 3)

	go func() {
		meta, err := g.decoder.Probe(ctx, input)
		if err != nil {
			signals <- signal{kind: signalMetadataError, err: err}
			return
		}
		signals <- signal{kind: signalMetadata, meta: meta}
	}()

	capture := func(at float64) {
		go func() {
			img, err := g.decoder.Frame(ctx, input, at)
			if err == nil && img == nil {
				err = errors.New("decoder returned no frame")
			}
			if err != nil {
				signals <- signal{kind: signalFrameError, err: err}
				return
			}
			signals <- signal{kind: signalFrame, frame: img}
		}()
	}

	metadataWait := time.NewTimer(g.opts.MetadataWait)
	defer metadataWait.Stop()

	var (
		meta       Metadata
		haveMeta   bool
		capturing  bool
		fellBack   bool
		seekTarget = FallbackSeek
	)

	for {
		select {
		case <-ctx.Done():
			metrics.DecoderSignalsTotal.WithLabelValues("timeout").Inc()
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				status = "timeout"
			}
			logging.Debug("Thumbnail generation for %s stopped: %v", src, ctx.Err())
			return Result{}

		case <-metadataWait.C:
			metrics.DecoderSignalsTotal.WithLabelValues("metadata_wait").Inc()
			if !capturing {
				logging.Debug("No metadata for %s after %s, seeking to %.1fs", src, g.opts.MetadataWait, seekTarget)
				capturing = true
				capture(seekTarget)
			}

		case s := <-signals:
			metrics.DecoderSignalsTotal.WithLabelValues(string(s.kind)).Inc()

			switch s.kind {
			case signalMetadata:
				meta, haveMeta = s.meta, true
				if !capturing {
					seekTarget = SeekTarget(meta.Duration)
					capturing = true
					capture(seekTarget)
				}

			case signalMetadataError:
				logging.Debug("Metadata probe failed for %s: %v", src, s.err)
				if !capturing {
					capturing = true
					capture(seekTarget)
				}

			case signalFrameError:
				if fellBack {
					logging.Debug("Frame capture failed for %s: %v", src, s.err)
					return Result{}
				}
				logging.Debug("Seek to %.2fs failed for %s, capturing first frame: %v", seekTarget, src, s.err)
				fellBack = true
				capture(0)

			case signalFrame:
				res, err := g.encode(s.frame, meta, haveMeta)
				if err != nil {
					logging.Debug("Thumbnail encode failed for %s: %v", src, err)
					if errors.Is(err, ErrInvalidPayload) {
						status = "invalid"
					}
					return Result{}
				}
				status = "success"
				return res
			}
		}
	}
}

// SeekTarget returns the capture time for a video of the given duration:
// 25% in, or FallbackSeek when the duration is unknown.
func SeekTarget(duration float64) float64 {
	if math.IsNaN(duration) || math.IsInf(duration, 0) || duration <= 0 {
		return FallbackSeek
	}
	return duration * seekFraction
}

// rasterSize picks the output dimensions: native video size, then the
// frame's own bounds, then a fixed fallback when nothing is known.
func rasterSize(frame image.Image, meta Metadata, haveMeta bool) (int, int) {
	if haveMeta && meta.Width > 0 && meta.Height > 0 {
		return meta.Width, meta.Height
	}
	if b := frame.Bounds(); !b.Empty() {
		return b.Dx(), b.Dy()
	}
	if !haveMeta {
		return fallbackWidth, fallbackHeight
	}
	return 0, 0
}

func (g *Generator) encode(frame image.Image, meta Metadata, haveMeta bool) (Result, error) {
	w, h := rasterSize(frame, meta, haveMeta)
	if w <= 0 || h <= 0 {
		return Result{}, fmt.Errorf("%w: zero-size raster", ErrInvalidPayload)
	}

	var raster image.Image
	if frame.Bounds().Empty() {
		raster = imaging.New(w, h, color.Black)
	} else if b := frame.Bounds(); b.Dx() == w && b.Dy() == h {
		raster = frame
	} else {
		raster = imaging.Resize(frame, w, h, imaging.Lanczos)
	}

	data, err := EncodeDataURI(raster, g.opts.Quality)
	if err != nil {
		return Result{}, err
	}
	if !IsUsable(data) {
		return Result{}, fmt.Errorf("%w: %d chars", ErrInvalidPayload, len(data))
	}
	return Result{Data: data, Width: w, Height: h}, nil
}

// resolveInput turns src into something the decoder can open. The returned
// cleanup func is always non-nil and removes any spooled temp file.
func (g *Generator) resolveInput(src identity.Source) (string, func(), error) {
	noop := func() {}

	switch {
	case src.Data != nil:
		if !filetype.IsVideo(head(src.Data)) {
			return "", noop, errNotVideo
		}
		dir, err := os.MkdirTemp(g.opts.TempDir, "thumbcache-*")
		if err != nil {
			return "", noop, fmt.Errorf("failed to create spool dir: %w", err)
		}
		cleanup := func() {
			if err := os.RemoveAll(dir); err != nil {
				logging.Warn("Failed to remove spool dir %s: %v", dir, err)
			}
		}
		name := filepath.Base(src.URL)
		if name == "." || name == "/" || name == "" {
			name = "source"
		}
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, src.Data, 0o600); err != nil {
			cleanup()
			return "", noop, fmt.Errorf("failed to spool source: %w", err)
		}
		return p, cleanup, nil

	case src.File != nil:
		f, err := filesystem.OpenWithRetry(src.File.Path, filesystem.DefaultRetryConfig())
		if err != nil {
			return "", noop, fmt.Errorf("file not accessible: %w", err)
		}
		defer f.Close()

		buf := make([]byte, sniffLength)
		n, err := io.ReadFull(f, buf)
		if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
			return "", noop, fmt.Errorf("failed to read file header: %w", err)
		}
		if !filetype.IsVideo(buf[:n]) {
			return "", noop, errNotVideo
		}
		return src.File.Path, noop, nil

	case src.URL != "":
		return src.URL, noop, nil
	}

	return "", noop, errors.New("empty source")
}

func head(data []byte) []byte {
	if len(data) > sniffLength {
		return data[:sniffLength]
	}
	return data
}
