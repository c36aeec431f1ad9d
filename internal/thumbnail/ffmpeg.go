package thumbnail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"math"
	"os/exec"
	"strconv"
	"time"

	"thumbcache/internal/logging"
	"thumbcache/internal/metrics"
)

// FFmpegDecoder implements Decoder with the ffprobe and ffmpeg binaries.
type FFmpegDecoder struct {
	ffmpegPath  string
	ffprobePath string
}

// NewFFmpegDecoder locates ffmpeg and ffprobe in PATH.
func NewFFmpegDecoder() (*FFmpegDecoder, error) {
	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found: %w", err)
	}
	ffprobePath, err := exec.LookPath("ffprobe")
	if err != nil {
		return nil, fmt.Errorf("ffprobe not found: %w", err)
	}
	logging.Debug("Using ffmpeg: %s, ffprobe: %s", ffmpegPath, ffprobePath)
	return &FFmpegDecoder{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath}, nil
}

type probeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
		Duration  string `json:"duration"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe reads duration and native size of the first video stream.
func (d *FFmpegDecoder) Probe(ctx context.Context, input string) (Metadata, error) {
	cmd := exec.CommandContext(ctx, d.ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		input,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	metrics.FFmpegDuration.WithLabelValues("ffprobe").Observe(time.Since(start).Seconds())
	if err != nil {
		return Metadata{}, fmt.Errorf("ffprobe error: %w - %s", err, stderr.String())
	}

	return parseProbe(stdout.Bytes())
}

func parseProbe(data []byte) (Metadata, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return Metadata{}, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	meta := Metadata{Duration: parseDuration(out.Format.Duration)}
	for _, s := range out.Streams {
		if s.CodecType != "video" {
			continue
		}
		meta.Width, meta.Height = s.Width, s.Height
		if math.IsNaN(meta.Duration) || meta.Duration <= 0 {
			meta.Duration = parseDuration(s.Duration)
		}
		break
	}
	return meta, nil
}

// parseDuration returns NaN for missing or "N/A" durations.
func parseDuration(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// Frame extracts a single frame at the given offset in seconds.
func (d *FFmpegDecoder) Frame(ctx context.Context, input string, at float64) (image.Image, error) {
	args := []string{"-v", "error"}
	if at > 0 {
		args = append(args, "-ss", strconv.FormatFloat(at, 'f', 3, 64))
	}
	args = append(args,
		"-i", input,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	)
	cmd := exec.CommandContext(ctx, d.ffmpegPath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	metrics.FFmpegDuration.WithLabelValues("ffmpeg").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("ffmpeg failed: %v, stderr: %s", err, stderr.String())
	}

	// Seeking past the end exits cleanly with no output.
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("ffmpeg produced no output for %s at %.3fs", input, at)
	}

	logging.Debug("FFmpeg output size: %d bytes", stdout.Len())

	img, _, err := image.Decode(&stdout)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ffmpeg output: %w", err)
	}
	return img, nil
}
