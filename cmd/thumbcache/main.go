package main

import (
	"context"
	"fmt"
	"image"
	"os"
	"sync"

	"thumbcache/internal/config"
	"thumbcache/internal/logging"
	"thumbcache/internal/store"
	"thumbcache/internal/thumbcache"
	"thumbcache/internal/thumbnail"

	"github.com/spf13/cobra"
)

var (
	envFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "thumbcache",
	Short: "Video thumbnail cache",
	Long: `thumbcache generates still-frame thumbnails for videos and keeps them in a
persistent cache keyed by every stable identity of the source, so signed or
rotated URLs keep hitting the same entry.`,
	SilenceUsage: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		if logLevel == "" {
			return nil
		}
		level, ok := logging.ParseLevel(logLevel)
		if !ok {
			return fmt.Errorf("invalid log level %q", logLevel)
		}
		logging.SetLevel(level)
		return nil
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); overrides LOG_LEVEL")

	rootCmd.AddCommand(serveCmd, generateCmd, lookupCmd, dumpCmd, cleanupCmd, migrateCmd, clearCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// unavailableDecoder stands in when FFmpeg is missing so lookups and
// maintenance keep working; every generation fails.
type unavailableDecoder struct{ err error }

func (d unavailableDecoder) Probe(context.Context, string) (thumbnail.Metadata, error) {
	return thumbnail.Metadata{}, d.err
}

func (d unavailableDecoder) Frame(context.Context, string, float64) (image.Image, error) {
	return nil, d.err
}

func newDecoder() (thumbnail.Decoder, error) {
	dec, err := thumbnail.NewFFmpegDecoder()
	if err != nil {
		return unavailableDecoder{err: err}, err
	}
	return dec, nil
}

// app bundles the pieces every command needs.
type app struct {
	cfg     *config.Config
	backend store.Backend
	store   *store.Store
	gen     *thumbnail.Generator
	svc     *thumbcache.Service

	// decoderErr is set when FFmpeg could not be found.
	decoderErr error
	closeOnce  sync.Once
}

func (a *app) Close() {
	a.closeOnce.Do(func() {
		if err := a.backend.Close(); err != nil {
			logging.Warn("Failed to close %s store: %v", a.backend.Name(), err)
		}
	})
}

func newApp(ctx context.Context, cfg *config.Config, gate thumbcache.Gate) (*app, error) {
	backend, err := config.OpenBackend(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.StoreBackend, err)
	}

	st := store.New(backend, store.WithNamespace(cfg.Namespace))

	dec, decErr := newDecoder()
	if decErr != nil {
		logging.Debug("FFmpeg unavailable: %v", decErr)
	}
	gen := thumbnail.New(dec, thumbnail.Options{
		Timeout:      cfg.GenerationTimeout,
		MetadataWait: cfg.MetadataWait,
		TempDir:      cfg.SpoolDir,
	})

	svc := thumbcache.New(st, gen, thumbcache.Options{
		MaxAge:          cfg.Retention,
		PacingDelay:     cfg.PacingDelay,
		Workers:         cfg.ThumbnailWorkers,
		LegacyNamespace: cfg.LegacyNamespace,
		Gate:            gate,
	})

	return &app{cfg: cfg, backend: backend, store: st, gen: gen, svc: svc, decoderErr: decErr}, nil
}

// openApp parses configuration quietly for one-shot commands.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Parse(envFile)
	if err != nil {
		return nil, err
	}
	if cfg.SpoolDir != "" {
		if err := os.MkdirAll(cfg.SpoolDir, 0o755); err != nil {
			cfg.SpoolDir = ""
		}
	}
	return newApp(ctx, cfg, nil)
}
