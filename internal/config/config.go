package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"thumbcache/internal/logging"
	"thumbcache/internal/store"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// Store backend names accepted by STORE_BACKEND.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Config holds all application configuration
type Config struct {
	StoreBackend    string `env:"STORE_BACKEND" envDefault:"sqlite"`
	CacheDir        string `env:"CACHE_DIR" envDefault:"/cache"`
	RedisAddr       string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword   string `env:"REDIS_PASSWORD"`
	RedisDB         int    `env:"REDIS_DB" envDefault:"0"`
	Namespace       string `env:"CACHE_NAMESPACE" envDefault:"video_thumbnail_cache_v2"`
	LegacyNamespace string `env:"LEGACY_NAMESPACE" envDefault:"video_thumbnail_cache"`

	Retention         time.Duration `env:"RETENTION" envDefault:"168h"`
	GenerationTimeout time.Duration `env:"GENERATION_TIMEOUT" envDefault:"10s"`
	MetadataWait      time.Duration `env:"METADATA_WAIT" envDefault:"3s"`
	PacingDelay       time.Duration `env:"PACING_DELAY" envDefault:"150ms"`
	ThumbnailWorkers  int           `env:"THUMBNAIL_WORKERS" envDefault:"0"`
	CleanupInterval   time.Duration `env:"CLEANUP_INTERVAL" envDefault:"1h"`

	Port            string `env:"PORT" envDefault:"8080"`
	LogStaticFiles  bool   `env:"LOG_STATIC_FILES" envDefault:"false"`
	LogHealthChecks bool   `env:"LOG_HEALTH_CHECKS" envDefault:"true"`

	// Derived paths
	DatabasePath string `env:"-"`
	SpoolDir     string `env:"-"`
}

// Parse reads configuration from the environment, after loading envFiles
// (default ".env") when present. It does not log or touch the filesystem.
func Parse(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		// Existing environment variables win over the file.
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	cacheDir, err := filepath.Abs(cfg.CacheDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve cache directory path: %w", err)
	}
	cfg.CacheDir = cacheDir
	cfg.DatabasePath = filepath.Join(cacheDir, "thumbnails.db")
	cfg.SpoolDir = filepath.Join(cacheDir, "spool")

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreBackend {
	case BackendMemory, BackendSQLite, BackendRedis:
	default:
		return fmt.Errorf("invalid STORE_BACKEND %q (want memory, sqlite or redis)", c.StoreBackend)
	}

	for name, d := range map[string]time.Duration{
		"RETENTION":          c.Retention,
		"GENERATION_TIMEOUT": c.GenerationTimeout,
		"METADATA_WAIT":      c.MetadataWait,
		"CLEANUP_INTERVAL":   c.CleanupInterval,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	if c.PacingDelay < 0 {
		return fmt.Errorf("PACING_DELAY must not be negative, got %s", c.PacingDelay)
	}
	if c.Namespace == "" {
		return errors.New("CACHE_NAMESPACE must not be empty")
	}
	if c.Namespace == c.LegacyNamespace {
		return errors.New("CACHE_NAMESPACE and LEGACY_NAMESPACE must differ")
	}
	return nil
}

// LoadConfig parses the configuration and logs it with the startup banner.
func LoadConfig(envFiles ...string) (*Config, error) {
	printBanner()
	logSystemInfo()

	cfg, err := Parse(envFiles...)
	if err != nil {
		return nil, err
	}

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  STORE_BACKEND:       %s", cfg.StoreBackend)
	logging.Info("  CACHE_DIR:           %s", cfg.CacheDir)
	if cfg.StoreBackend == BackendRedis {
		logging.Info("  REDIS_ADDR:          %s", cfg.RedisAddr)
		logging.Info("  REDIS_DB:            %d", cfg.RedisDB)
	}
	logging.Info("  CACHE_NAMESPACE:     %s", cfg.Namespace)
	logging.Info("  LEGACY_NAMESPACE:    %s", cfg.LegacyNamespace)
	logging.Info("  RETENTION:           %s", cfg.Retention)
	logging.Info("  GENERATION_TIMEOUT:  %s", cfg.GenerationTimeout)
	logging.Info("  METADATA_WAIT:       %s", cfg.MetadataWait)
	logging.Info("  PACING_DELAY:        %s", cfg.PacingDelay)
	logging.Info("  THUMBNAIL_WORKERS:   %d", cfg.ThumbnailWorkers)
	logging.Info("  CLEANUP_INTERVAL:    %s", cfg.CleanupInterval)
	logging.Info("  PORT:                %s", cfg.Port)
	logging.Info("  LOG_STATIC_FILES:    %v", cfg.LogStaticFiles)
	logging.Info("  LOG_HEALTH_CHECKS:   %v", cfg.LogHealthChecks)
	logging.Info("  LOG_LEVEL:           %s", logging.GetLevel())

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	if err := ensureDirectory(cfg.CacheDir, "cache"); err != nil {
		if cfg.StoreBackend == BackendSQLite {
			return nil, fmt.Errorf("cache directory error: %w", err)
		}
		logging.Warn("  Cache directory issue: %v", err)
	}
	if !setupOptionalDir(cfg.SpoolDir, "spool") {
		cfg.SpoolDir = ""
	}

	return cfg, nil
}

// OpenBackend connects the configured store backend.
func OpenBackend(ctx context.Context, cfg *Config) (store.Backend, error) {
	switch cfg.StoreBackend {
	case BackendMemory:
		logging.Warn("  Memory store selected: thumbnails are lost on restart")
		return store.NewMemoryBackend(), nil
	case BackendSQLite:
		return store.NewSQLiteBackend(ctx, cfg.DatabasePath)
	case BackendRedis:
		return store.NewRedisBackend(ctx, store.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

func printBanner() {
	banner := `
------------------------------------------------------------
   __  __                    __                    __
  / /_/ /_  __  ______ ___  / /_  _________ ______/ /_  ___
 / __/ __ \/ / / / __ '__ \/ __ \/ ___/ __ '/ ___/ __ \/ _ \
/ /_/ / / / /_/ / / / / / / /_/ / /__/ /_/ / /__/ / / /  __/
\__/_/ /_/\__,_/_/ /_/ /_/_.___/\___/\__,_/\___/_/ /_/\___/

------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}

	if logging.IsDebugEnabled() {
		logging.Debug("  Goroutines:      %d", runtime.NumGoroutine())

		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}

		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}

	logging.Info("")
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Debug("    [OK] Directory exists")
	return nil
}

func setupOptionalDir(path, name string) bool {
	logging.Debug("  Setting up %s directory: %s", name, path)

	if err := os.MkdirAll(path, 0o755); err != nil {
		logging.Warn("    Failed to create %s directory: %v", name, err)
		logging.Warn("    Falling back to the system temp directory")
		return false
	}

	testFile := filepath.Join(path, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		logging.Warn("    %s directory is not writable: %v", name, err)
		logging.Warn("    Falling back to the system temp directory")
		return false
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("    failed to remove test file %s: %v", testFile, err)
	}

	logging.Debug("    [OK] %s directory ready", name)
	return true
}
