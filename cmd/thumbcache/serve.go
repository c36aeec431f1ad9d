package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"thumbcache/internal/config"
	"thumbcache/internal/filesystem"
	"thumbcache/internal/handlers"
	"thumbcache/internal/logging"
	"thumbcache/internal/memory"
	"thumbcache/internal/metrics"
	"thumbcache/internal/middleware"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the thumbnail cache HTTP server",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		return serve()
	},
}

func serve() error {
	startTime := time.Now()

	memory.ConfigureFromEnv()

	cfg, err := config.LoadConfig(envFile)
	if err != nil {
		return err
	}

	monitor := memory.NewMonitor(memory.DefaultConfig())
	monitor.Start()
	defer monitor.Stop()

	filesystem.SetObserver(metrics.NewFilesystemObserver())

	storeStart := time.Now()
	a, err := newApp(context.Background(), cfg, monitor)
	if err != nil {
		return err
	}
	defer a.Close()

	migrated, err := a.svc.MigrateIfNeeded(context.Background())
	if err != nil {
		logging.Warn("Legacy cache migration failed: %v", err)
	}
	config.LogStoreInit(a.backend.Name(), migrated, time.Since(storeStart))

	config.LogGeneratorInit(a.decoderErr)

	metrics.InitializeMetrics(a.backend.Name())
	metrics.SetAppInfo(config.Version, a.backend.Name(), config.GoVersion)

	collector := metrics.NewCollector(a.svc, time.Minute)
	collector.Start()

	stopCleanup := make(chan struct{})
	cleanupDone := make(chan struct{})
	go runCleanup(a, stopCleanup, cleanupDone)

	router := mux.NewRouter()
	router.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))
	handlers.New(a.svc, a.backend.Name()).Register(router)

	config.LogHTTPRoutes(router, cfg.LogStaticFiles, cfg.LogHealthChecks)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogStaticFiles = cfg.LogStaticFiles
	loggingConfig.LogHealthChecks = cfg.LogHealthChecks
	handler := middleware.Compression(middleware.DefaultCompressionConfig())(
		middleware.Logger(loggingConfig)(router),
	)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.GenerationTimeout + 30*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	config.LogServerStarted(config.ServerConfig{
		Port:            cfg.Port,
		StartupDuration: time.Since(startTime),
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		config.LogShutdownInitiated(sig.String())
	case err := <-serverErr:
		if err != nil {
			logging.Error("Server error: %v", err)
		}
		config.LogShutdownInitiated("server error")
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	config.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		config.LogShutdownStepComplete("HTTP server stopped")
	}

	config.LogShutdownStep("Stopping cleanup scheduler")
	close(stopCleanup)
	<-cleanupDone
	config.LogShutdownStepComplete("Cleanup scheduler stopped")

	config.LogShutdownStep("Stopping memory monitor")
	monitor.Stop()
	config.LogShutdownStepComplete("Memory monitor stopped")

	config.LogShutdownStep("Stopping metrics collector")
	collector.Stop()
	config.LogShutdownStepComplete("Metrics collector stopped")

	config.LogShutdownStep("Closing store")
	a.Close()
	config.LogShutdownStepComplete("Store closed")

	config.LogShutdownComplete()
	return nil
}

// runCleanup removes expired entries at startup and then on every tick.
func runCleanup(a *app, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	clean := func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		removed, err := a.svc.CleanupExpired(ctx)
		if err != nil {
			logging.Warn("Cache cleanup failed: %v", err)
			return
		}
		if removed > 0 {
			logging.Info("Cache cleanup removed %d expired thumbnails", removed)
		}
	}

	clean()

	ticker := time.NewTicker(a.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			clean()
		case <-stop:
			return
		}
	}
}
