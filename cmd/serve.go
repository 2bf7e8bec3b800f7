package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/csvmerge/internal/adapters/http/api"
	"github.com/okian/csvmerge/internal/adapters/http/site"
	"github.com/okian/csvmerge/internal/adapters/http/swagger"
	"github.com/okian/csvmerge/internal/adapters/repository"
	app "github.com/okian/csvmerge/internal/app"
	"github.com/okian/csvmerge/internal/config"
	"github.com/okian/csvmerge/internal/domain/merge"
	"github.com/okian/csvmerge/pkg/logger"
	"github.com/okian/csvmerge/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 30 * time.Second
	writeTimeout              = 60 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP merge service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			// Load configuration (defaults -> optional file -> env)
			cfg, err := config.Load(ctx, flags.configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}
			if err := applyLogConfig(cmd, cfg); err != nil {
				return err
			}
			return serve(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides the addr setting")
	return cmd
}

// applyLogConfig applies the configured log format and level unless the
// matching flag was given explicitly.
func applyLogConfig(cmd *cobra.Command, cfg *config.Config) error {
	if !cmd.Flags().Changed("log-format") {
		if err := logger.Init(logger.WithFormat(cfg.LogFormat), logger.WithWriter(cmd.ErrOrStderr())); err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}
	}
	if !cmd.Flags().Changed("log-level") {
		// Apply configured log level (fallback to info on invalid input)
		if err := logger.SetLevelString(cfg.LogLevel); err != nil {
			logger.Get().Warn(cmd.Context(), "invalid log_level; falling back to info",
				logger.String("log_level", cfg.LogLevel), logger.Error(err))
			_ = logger.SetLevelString("info")
		}
	}
	return nil
}

// serve runs the service until ctx is cancelled.
func serve(ctx context.Context, cfg *config.Config) error {
	log := logger.Get()

	svc, err := newService(cfg)
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}
	defer svc.Stop()

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	srv := newHTTPServer(ctx, cfg, svc)

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or a listener failure
	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	log.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
	return nil
}

// newService builds the merge service from configuration.
func newService(cfg *config.Config) (*app.Service, error) {
	policy, err := merge.ParseDuplicatePolicy(cfg.DuplicatePolicy)
	if err != nil {
		return nil, err
	}
	return app.New(
		app.WithLogger(logger.Get()),
		app.WithStoreSettings(repository.Settings{
			Backend:       cfg.StoreBackend,
			SQLitePath:    cfg.SQLitePath,
			RedisAddr:     cfg.RedisAddr,
			RedisPassword: cfg.RedisPassword,
			RedisDB:       cfg.RedisDB,
			RedisPrefix:   cfg.RedisKeyPrefix,
		}),
		app.WithMergeOptions(
			merge.WithDuplicatePolicy(policy),
			merge.WithStrictEntities(cfg.StrictEntities),
			merge.WithParallelism(cfg.MergeParallelism),
			merge.WithMaxWindowDays(cfg.MaxWindowDays),
		),
		app.WithRetention(time.Duration(cfg.RetentionMinutes)*time.Minute),
		app.WithSweepSchedule(cfg.SweepSchedule),
	), nil
}

// newHTTPServer wires API and docs routes behind the request-id middleware.
func newHTTPServer(ctx context.Context, cfg *config.Config, svc *app.Service) *http.Server {
	mux := http.NewServeMux()

	// Register API docs under /api-docs and the upload page at /
	swagger.Register(ctx, mux)
	site.Register(ctx, mux)

	// Register business API routes with the service dependency.
	api.NewServer(svc, api.WithMaxUploadBytes(cfg.MaxUploadBytes)).Register(ctx, mux)

	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(mux),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater keeps the stored-records gauge in line with the
// store, which other replicas may also write to.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(ctx, svc)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)

	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		// Calculate average GC pause time
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics refreshes the stored-records gauge; GetStats updates
// it as it counts.
func updateServiceMetrics(ctx context.Context, svc *app.Service) {
	stats := svc.GetStats(ctx)
	logger.Get().Debug(ctx, "service stats",
		logger.String("backend", stats.Backend),
		logger.Int("records", stats.Records),
		logger.Int64("mergesOK", stats.MergesOK),
		logger.Int64("mergesInvalid", stats.MergesInvalid))
}
