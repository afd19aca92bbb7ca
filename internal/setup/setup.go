package setup

import (
	"context"
	"log"

	"github.com/jonboulle/clockwork"
	"github.com/robalyx/vaultstats/internal/session"
	"github.com/robalyx/vaultstats/internal/setup/config"
	"github.com/robalyx/vaultstats/internal/setup/telemetry"
	"github.com/robalyx/vaultstats/internal/stats"
	"github.com/robalyx/vaultstats/internal/vaultwarden"
	"go.uber.org/zap"
)

// App bundles all core dependencies and services needed by the application.
type App struct {
	Config      *config.Config      // Application configuration
	Logger      *zap.Logger         // Main application logger
	Client      *vaultwarden.Client // Vaultwarden admin API client
	Sessions    *session.Cache      // Cached admin session
	Stats       *stats.Cache        // Cached derived statistics
	LogManager  *telemetry.Manager  // Log management system
	pprofServer *pprofServer        // Debug HTTP server for pprof
}

// InitializeApp loads configuration, sets up logging and wires the caches.
// A missing admin token is not an error here; it surfaces on the first stats request.
func InitializeApp(ctx context.Context, configDir, logDir string) (*App, error) {
	cfg, usedConfigPath, err := config.LoadConfig(configDir)
	if err != nil {
		return nil, err
	}

	// Logging system is initialized next to capture setup issues
	logManager := telemetry.NewManager(logDir, &cfg.Debug)

	logger, err := logManager.GetLogger()
	if err != nil {
		return nil, err
	}

	if usedConfigPath != "" {
		logger.Info("Loaded config file", zap.String("path", usedConfigPath))
	}

	app := NewApp(cfg, logger, clockwork.NewRealClock())
	app.LogManager = logManager

	if cfg.Vaultwarden.AdminToken == "" {
		logger.Warn("ADMIN_TOKEN is not set, stats requests will fail until it is configured")
	}

	// Start pprof server if enabled
	if cfg.Debug.EnablePprof {
		srv, err := startPprofServer(ctx, cfg.Debug.PprofPort, logger)
		if err != nil {
			logger.Error("Failed to start pprof server", zap.Error(err))
		} else {
			app.pprofServer = srv

			logger.Warn("pprof debugging endpoint enabled - this should not be used in production!")
		}
	}

	logger.Info("Initialized application",
		zap.String("vaultwarden", app.Client.BaseURL()),
		zap.Duration("cacheTTL", cfg.CacheTTL()),
		zap.Duration("requestTimeout", cfg.RequestTimeout()))

	return app, nil
}

// NewApp wires the service components without touching the filesystem.
func NewApp(cfg *config.Config, logger *zap.Logger, clock clockwork.Clock) *App {
	client := vaultwarden.NewClient(cfg.Vaultwarden.URL, cfg.RequestTimeout(), logger)
	sessions := session.NewCache(client, cfg.Vaultwarden.AdminToken, clock, cfg.RequestTimeout(), logger)

	opts := stats.Options{
		TTL:            cfg.CacheTTL(),
		RequestTimeout: cfg.RequestTimeout(),
	}
	if cfg.Cache.Diagnostics {
		opts.Diagnostics = client
	}

	return &App{
		Config:   cfg,
		Logger:   logger,
		Client:   client,
		Sessions: sessions,
		Stats:    stats.NewCache(sessions, client, clock, opts, logger),
	}
}

// Cleanup shuts down components in reverse initialization order.
// Logs but does not fail on cleanup errors.
func (s *App) Cleanup(ctx context.Context) {
	if s.pprofServer != nil {
		if err := s.pprofServer.srv.Shutdown(ctx); err != nil {
			s.Logger.Error("Failed to shutdown pprof server", zap.Error(err))
		}
	}

	// Let in-flight diagnostics finish logging
	s.Stats.Wait()

	// Sync buffered logs before shutdown
	if err := s.Logger.Sync(); err != nil {
		log.Printf("Failed to sync logger: %v", err)
	}

	if s.LogManager != nil {
		s.LogManager.Stop()
	}
}
