package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/robalyx/vaultstats/internal/rest"
	"github.com/robalyx/vaultstats/internal/rest/convert"
	"github.com/robalyx/vaultstats/internal/setup"
	"github.com/robalyx/vaultstats/internal/vaultwarden"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

// LogDir specifies where log files are stored.
const LogDir = "logs/vaultstats_logs"

// Server timeouts. The write timeout is derived from the upstream request timeout.
const (
	ReadTimeout     = 5 * time.Second
	ShutdownTimeout = 30 * time.Second
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	vaultwarden.UserAgent = "vaultstats/" + version

	app := &cli.Command{
		Name:    "vaultstats",
		Usage:   "Serve aggregate statistics for a Vaultwarden server",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config-dir",
				Usage: "Directory containing vaultstats.toml",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Start the HTTP server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "host",
						Usage: "Listen host, overrides VAULTSTATS_HOST",
					},
					&cli.IntFlag{
						Name:    "port",
						Aliases: []string{"p"},
						Usage:   "Listen port, overrides VAULTSTATS_PORT",
					},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					return serve(ctx, c)
				},
			},
			{
				Name:  "stats",
				Usage: "Fetch statistics once and print them as JSON",
				Action: func(ctx context.Context, c *cli.Command) error {
					return printStats(ctx, c.String("config-dir"))
				},
			},
		},
	}

	return app.Run(context.Background(), os.Args)
}

// serve runs the HTTP server until interrupted.
func serve(ctx context.Context, c *cli.Command) error {
	app, err := setup.InitializeApp(ctx, c.String("config-dir"), LogDir)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer app.Cleanup(context.Background())

	if c.IsSet("host") {
		app.Config.Server.Host = c.String("host")
	}
	if c.IsSet("port") {
		app.Config.Server.Port = int(c.Int("port"))
	}
	addr := app.Config.Addr()

	srv := &http.Server{
		Addr:         addr,
		Handler:      rest.NewServer(app.Stats, app.Logger),
		ReadTimeout:  ReadTimeout,
		WriteTimeout: app.Config.WriteTimeout(),
	}

	// Start server in a goroutine
	errCh := make(chan error, 1)
	go func() {
		app.Logger.Info("REST server started", zap.String("address", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
	case err := <-errCh:
		app.Logger.Error("Failed to start server", zap.Error(err))
		return err
	}

	app.Logger.Info("Shutting down REST server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		app.Logger.Error("Server forced to shutdown", zap.Error(err))
	}

	app.Logger.Info("Server gracefully stopped")
	return nil
}

// printStats computes statistics once and writes the /stats body to stdout.
func printStats(ctx context.Context, configDir string) error {
	app, err := setup.InitializeApp(ctx, configDir, LogDir)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer app.Cleanup(context.Background())

	snapshot, err := app.Stats.GetStats(ctx)
	if err != nil {
		return err
	}

	body, err := sonic.Marshal(convert.Stats(snapshot))
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(os.Stdout, string(body))
	return err
}
