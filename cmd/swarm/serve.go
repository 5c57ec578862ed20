package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/forgeworks/swarm/pkg/api"
	"github.com/forgeworks/swarm/pkg/codegen"
	"github.com/forgeworks/swarm/pkg/config"
	"github.com/forgeworks/swarm/pkg/database"
	"github.com/forgeworks/swarm/pkg/engine"
	"github.com/forgeworks/swarm/pkg/events"
	"github.com/forgeworks/swarm/pkg/metrics"
	"github.com/forgeworks/swarm/pkg/store"
	"github.com/forgeworks/swarm/pkg/ticketgen"
	"github.com/forgeworks/swarm/pkg/vcs"
	"github.com/forgeworks/swarm/pkg/verifier"
	"github.com/forgeworks/swarm/pkg/version"
	"github.com/forgeworks/swarm/pkg/workspace"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the orchestrator server",
		Long: `Start the HTTP API and this replica's ticket engine.

The engine recovers any leases a previous run under the same worker id left
behind, then begins claiming ready and reviewable tickets. On SIGINT or
SIGTERM in-flight tickets get a drain window before their claims are
released back to the fleet.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	loadEnvFile(configDir)

	httpPort := getEnv("HTTP_PORT", "8080")
	workerID := resolveWorkerID()

	slog.Info("Starting swarm",
		"version", version.Full(),
		"http_port", httpPort,
		"worker_id", workerID,
		"config_dir", configDir)

	ctx := context.Background()

	cfg, err := config.Initialize(ctx, configDir)
	if err != nil {
		return fmt.Errorf("failed to initialize configuration: %w", err)
	}

	dbConfig, err := database.LoadConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load database config: %w", err)
	}
	dbClient, err := database.NewClient(ctx, dbConfig)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbClient.Close()
	slog.Info("Connected to PostgreSQL database")

	st := store.New(dbClient.Pool())
	publisher := events.NewPublisher(dbClient.Pool())
	m := metrics.New()

	vcsToken, err := vcs.LoadToken(cfg.Engine.VCSTokenPath, cfg.Services.VCS.TokenEnv)
	if err != nil {
		return err
	}
	if vcsToken == "" {
		slog.Warn("No VCS token configured, pull request calls will be unauthenticated")
	}

	executor := engine.NewExecutor(cfg.Engine, st,
		workspace.NewManager(cfg.Workspace),
		codegen.NewClient(cfg.Services.Codegen),
		verifier.NewClient(cfg.Services.Verifier),
		vcs.NewClient(cfg.Services.VCS, vcsToken),
		publisher, m)

	// The engine starts before the HTTP server so a replica never accepts
	// cancel requests for tasks it cannot yet be running.
	eng := engine.New(workerID, cfg.Engine, st, executor, m)
	if err := eng.Start(ctx); err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}

	generator := ticketgen.NewService(st, ticketgen.NewClient(cfg.Services.Ticketgen), publisher)

	httpServer := api.NewServer(workerID, st, eng, generator, publisher, m)

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + httpPort
		slog.Info("HTTP server listening", "addr", addr)
		if err := httpServer.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	slog.Info("Swarm started",
		"worker_id", workerID,
		"max_concurrent", cfg.Engine.MaxConcurrent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// Drain the engine first: in-flight tickets get the grace window, then
	// stragglers are cancelled and their claims released to the fleet.
	eng.Stop(true)

	httpShutdownCtx, httpCancel := context.WithTimeout(ctx, 5*time.Second)
	defer httpCancel()
	if err := httpServer.Shutdown(httpShutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
	return nil
}
