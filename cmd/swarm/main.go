// Swarm orchestrator server — exposes the HTTP API, runs the per-replica
// ticket engine, and drives spec-to-tickets generation over one shared
// PostgreSQL queue.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/forgeworks/swarm/pkg/version"
)

// configDir is shared by every subcommand via the persistent flag.
var configDir string

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "swarm",
		Short: "Workload orchestrator for fleets of AI coding agents",
		Long: `Swarm coordinates fleets of AI coding agents working through a shared
ticket queue in PostgreSQL.

Replicas never talk to each other: every claim, heartbeat and reclaim is a
conditional row update, so any number of servers can run against the same
database. Each ticket is forged into a pushed branch, verified against its
acceptance criteria, and reviewed into a merge.`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cmd.PersistentFlags().StringVar(&configDir, "config-dir",
		getEnv("CONFIG_DIR", "./config"), "Path to configuration directory")

	cmd.AddCommand(serveCmd(), migrateCmd())
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version.Full())
		},
	})

	return cmd
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// resolveWorkerID determines the worker identifier for multi-replica
// coordination. Priority: POD_ID env > HOSTNAME env > "local".
func resolveWorkerID() string {
	if id := os.Getenv("POD_ID"); id != "" {
		return id
	}
	if hostname := os.Getenv("HOSTNAME"); hostname != "" {
		return hostname
	}
	return "local"
}

// loadEnvFile loads .env from the config directory. The file is a local
// development convenience; deployments set real environment variables.
func loadEnvFile(configDir string) {
	envPath := filepath.Join(configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"path", envPath, "error", err)
		return
	}
	slog.Info("Loaded environment", "path", envPath)
}
