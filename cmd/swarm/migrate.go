package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/forgeworks/swarm/pkg/database"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
		Long: `Apply, roll back or inspect the embedded schema migrations.

The server applies pending migrations automatically on startup; this command
exists for operating on the schema without starting a server.`,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := loadDatabaseConfig()
				if err != nil {
					return err
				}
				if err := database.RunMigrations(cfg); err != nil {
					return err
				}
				fmt.Println("Migrations applied")
				return nil
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := loadDatabaseConfig()
				if err != nil {
					return err
				}
				if err := database.RollbackMigration(cfg); err != nil {
					return err
				}
				fmt.Println("Rolled back one migration")
				return nil
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show the current schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := loadDatabaseConfig()
				if err != nil {
					return err
				}
				v, dirty, err := database.MigrationVersion(cfg)
				if err != nil {
					return err
				}
				if v == 0 {
					fmt.Println("No migrations applied")
					return nil
				}
				fmt.Printf("Schema version %d", v)
				if dirty {
					fmt.Print(" (dirty)")
				}
				fmt.Println()
				return nil
			},
		},
	)

	return cmd
}

func loadDatabaseConfig() (database.Config, error) {
	loadEnvFile(configDir)
	return database.LoadConfigFromEnv()
}
