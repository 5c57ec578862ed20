package database

import (
	stdsql "database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // Register pgx driver for database/sql
)

//go:embed migrations
var migrationsFS embed.FS

// Migration files are embedded into the binary with go:embed so production
// deployments never depend on external files. The same embedded set backs
// both server startup (RunMigrations) and the `swarm migrate` subcommand.

// RunMigrations applies all pending migrations.
func RunMigrations(cfg Config) error {
	return MigrateDSN(cfg.DSN(), cfg.Database)
}

// MigrateDSN applies all pending migrations over a raw connection string.
// Test harnesses use this to migrate per-test schemas; the search_path in the
// DSN decides where the schema_migrations table lands.
func MigrateDSN(dsn, dbName string) error {
	m, cleanup, err := newMigrator(dsn, dbName)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// RollbackMigration reverts the most recently applied migration.
func RollbackMigration(cfg Config) error {
	m, cleanup, err := newMigrator(cfg.DSN(), cfg.Database)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := m.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to roll back migration: %w", err)
	}
	return nil
}

// MigrationVersion reports the current schema version and whether the last
// migration left the schema dirty.
func MigrationVersion(cfg Config) (version uint, dirty bool, err error) {
	m, cleanup, err := newMigrator(cfg.DSN(), cfg.Database)
	if err != nil {
		return 0, false, err
	}
	defer cleanup()

	version, dirty, err = m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read migration version: %w", err)
	}
	return version, dirty, nil
}

// newMigrator builds a migrate instance over a private connection. The
// connection belongs to the migrator alone, so the returned cleanup closes
// everything via m.Close (unlike a shared pool, where that would be unsafe).
func newMigrator(dsn, dbName string) (*migrate.Migrate, func(), error) {
	hasMigrations, err := hasEmbeddedMigrations()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to check embedded migrations: %w", err)
	}
	if !hasMigrations {
		return nil, nil, fmt.Errorf("no embedded migration files found, binary may be built incorrectly")
	}

	db, err := stdsql.Open("pgx", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open migration connection: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, dbName, driver)
	if err != nil {
		_ = sourceDriver.Close()
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	cleanup := func() {
		_, _ = m.Close()
	}
	return m, cleanup, nil
}

// hasEmbeddedMigrations checks if the embedded FS contains any .sql migration files
func hasEmbeddedMigrations() (bool, error) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read embedded migrations: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			return true, nil
		}
	}
	return false, nil
}
