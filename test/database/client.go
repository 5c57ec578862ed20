package database

import (
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/forgeworks/swarm/pkg/database"
	"github.com/forgeworks/swarm/pkg/store"
	"github.com/forgeworks/swarm/test/util"
)

// NewTestPool creates a migrated, schema-isolated connection pool.
// In CI (when CI_DATABASE_URL is set): connects to the external PostgreSQL
// service container. In local dev: spins up a shared testcontainer.
// The schema and pool are cleaned up when the test ends.
func NewTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	return util.SetupTestDatabase(t)
}

// NewTestClient wraps a fresh test pool in a database.Client.
func NewTestClient(t *testing.T) *database.Client {
	t.Helper()
	return database.NewClientFromPool(NewTestPool(t))
}

// NewTestStore creates the repository set over a fresh test pool.
func NewTestStore(t *testing.T) *store.Store {
	t.Helper()
	return store.New(NewTestPool(t))
}
