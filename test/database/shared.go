package database

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/forgeworks/swarm/pkg/database"
	"github.com/forgeworks/swarm/test/util"
)

// SharedTestDB creates a single PostgreSQL schema that can be shared by
// multiple engine replicas. Each replica gets its own connection pool via
// NewPool, but all pools point to the same schema — enabling cross-replica
// tests that exercise claim contention and NOTIFY delivery.
type SharedTestDB struct {
	connStrWithSchema string
	baseConnStr       string
	schemaName        string
}

// NewSharedTestDB creates a shared test schema, runs migrations once, and
// registers t.Cleanup to drop the schema. Call NewPool to create independent
// pools for each replica.
func NewSharedTestDB(t *testing.T) *SharedTestDB {
	t.Helper()
	ctx := context.Background()

	baseConnStr := util.GetBaseConnectionString(t)
	schemaName := util.GenerateSchemaName(t)

	conn, err := pgx.Connect(ctx, baseConnStr)
	require.NoError(t, err)
	_, err = conn.Exec(ctx, fmt.Sprintf("CREATE SCHEMA %s", schemaName))
	require.NoError(t, err)
	t.Logf("SharedTestDB: created schema %s", schemaName)
	_ = conn.Close(ctx)

	connStrWithSchema := util.AddSearchPathToConnString(baseConnStr, schemaName)
	require.NoError(t, database.MigrateDSN(connStrWithSchema, "test"))

	s := &SharedTestDB{
		connStrWithSchema: connStrWithSchema,
		baseConnStr:       baseConnStr,
		schemaName:        schemaName,
	}

	// Drop the schema after all replicas have shut down (LIFO order
	// guarantees replica cleanups run before this one).
	t.Cleanup(func() {
		conn, err := pgx.Connect(context.Background(), baseConnStr)
		if err != nil {
			t.Logf("SharedTestDB: warning: could not connect to drop schema %s: %v", schemaName, err)
			return
		}
		defer func() { _ = conn.Close(context.Background()) }()
		if _, err := conn.Exec(context.Background(), fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", schemaName)); err != nil {
			t.Logf("SharedTestDB: warning: failed to drop schema %s: %v", schemaName, err)
		}
	})

	return s
}

// NewPool creates an independent connection pool onto the shared schema.
// Each replica has its own pool so replicas can be shut down independently
// without races. The pool is closed via t.Cleanup.
func (s *SharedTestDB) NewPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	poolCfg, err := pgxpool.ParseConfig(s.connStrWithSchema)
	require.NoError(t, err)
	poolCfg.MaxConns = 10

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	require.NoError(t, err)

	t.Cleanup(pool.Close)
	return pool
}

// ConnString returns the schema-scoped connection string, for tests that need
// a dedicated LISTEN connection.
func (s *SharedTestDB) ConnString() string {
	return s.connStrWithSchema
}
