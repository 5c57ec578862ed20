// Package e2e boots complete swarm replicas against a real database, a real
// git origin and stubbed collaborator services, and drives them through the
// public HTTP API the way a dashboard or operator would.
package e2e

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/forgeworks/swarm/pkg/api"
	"github.com/forgeworks/swarm/pkg/codegen"
	"github.com/forgeworks/swarm/pkg/config"
	"github.com/forgeworks/swarm/pkg/engine"
	"github.com/forgeworks/swarm/pkg/events"
	"github.com/forgeworks/swarm/pkg/metrics"
	"github.com/forgeworks/swarm/pkg/store"
	"github.com/forgeworks/swarm/pkg/ticketgen"
	"github.com/forgeworks/swarm/pkg/vcs"
	"github.com/forgeworks/swarm/pkg/verifier"
	"github.com/forgeworks/swarm/pkg/workspace"
	testdb "github.com/forgeworks/swarm/test/database"
)

// TestApp is one running swarm replica: an engine, an API server on a random
// port, and its own set of collaborator stubs.
type TestApp struct {
	Store   *store.Store
	Engine  *engine.Engine
	Server  *api.Server
	Metrics *metrics.Metrics

	// Collaborator stubs
	Planner  *plannerStub
	Codegen  *codegenStub
	Verifier *verifierStub
	Forge    *forgeStub

	// Runtime
	BaseURL   string // e.g. "http://127.0.0.1:54321"
	WorkerID  string
	RepoURL   string // clone/push URL of the git host
	OriginDir string // bare origin path, for direct git assertions

	t *testing.T
}

// testAppConfig holds options accumulated before creating the TestApp.
type testAppConfig struct {
	pool          *pgxpool.Pool // injected pool (for multi-replica tests)
	workerID      string        // custom worker id (for multi-replica tests)
	maxConcurrent int
	ticketTimeout time.Duration
	repoURL       string // shared git host (for multi-replica tests)
	originDir     string
}

// TestAppOption configures the test app.
type TestAppOption func(*testAppConfig)

// WithPool injects a pre-created connection pool, skipping the default
// per-test schema creation. Used for multi-replica tests where several
// TestApp instances share the same database schema.
func WithPool(pool *pgxpool.Pool) TestAppOption {
	return func(c *testAppConfig) { c.pool = pool }
}

// WithWorkerID overrides the auto-generated worker id. Required for
// multi-replica tests so each replica gets a distinct identity for claiming
// and orphan recovery.
func WithWorkerID(id string) TestAppOption {
	return func(c *testAppConfig) { c.workerID = id }
}

// WithMaxConcurrent sets the replica's concurrent ticket limit.
func WithMaxConcurrent(n int) TestAppOption {
	return func(c *testAppConfig) { c.maxConcurrent = n }
}

// WithTicketTimeout sets the per-ticket execution deadline.
func WithTicketTimeout(d time.Duration) TestAppOption {
	return func(c *testAppConfig) { c.ticketTimeout = d }
}

// WithRepo points the replica at an existing git host instead of creating its
// own, so multiple replicas can push to the same origin.
func WithRepo(repoURL, originDir string) TestAppOption {
	return func(c *testAppConfig) {
		c.repoURL = repoURL
		c.originDir = originDir
	}
}

// NewTestApp creates and starts a full swarm replica. Shutdown is registered
// via t.Cleanup automatically.
func NewTestApp(t *testing.T, opts ...TestAppOption) *TestApp {
	t.Helper()

	tc := &testAppConfig{
		maxConcurrent: 4,
		ticketTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(tc)
	}

	// 1. Database — fresh schema unless a shared pool was injected.
	pool := tc.pool
	if pool == nil {
		pool = testdb.NewTestPool(t)
	}
	st := store.New(pool)

	// 2. Git origin the executor clones from and pushes to.
	repoURL, originDir := tc.repoURL, tc.originDir
	if repoURL == "" {
		repoURL, originDir = newGitHost(t)
	}

	// 3. Collaborator stubs.
	planner := newPlannerStub(t)
	gen := newCodegenStub(t)
	ver := newVerifierStub(t)
	forge := newForgeStub(t)

	// 4. Engine, tuned for fast polling.
	cfg := &config.EngineConfig{
		PollInterval:            50 * time.Millisecond,
		PollIntervalJitter:      0,
		MaxConcurrent:           tc.maxConcurrent,
		ClaimBatchLimit:         2,
		TicketTimeout:           tc.ticketTimeout,
		GracefulShutdownTimeout: 10 * time.Second,
		HeartbeatInterval:       time.Hour,
		ReaperInterval:          time.Hour,
		StaleThreshold:          5 * time.Minute,
		VerifyMaxRetries:        3,
		VerifyBaseDelay:         10 * time.Millisecond,
		VerifyDelayCap:          80 * time.Millisecond,
		VerifyBackoffMultiplier: 2.0,
		DefaultBaseBranch:       "main",
	}

	base := t.TempDir()
	ws := workspace.NewManager(&config.WorkspaceConfig{
		RootDir:        filepath.Join(base, "worktrees"),
		MirrorDir:      filepath.Join(base, "mirrors"),
		GitUserName:    "swarm-e2e",
		GitUserEmail:   "swarm@test.invalid",
		CommandTimeout: time.Minute,
	})

	m := metrics.New()
	publisher := events.NewPublisher(pool)
	executor := engine.NewExecutor(cfg, st, ws,
		codegen.NewClient(&config.ServiceConfig{BaseURL: gen.srv.URL, Timeout: 30 * time.Second}),
		verifier.NewClient(&config.ServiceConfig{BaseURL: ver.srv.URL, Timeout: 30 * time.Second}),
		vcs.NewClient(&config.VCSConfig{BaseURL: forge.srv.URL, Timeout: 10 * time.Second}, "test-token"),
		publisher, m)

	workerID := tc.workerID
	if workerID == "" {
		workerID = "e2e-" + t.Name()
	}
	eng := engine.New(workerID, cfg, st, executor, m)
	require.NoError(t, eng.Start(context.Background()))

	// 5. Generation service behind the API, backed by the planner stub.
	generator := ticketgen.NewService(st,
		ticketgen.NewClient(&config.ServiceConfig{BaseURL: planner.srv.URL, Timeout: 30 * time.Second}),
		publisher)

	// 6. HTTP server on a random port.
	server := api.NewServer(workerID, st, eng, generator, publisher, m)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() {
		_ = server.StartWithListener(ln)
	}()

	app := &TestApp{
		Store:     st,
		Engine:    eng,
		Server:    server,
		Metrics:   m,
		Planner:   planner,
		Codegen:   gen,
		Verifier:  ver,
		Forge:     forge,
		BaseURL:   "http://" + ln.Addr().String(),
		WorkerID:  workerID,
		RepoURL:   repoURL,
		OriginDir: originDir,
		t:         t,
	}

	// Cleanup runs in reverse-creation order: the engine drains before the
	// stub servers close and before the pool goes away.
	t.Cleanup(func() {
		eng.Stop(true)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	})

	return app
}
