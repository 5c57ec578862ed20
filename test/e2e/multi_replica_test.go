package e2e

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgeworks/swarm/pkg/models"
	testdb "github.com/forgeworks/swarm/test/database"
)

// ────────────────────────────────────────────────────────────
// Multi-replica test — two engines, one database, one origin.
//
// Two replicas poll the same schema and push to the same git host. Six
// independent tickets flow through forge and sentinel review with both
// replicas competing for every claim. The claimed event per ticket is the
// exactly-once proof: a ticket picked up twice would carry two of them.
// ────────────────────────────────────────────────────────────

func TestE2E_MultiReplica(t *testing.T) {
	shared := testdb.NewSharedTestDB(t)
	repoURL, originDir := newGitHost(t)

	app1 := NewTestApp(t,
		WithPool(shared.NewPool(t)),
		WithWorkerID("replica-1"),
		WithRepo(repoURL, originDir),
	)
	app2 := NewTestApp(t,
		WithPool(shared.NewPool(t)),
		WithWorkerID("replica-2"),
		WithRepo(repoURL, originDir),
		WithMaxConcurrent(2),
	)

	titles := []string{
		"Add refund ledger",
		"Record exchange rates",
		"Validate IBAN input",
		"Emit settlement events",
		"Index payment lookups",
		"Harden webhook retries",
	}
	drafts := make([]models.TicketDraft, 0, len(titles))
	for _, title := range titles {
		drafts = append(drafts, models.TicketDraft{Title: title})
	}
	app1.Planner.Plan(drafts...)

	project := app1.CreateProject(t, "payments")
	session := app1.CreateSession(t, project.ID, "Hardening batch")

	gen := app1.GenerateTickets(t, session.ID)
	assert.Equal(t, 6, gen.TicketCount)
	assert.Equal(t, 6, gen.ReadyCount)
	assert.Equal(t, 0, gen.BlockedCount)

	// ═══════════════════════════════════════════════════════
	// Both replicas drain the queue
	// ═══════════════════════════════════════════════════════

	list := app1.ListSessionTickets(t, session.ID)
	require.Len(t, list.Tickets, 6)

	for _, ticket := range list.Tickets {
		app1.AwaitTicketState(t, ticket.ID, models.StateMerged)
		app1.AwaitTicketReleased(t, ticket.ID)
	}

	// ── Each ticket was claimed exactly once, merged exactly once ──

	claimsByWorker := map[string]int{}
	for _, ticket := range list.Tickets {
		events := app2.TicketEvents(t, ticket.ID)

		claims := eventsOfKind(events, models.EventKindClaimed)
		require.Len(t, claims, 1, "ticket %s", ticket.Title)
		worker, _ := claims[0].Payload["worker_id"].(string)
		assert.Contains(t, []string{"replica-1", "replica-2"}, worker)
		claimsByWorker[worker]++

		assert.Len(t, eventsOfKind(events, models.EventKindSentinelStarted), 1)
		assert.Len(t, eventsOfKind(events, models.EventKindMerged), 1)
		assert.Empty(t, eventsOfKind(events, models.EventKindReclaimed))
	}

	total := 0
	for _, n := range claimsByWorker {
		total += n
	}
	assert.Equal(t, 6, total)

	// ── The replicas' counters agree with the event log ──

	forgeClaims := testutil.ToFloat64(app1.Metrics.ClaimsTotal.WithLabelValues("forge")) +
		testutil.ToFloat64(app2.Metrics.ClaimsTotal.WithLabelValues("forge"))
	assert.Equal(t, float64(6), forgeClaims)

	reviewClaims := testutil.ToFloat64(app1.Metrics.ClaimsTotal.WithLabelValues("review")) +
		testutil.ToFloat64(app2.Metrics.ClaimsTotal.WithLabelValues("review"))
	assert.Equal(t, float64(6), reviewClaims)

	merges := testutil.ToFloat64(app1.Metrics.MergesTotal) + testutil.ToFloat64(app2.Metrics.MergesTotal)
	assert.Equal(t, float64(6), merges)

	assert.Zero(t, testutil.ToFloat64(app1.Metrics.ReclaimsTotal))
	assert.Zero(t, testutil.ToFloat64(app2.Metrics.ReclaimsTotal))

	prsCreated := len(app1.Forge.prCreated()) + len(app2.Forge.prCreated())
	assert.Equal(t, 6, prsCreated)

	mergeCalls := len(app1.Forge.mergeCalls()) + len(app2.Forge.mergeCalls())
	assert.Equal(t, 6, mergeCalls)

	// ── Every branch landed on the shared origin ──

	for _, ticket := range list.Tickets {
		ticket := app2.GetTicket(t, ticket.ID)
		require.NotNil(t, ticket.PRURL)
		assert.Equal(t, models.VerificationPassed, ticket.VerificationStatus)

		content := runGit(t, originDir, "show", ticket.BranchName+":"+ticketFilePath(ticket.ID))
		assert.Contains(t, content, ticket.Title)
	}

	// ── Both replicas report the same database-wide state ──

	for _, app := range []*TestApp{app1, app2} {
		app := app
		require.Eventually(t, func() bool { return len(app.Engine.InFlight()) == 0 },
			10*time.Second, 50*time.Millisecond, "replica %s did not drain", app.WorkerID)

		health := app.EngineHealth(t)
		assert.Equal(t, 6, health.TicketsByState["merged"])
		assert.Empty(t, health.InFlight)
	}
	assert.Equal(t, "replica-1", app1.EngineHealth(t).WorkerID)
	assert.Equal(t, "replica-2", app2.EngineHealth(t).WorkerID)
}
