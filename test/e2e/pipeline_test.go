package e2e

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgeworks/swarm/pkg/models"
)

// ────────────────────────────────────────────────────────────
// Pipeline test — one session from spec to merged graph.
//
// The planner breaks the session into two tickets where the second depends
// on the first. The engine forges the root (generate, push, verify, PR),
// the sentinel pass merges it, the cascade promotes the dependent, and the
// dependent runs the same pipeline. Everything is driven and observed
// through the HTTP API plus the real git origin.
// ────────────────────────────────────────────────────────────

func TestE2E_TicketPipeline(t *testing.T) {
	app := NewTestApp(t)

	app.Planner.Plan(
		models.TicketDraft{
			Title:       "Add refund endpoint",
			Description: "Expose POST /refunds on the payments service.",
			AcceptanceCriteria: []models.AcceptanceCriterion{
				{ID: "ac-1", Text: "refunds are validated against the original charge"},
			},
		},
		models.TicketDraft{
			Title:       "Wire refund endpoint into router",
			Description: "Register the refund handler and its middleware.",
			DependsOn:   []string{"Add refund endpoint"},
		},
	)

	// ═══════════════════════════════════════════════════════
	// Project, session, generation
	// ═══════════════════════════════════════════════════════

	project := app.CreateProject(t, "payments")
	session := app.CreateSession(t, project.ID, "Refunds flow")

	gen := app.GenerateTickets(t, session.ID)
	assert.Equal(t, 2, gen.TicketCount)
	assert.Equal(t, 1, gen.ReadyCount)
	assert.Equal(t, 1, gen.BlockedCount)

	assert.Equal(t, "building", app.GetSession(t, session.ID).Status)

	planReqs := app.Planner.requests()
	require.Len(t, planReqs, 1)
	assert.Equal(t, session.ID, planReqs[0].SessionID)
	assert.Equal(t, project.ID, planReqs[0].ProjectID)
	assert.Equal(t, "main", planReqs[0].BaseBranch)

	root := app.TicketByTitle(t, session.ID, "Add refund endpoint")
	dep := app.TicketByTitle(t, session.ID, "Wire refund endpoint into router")
	assert.Equal(t, []string{root.ID}, dep.DependsOn)

	// ═══════════════════════════════════════════════════════
	// The engine runs the whole graph unattended
	// ═══════════════════════════════════════════════════════

	app.AwaitTicketState(t, root.ID, models.StateMerged)
	app.AwaitTicketState(t, dep.ID, models.StateMerged)
	app.AwaitTicketReleased(t, root.ID)
	app.AwaitTicketReleased(t, dep.ID)

	// ── Root ticket ──

	root = app.GetTicket(t, root.ID)
	require.NotNil(t, root.PRURL)
	assert.Equal(t, "https://github.example.com/acme/payments/pull/100", *root.PRURL)
	assert.NotNil(t, root.MergedAt)
	assert.Equal(t, models.VerificationPassed, root.VerificationStatus)
	assert.Equal(t, 0, root.RejectionCount)

	rootEvents := eventKinds(app.TicketEvents(t, root.ID))
	assert.Subset(t, rootEvents, []string{
		models.EventKindCreated,
		models.EventKindActivated,
		models.EventKindClaimed,
		models.EventKindCommit,
		models.EventKindVerificationStarted,
		models.EventKindPRCreated,
		models.EventKindSentinelStarted,
		models.EventKindMerged,
	})

	// ── Dependent ticket: promoted by the cascade, then merged ──

	dep = app.GetTicket(t, dep.ID)
	require.NotNil(t, dep.PRURL)
	assert.Equal(t, "https://github.example.com/acme/payments/pull/101", *dep.PRURL)
	assert.NotNil(t, dep.UnblockedAt)

	unblocks := eventsOfKind(app.TicketEvents(t, dep.ID), models.EventKindUnblocked)
	require.Len(t, unblocks, 1)
	assert.Equal(t, root.ID, unblocks[0].Payload["completed_dependency"])

	// ── Both branches reached the origin before review ──

	for _, ticket := range []*models.Ticket{root, dep} {
		content := runGit(t, app.OriginDir, "show", ticket.BranchName+":"+ticketFilePath(ticket.ID))
		assert.Contains(t, content, "const attempt = 1")
		assert.Contains(t, content, ticket.Title)
	}

	// ── Forge API saw the full PR lifecycle ──

	prs := app.Forge.prCreated()
	require.Len(t, prs, 2)
	assert.Equal(t, root.BranchName, prs[0].Head)
	assert.Equal(t, "main", prs[0].Base)
	assert.Equal(t, root.Title, prs[0].Title)
	assert.Contains(t, prs[0].Body, root.ID)
	assert.Equal(t, []string{"swarm-generated", "scope:small"}, prs[0].Labels)
	assert.Equal(t, dep.BranchName, prs[1].Head)

	merges := app.Forge.mergeCalls()
	require.Len(t, merges, 2)
	assert.Equal(t, "100", merges[0]["number"])
	assert.Equal(t, "squash", merges[0]["merge_method"])
	assert.Equal(t, root.Title, merges[0]["commit_title"])
	assert.Equal(t, "101", merges[1]["number"])

	assert.Equal(t, []string{root.BranchName, dep.BranchName}, app.Forge.deletedBranches())

	// ── Verifier saw forge phases first, the sentinel phase second ──

	for _, ticket := range []*models.Ticket{root, dep} {
		verReqs := app.Verifier.requestsFor(ticket.ID)
		require.Len(t, verReqs, 2, "ticket %s", ticket.Title)
		assert.Equal(t, []string{"static", "automated"}, verReqs[0].Phases)
		assert.Equal(t, []string{"sentinel"}, verReqs[1].Phases)
		assert.Equal(t, ticket.BranchName, verReqs[0].BranchName)
	}

	health := app.EngineHealth(t)
	assert.Equal(t, 2, health.TicketsByState["merged"])

	// ═══════════════════════════════════════════════════════
	// Deploy hook closes the merged root out
	// ═══════════════════════════════════════════════════════

	var done models.Ticket
	app.postJSON(t, fmt.Sprintf("/api/v1/tickets/%s/complete", root.ID), nil, &done, http.StatusOK)
	assert.Equal(t, models.StateDone, done.State)

	completed := eventsOfKind(app.TicketEvents(t, root.ID), models.EventKindCompleted)
	assert.Len(t, completed, 1)
}
