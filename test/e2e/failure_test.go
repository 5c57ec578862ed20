package e2e

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgeworks/swarm/pkg/models"
)

// ────────────────────────────────────────────────────────────
// Failure tests — verification keeps rejecting, or the sentinel does.
//
// Exhaustion: the verifier rejects every forge attempt, so the ticket must
// park in needs_review with each attempt's feedback on the activity log and
// the accumulated feedback fed back into each regeneration. Rejection: the
// forge attempt passes but the sentinel gate refuses the pull request, so
// the PR must stay open and unmerged. In both cases the dependent ticket
// stays blocked because nothing merged.
// ────────────────────────────────────────────────────────────

func TestE2E_VerificationExhaustion(t *testing.T) {
	app := NewTestApp(t)

	app.Verifier.Script(
		verdictFail("tests cover the happy path only"),
		verdictFail("race detector trips on the ledger map"),
		verdictFail("race still present"),
	)

	app.Planner.Plan(
		models.TicketDraft{Title: "Add ledger cache"},
		models.TicketDraft{Title: "Expose ledger cache stats", DependsOn: []string{"Add ledger cache"}},
	)

	project := app.CreateProject(t, "payments")
	session := app.CreateSession(t, project.ID, "Ledger cache")
	gen := app.GenerateTickets(t, session.ID)
	require.Equal(t, 1, gen.ReadyCount)
	require.Equal(t, 1, gen.BlockedCount)

	root := app.TicketByTitle(t, session.ID, "Add ledger cache")
	dep := app.TicketByTitle(t, session.ID, "Expose ledger cache stats")

	app.AwaitTicketState(t, root.ID, models.StateNeedsReview)

	// ── Three attempts, each regeneration fed the prior feedback ──

	genReqs := app.Codegen.requestsFor(root.ID)
	require.Len(t, genReqs, 3)
	assert.Empty(t, genReqs[0].Feedback)
	assert.Equal(t, []string{"tests cover the happy path only"}, genReqs[1].Feedback)
	assert.Equal(t, []string{
		"tests cover the happy path only",
		"race detector trips on the ledger map",
	}, genReqs[2].Feedback)

	verReqs := app.Verifier.requestsFor(root.ID)
	require.Len(t, verReqs, 3)
	for i, req := range verReqs {
		assert.Equal(t, []string{"static", "automated"}, req.Phases)
		assert.Equal(t, i+1, req.Attempt)
	}

	// ── The parked row carries the full rejection history ──

	root = app.GetTicket(t, root.ID)
	assert.Equal(t, 3, root.RejectionCount)
	assert.Equal(t, models.VerificationFailed, root.VerificationStatus)
	assert.Nil(t, root.PRURL)

	events := app.TicketEvents(t, root.ID)

	rejects := eventsOfKind(events, models.EventKindVerificationFeedback)
	require.Len(t, rejects, 3)
	assert.Equal(t, "attempt_1", rejects[0].Payload["tag"])
	assert.Equal(t, "attempt_3", rejects[2].Payload["tag"])
	assert.Equal(t, []any{"race still present"}, rejects[2].Payload["feedback"])

	parked := eventsOfKind(events, models.EventKindNeedsReview)
	require.Len(t, parked, 1)
	assert.EqualValues(t, 3, parked[0].Payload["rejection_count"])

	// ── No PR, no merge, and the dependent never moved ──

	assert.Empty(t, app.Forge.prCreated())
	assert.Equal(t, models.StateBlocked, app.GetTicket(t, dep.ID).State)

	health := app.EngineHealth(t)
	assert.Equal(t, 1, health.TicketsByState["needs_review"])
	assert.Equal(t, 1, health.TicketsByState["blocked"])
}

func TestE2E_SentinelRejection(t *testing.T) {
	app := NewTestApp(t)

	// Forge verification passes; the sentinel gate on the PR does not.
	app.Verifier.Script(
		verdictPass(),
		verdictFail("refund applied twice", "missing idempotency key"),
	)

	app.Planner.Plan(
		models.TicketDraft{Title: "Apply refunds idempotently"},
		models.TicketDraft{Title: "Backfill refund dedupe keys", DependsOn: []string{"Apply refunds idempotently"}},
	)

	project := app.CreateProject(t, "payments")
	session := app.CreateSession(t, project.ID, "Refund dedupe")
	app.GenerateTickets(t, session.ID)

	root := app.TicketByTitle(t, session.ID, "Apply refunds idempotently")
	dep := app.TicketByTitle(t, session.ID, "Backfill refund dedupe keys")

	app.AwaitTicketState(t, root.ID, models.StateSentinelFailed)
	app.AwaitTicketReleased(t, root.ID)

	// ── The PR exists, open and unmerged, with the branch intact ──

	root = app.GetTicket(t, root.ID)
	require.NotNil(t, root.PRURL)
	assert.Nil(t, root.MergedAt)
	assert.Equal(t, models.VerificationSentinelRejected, root.VerificationStatus)
	assert.Equal(t, 0, root.RejectionCount)

	pr := app.Forge.prByHead(root.BranchName)
	require.NotNil(t, pr)
	assert.False(t, pr.Merged)
	assert.Empty(t, app.Forge.mergeCalls())
	assert.Empty(t, app.Forge.deletedBranches())

	content := runGit(t, app.OriginDir, "show", root.BranchName+":"+ticketFilePath(root.ID))
	assert.Contains(t, content, root.Title)

	// ── The rejection reason reaches the activity log verbatim ──

	events := app.TicketEvents(t, root.ID)
	rejected := eventsOfKind(events, models.EventKindSentinelRejected)
	require.Len(t, rejected, 1)
	assert.Equal(t, "refund applied twice; missing idempotency key", rejected[0].Payload["reason"])

	kinds := eventKinds(events)
	assert.Contains(t, kinds, models.EventKindPRCreated)
	assert.Contains(t, kinds, models.EventKindSentinelStarted)
	assert.NotContains(t, kinds, models.EventKindMerged)

	// ── Nothing merged, so the dependent stays blocked ──

	dep = app.GetTicket(t, dep.ID)
	assert.Equal(t, models.StateBlocked, dep.State)
	assert.Nil(t, dep.UnblockedAt)
	assert.Empty(t, eventsOfKind(app.TicketEvents(t, dep.ID), models.EventKindUnblocked))
}
