package store_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgeworks/swarm/pkg/models"
	"github.com/forgeworks/swarm/pkg/store"
	testdb "github.com/forgeworks/swarm/test/database"
)

// ticketFixture controls the seeded row; zero values fall back to a ready
// forge ticket created now.
type ticketFixture struct {
	state         models.TicketState
	assigneeKind  models.AssigneeKind
	assigneeID    string
	workerID      *string
	lastHeartbeat *time.Time
	dependsOn     []string
	createdAt     time.Time
	prURL         *string
}

// seedGraph creates the project and session rows every ticket needs.
func seedGraph(ctx context.Context, t *testing.T, s *store.Store) (*models.Project, *models.Session) {
	t.Helper()
	project, err := s.Projects.Create(ctx, models.CreateProjectRequest{
		TenantID: "tenant-1",
		Name:     "payments-service",
		RepoURL:  "https://github.example.com/acme/payments-service",
	})
	require.NoError(t, err)

	session, err := s.Sessions.Create(ctx, models.CreateSessionRequest{
		TenantID:  "tenant-1",
		ProjectID: project.ID,
		Title:     "Add refunds flow",
	})
	require.NoError(t, err)
	return project, session
}

func insertTicket(ctx context.Context, t *testing.T, pool *pgxpool.Pool, sessionID, projectID string, fx ticketFixture) string {
	t.Helper()
	id := uuid.NewString()

	if fx.state == "" {
		fx.state = models.StateReady
	}
	if fx.assigneeKind == "" {
		fx.assigneeKind = models.AssigneeAgent
	}
	if fx.assigneeID == "" {
		fx.assigneeID = models.AgentForge
	}
	if fx.createdAt.IsZero() {
		fx.createdAt = time.Now().UTC()
	}
	if fx.dependsOn == nil {
		fx.dependsOn = []string{}
	}

	_, err := pool.Exec(ctx,
		`INSERT INTO tickets (id, design_session_id, project_id, tenant_id, title, acceptance_criteria,
			assignee_kind, assignee_id, worker_id, state, depends_on, last_heartbeat, pr_url, created_at, updated_at)
		VALUES ($1, $2, $3, 'tenant-1', $4, '[]', $5, $6, $7, $8, $9, $10, $11, $12, $12)`,
		id, sessionID, projectID, "ticket "+id[:8],
		fx.assigneeKind, fx.assigneeID, fx.workerID, fx.state, fx.dependsOn,
		fx.lastHeartbeat, fx.prURL, fx.createdAt)
	require.NoError(t, err)
	return id
}

func eventKinds(ctx context.Context, t *testing.T, s *store.Store, ticketID string) []string {
	t.Helper()
	evs, err := s.Events.ListByTicket(ctx, ticketID, 0)
	require.NoError(t, err)
	kinds := make([]string, len(evs))
	for i, e := range evs {
		kinds[i] = e.Kind
	}
	return kinds
}

func strPtr(s string) *string { return &s }

func timePtr(ts time.Time) *time.Time { return &ts }

func TestClaimNextReady(t *testing.T) {
	s := testdb.NewTestStore(t)
	ctx := context.Background()
	project, session := seedGraph(ctx, t, s)

	id := insertTicket(ctx, t, s.Pool(), session.ID, project.ID, ticketFixture{})

	claimed, err := s.Tickets.ClaimNextReady(ctx, "pod-a", models.AgentForge)
	require.NoError(t, err)
	require.NotNil(t, claimed, "the ready ticket should be claimed")
	assert.Equal(t, id, claimed.ID)
	assert.Equal(t, models.StateInProgress, claimed.State)
	require.NotNil(t, claimed.WorkerID)
	assert.Equal(t, "pod-a", *claimed.WorkerID)
	require.NotNil(t, claimed.StartedAt)
	require.NotNil(t, claimed.LastHeartbeat)
	assert.Equal(t, 0, claimed.HeartbeatCount)

	// Queue is now empty.
	claimed2, err := s.Tickets.ClaimNextReady(ctx, "pod-a", models.AgentForge)
	require.NoError(t, err)
	assert.Nil(t, claimed2, "no more ready tickets should be available")

	assert.Equal(t, []string{"claimed"}, eventKinds(ctx, t, s, id))
}

func TestClaimNextReadyOrdersByCreation(t *testing.T) {
	s := testdb.NewTestStore(t)
	ctx := context.Background()
	project, session := seedGraph(ctx, t, s)

	base := time.Now().UTC().Add(-time.Hour)
	second := insertTicket(ctx, t, s.Pool(), session.ID, project.ID, ticketFixture{createdAt: base.Add(time.Minute)})
	first := insertTicket(ctx, t, s.Pool(), session.ID, project.ID, ticketFixture{createdAt: base})
	_ = second

	claimed, err := s.Tickets.ClaimNextReady(ctx, "pod-a", models.AgentForge)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, first, claimed.ID, "oldest ticket should be claimed first")
}

func TestClaimNextReadySkipsHumanAndForeignRoles(t *testing.T) {
	s := testdb.NewTestStore(t)
	ctx := context.Background()
	project, session := seedGraph(ctx, t, s)

	insertTicket(ctx, t, s.Pool(), session.ID, project.ID, ticketFixture{
		assigneeKind: models.AssigneeHuman, assigneeID: "alice",
	})
	insertTicket(ctx, t, s.Pool(), session.ID, project.ID, ticketFixture{
		assigneeID: models.AgentSentinel,
	})

	claimed, err := s.Tickets.ClaimNextReady(ctx, "pod-a", models.AgentForge)
	require.NoError(t, err)
	assert.Nil(t, claimed, "human-assigned and other-role tickets must not be claimed")
}

func TestConcurrentClaimsDistinctTickets(t *testing.T) {
	s := testdb.NewTestStore(t)
	ctx := context.Background()
	project, session := seedGraph(ctx, t, s)

	ids := make(map[string]struct{})
	for i := 0; i < 5; i++ {
		id := insertTicket(ctx, t, s.Pool(), session.ID, project.ID, ticketFixture{})
		ids[id] = struct{}{}
	}

	var mu sync.Mutex
	claimed := make([]string, 0, 5)
	errCh := make(chan error, 5)
	var wg sync.WaitGroup

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			ticket, err := s.Tickets.ClaimNextReady(ctx, fmt.Sprintf("pod-%d", n), models.AgentForge)
			if err != nil {
				errCh <- fmt.Errorf("claimer %d failed: %w", n, err)
				return
			}
			if ticket == nil {
				errCh <- fmt.Errorf("claimer %d got no ticket", n)
				return
			}
			mu.Lock()
			claimed = append(claimed, ticket.ID)
			mu.Unlock()
		}(i)
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		require.NoError(t, err)
	}

	assert.Len(t, claimed, 5, "all 5 tickets should be claimed")
	seen := make(map[string]struct{})
	for _, id := range claimed {
		_, dup := seen[id]
		assert.False(t, dup, "ticket %s claimed by multiple workers", id)
		seen[id] = struct{}{}
		_, ok := ids[id]
		assert.True(t, ok, "claimed ticket %s was not seeded", id)
	}
}

func TestTransitionIsSilentNoOpWhenStateMoved(t *testing.T) {
	s := testdb.NewTestStore(t)
	ctx := context.Background()
	project, session := seedGraph(ctx, t, s)

	// Ticket sits in ready; a merge is only legal from reviewing.
	id := insertTicket(ctx, t, s.Pool(), session.ID, project.ID, ticketFixture{})

	ticket, err := s.Tickets.MarkMerged(ctx, id, "pod-a")
	require.NoError(t, err)
	assert.Nil(t, ticket, "merge from ready must be a no-op")

	current, err := s.Tickets.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StateReady, current.State)
	assert.Empty(t, eventKinds(ctx, t, s, id), "no-op transitions must not append events")
}

func TestForgeLifecycleEventPerTransition(t *testing.T) {
	s := testdb.NewTestStore(t)
	ctx := context.Background()
	project, session := seedGraph(ctx, t, s)

	id := insertTicket(ctx, t, s.Pool(), session.ID, project.ID, ticketFixture{})

	claimed, err := s.Tickets.ClaimNextReady(ctx, "pod-a", models.AgentForge)
	require.NoError(t, err)
	require.NotNil(t, claimed)

	verifying, err := s.Tickets.MarkVerifying(ctx, id, "pod-a")
	require.NoError(t, err)
	require.NotNil(t, verifying)
	assert.Nil(t, verifying.WorkerID, "verification releases the worker lease")
	assert.Equal(t, models.VerificationVerifying, verifying.VerificationStatus)

	inReview, err := s.Tickets.MarkInReview(ctx, id, "https://github.example.com/acme/pr/7")
	require.NoError(t, err)
	require.NotNil(t, inReview)
	assert.Equal(t, models.StateInReview, inReview.State)
	assert.Equal(t, models.VerificationPassed, inReview.VerificationStatus)
	assert.Equal(t, models.AgentSentinel, inReview.AssigneeID, "review handoff reassigns to the sentinel role")
	require.NotNil(t, inReview.PRURL)

	queued, err := s.Tickets.ListReviewQueue(ctx, models.AgentSentinel, 10)
	require.NoError(t, err)
	require.Len(t, queued, 1, "the handed-off ticket should surface in the sentinel queue")
	assert.Equal(t, id, queued[0].ID)

	reviewing, err := s.Tickets.ClaimForReview(ctx, id, "pod-b")
	require.NoError(t, err)
	require.NotNil(t, reviewing)
	assert.Equal(t, models.StateReviewing, reviewing.State)

	merged, err := s.Tickets.MarkMerged(ctx, id, "pod-b")
	require.NoError(t, err)
	require.NotNil(t, merged)
	assert.Nil(t, merged.WorkerID)
	require.NotNil(t, merged.MergedAt)

	done, err := s.Tickets.MarkDone(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, done)

	assert.Equal(t,
		[]string{"claimed", "verification_started", "pr_created", "sentinel_started", "merged", "completed"},
		eventKinds(ctx, t, s, id),
		"exactly one event per transition, in order")
}

func TestClaimForReviewSecondReviewerLoses(t *testing.T) {
	s := testdb.NewTestStore(t)
	ctx := context.Background()
	project, session := seedGraph(ctx, t, s)

	id := insertTicket(ctx, t, s.Pool(), session.ID, project.ID, ticketFixture{
		state:      models.StateInReview,
		assigneeID: models.AgentSentinel,
		prURL:      strPtr("https://github.example.com/acme/pr/9"),
	})

	first, err := s.Tickets.ClaimForReview(ctx, id, "pod-a")
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := s.Tickets.ClaimForReview(ctx, id, "pod-b")
	require.NoError(t, err)
	assert.Nil(t, second, "second reviewer must lose the claim race")
}

func TestVerificationFeedbackIncrementsRejections(t *testing.T) {
	s := testdb.NewTestStore(t)
	ctx := context.Background()
	project, session := seedGraph(ctx, t, s)

	id := insertTicket(ctx, t, s.Pool(), session.ID, project.ID, ticketFixture{state: models.StateVerifying})

	for attempt := 1; attempt <= 2; attempt++ {
		ticket, err := s.Tickets.RecordVerificationFeedback(ctx, id, attempt,
			[]string{"criterion 2 not covered by tests"})
		require.NoError(t, err)
		require.NotNil(t, ticket)
		assert.Equal(t, attempt, ticket.RejectionCount)
		assert.Equal(t, models.VerificationFailed, ticket.VerificationStatus)
	}

	latest, err := s.Events.LatestByKind(ctx, id, models.EventKindVerificationFeedback)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "attempt_2", latest.Payload["tag"])
	assert.Equal(t, float64(2), latest.Payload["attempt"])
}

func TestReclaimStaleStrictThreshold(t *testing.T) {
	s := testdb.NewTestStore(t)
	ctx := context.Background()
	project, session := seedGraph(ctx, t, s)

	cutoff := time.Now().UTC().Add(-5 * time.Minute)

	stale := insertTicket(ctx, t, s.Pool(), session.ID, project.ID, ticketFixture{
		state: models.StateInProgress, workerID: strPtr("crashed-pod"),
		lastHeartbeat: timePtr(cutoff.Add(-time.Second)),
	})
	staleReview := insertTicket(ctx, t, s.Pool(), session.ID, project.ID, ticketFixture{
		state: models.StateReviewing, workerID: strPtr("crashed-pod"),
		assigneeID:    models.AgentSentinel,
		lastHeartbeat: timePtr(cutoff.Add(-time.Minute)),
		prURL:         strPtr("https://github.example.com/acme/pr/4"),
	})
	boundary := insertTicket(ctx, t, s.Pool(), session.ID, project.ID, ticketFixture{
		state: models.StateInProgress, workerID: strPtr("live-pod"),
		lastHeartbeat: timePtr(cutoff),
	})
	fresh := insertTicket(ctx, t, s.Pool(), session.ID, project.ID, ticketFixture{
		state: models.StateInProgress, workerID: strPtr("live-pod"),
		lastHeartbeat: timePtr(time.Now().UTC()),
	})

	reclaimed, err := s.Tickets.ReclaimStale(ctx, cutoff)
	require.NoError(t, err)
	require.Len(t, reclaimed, 2)

	byID := make(map[string]store.ReclaimedTicket)
	for _, r := range reclaimed {
		byID[r.ID] = r
	}
	assert.Equal(t, models.StateReady, byID[stale].ToState, "forge work returns to the ready queue")
	assert.Equal(t, models.StateInReview, byID[staleReview].ToState, "sentinel work returns to the review queue")
	assert.Equal(t, "crashed-pod", byID[stale].WorkerID)

	reclaimedTicket, err := s.Tickets.GetByID(ctx, stale)
	require.NoError(t, err)
	assert.Nil(t, reclaimedTicket.WorkerID)
	assert.Nil(t, reclaimedTicket.LastHeartbeat)
	assert.Equal(t, 0, reclaimedTicket.HeartbeatCount)
	assert.Equal(t, []string{"reclaimed"}, eventKinds(ctx, t, s, stale))

	// Heartbeat exactly at the cutoff is not stale; threshold is strict.
	boundaryTicket, err := s.Tickets.GetByID(ctx, boundary)
	require.NoError(t, err)
	assert.Equal(t, models.StateInProgress, boundaryTicket.State)

	freshTicket, err := s.Tickets.GetByID(ctx, fresh)
	require.NoError(t, err)
	assert.Equal(t, models.StateInProgress, freshTicket.State)
}

func TestReclaimWorkerOrphans(t *testing.T) {
	s := testdb.NewTestStore(t)
	ctx := context.Background()
	project, session := seedGraph(ctx, t, s)

	now := time.Now().UTC()
	mine := insertTicket(ctx, t, s.Pool(), session.ID, project.ID, ticketFixture{
		state: models.StateInProgress, workerID: strPtr("pod-a"), lastHeartbeat: timePtr(now),
	})
	other := insertTicket(ctx, t, s.Pool(), session.ID, project.ID, ticketFixture{
		state: models.StateInProgress, workerID: strPtr("pod-b"), lastHeartbeat: timePtr(now),
	})

	reclaimed, err := s.Tickets.ReclaimWorkerOrphans(ctx, "pod-a")
	require.NoError(t, err)
	require.Len(t, reclaimed, 1)
	assert.Equal(t, mine, reclaimed[0].ID)

	otherTicket, err := s.Tickets.GetByID(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, models.StateInProgress, otherTicket.State, "other pod's ticket must be untouched")
	require.NotNil(t, otherTicket.WorkerID)
}

func TestUpdateHeartbeatsOnlyOwnedInFlight(t *testing.T) {
	s := testdb.NewTestStore(t)
	ctx := context.Background()
	project, session := seedGraph(ctx, t, s)

	old := time.Now().UTC().Add(-time.Minute)
	owned := insertTicket(ctx, t, s.Pool(), session.ID, project.ID, ticketFixture{
		state: models.StateInProgress, workerID: strPtr("pod-a"), lastHeartbeat: timePtr(old),
	})
	foreign := insertTicket(ctx, t, s.Pool(), session.ID, project.ID, ticketFixture{
		state: models.StateInProgress, workerID: strPtr("pod-b"), lastHeartbeat: timePtr(old),
	})
	ready := insertTicket(ctx, t, s.Pool(), session.ID, project.ID, ticketFixture{})

	n, err := s.Tickets.UpdateHeartbeats(ctx, []string{owned, foreign, ready}, "pod-a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	ownedTicket, err := s.Tickets.GetByID(ctx, owned)
	require.NoError(t, err)
	assert.Equal(t, 1, ownedTicket.HeartbeatCount)
	require.NotNil(t, ownedTicket.LastHeartbeat)
	assert.True(t, ownedTicket.LastHeartbeat.After(old))

	foreignTicket, err := s.Tickets.GetByID(ctx, foreign)
	require.NoError(t, err)
	assert.Equal(t, 0, foreignTicket.HeartbeatCount, "another worker's lease must not be advanced")
}

func TestUnblockIsIdempotent(t *testing.T) {
	s := testdb.NewTestStore(t)
	ctx := context.Background()
	project, session := seedGraph(ctx, t, s)

	dep := insertTicket(ctx, t, s.Pool(), session.ID, project.ID, ticketFixture{state: models.StateMerged})
	id := insertTicket(ctx, t, s.Pool(), session.ID, project.ID, ticketFixture{
		state: models.StateBlocked, dependsOn: []string{dep},
	})

	first, err := s.Tickets.Unblock(ctx, id, dep)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, models.StateReady, first.State)
	assert.Equal(t, models.AgentForge, first.AssigneeID)
	require.NotNil(t, first.UnblockedAt)

	second, err := s.Tickets.Unblock(ctx, id, dep)
	require.NoError(t, err)
	assert.Nil(t, second, "repeat unblock must be a no-op")

	assert.Equal(t, []string{"unblocked"}, eventKinds(ctx, t, s, id))
}

func TestCancelStates(t *testing.T) {
	s := testdb.NewTestStore(t)
	ctx := context.Background()
	project, session := seedGraph(ctx, t, s)

	active := insertTicket(ctx, t, s.Pool(), session.ID, project.ID, ticketFixture{
		state: models.StateInProgress, workerID: strPtr("pod-a"),
	})
	terminal := insertTicket(ctx, t, s.Pool(), session.ID, project.ID, ticketFixture{state: models.StateDone})

	cancelled, err := s.Tickets.Cancel(ctx, active, "operator request")
	require.NoError(t, err)
	require.NotNil(t, cancelled)
	assert.Equal(t, models.StateCancelled, cancelled.State)
	assert.Nil(t, cancelled.WorkerID)

	noop, err := s.Tickets.Cancel(ctx, terminal, "operator request")
	require.NoError(t, err)
	assert.Nil(t, noop, "terminal tickets must not be cancelled")

	_, err = s.Tickets.Cancel(ctx, uuid.NewString(), "operator request")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCreateDraftsRoundTrip(t *testing.T) {
	s := testdb.NewTestStore(t)
	ctx := context.Background()
	project, session := seedGraph(ctx, t, s)

	depID := uuid.NewString()
	ticket := &models.Ticket{
		ID:              uuid.NewString(),
		DesignSessionID: session.ID,
		ProjectID:       project.ID,
		TenantID:        "tenant-1",
		Title:           "Wire refund endpoint",
		Description:     "POST /refunds with idempotency key",
		AcceptanceCriteria: []models.AcceptanceCriterion{
			{ID: "ac-1", Text: "returns 201 on success"},
			{ID: "ac-2", Text: "rejects duplicate idempotency keys"},
		},
		HintFiles:    []string{"internal/api/refunds.go"},
		RAGContext:   &models.RAGContext{FilesToCreate: []string{"internal/api/refunds.go"}},
		AssigneeKind: models.AssigneeAgent,
		AssigneeID:   models.AgentForge,
		DependsOn:    []string{depID},
		BranchName:   "swarm/wire-refund-endpoint",
	}
	dep := &models.Ticket{
		ID:              depID,
		DesignSessionID: session.ID,
		ProjectID:       project.ID,
		TenantID:        "tenant-1",
		Title:           "Add refund table migration",
		AssigneeKind:    models.AssigneeAgent,
		AssigneeID:      models.AgentForge,
		BranchName:      "swarm/add-refund-table-migration",
	}
	require.NoError(t, s.Tickets.CreateDrafts(ctx, []*models.Ticket{dep, ticket}))

	got, err := s.Tickets.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateDraft, got.State)
	assert.Equal(t, ticket.AcceptanceCriteria, got.AcceptanceCriteria)
	assert.Equal(t, ticket.HintFiles, got.HintFiles)
	require.NotNil(t, got.RAGContext)
	assert.Equal(t, []string{"internal/api/refunds.go"}, got.RAGContext.FilesToCreate)
	assert.Equal(t, []string{depID}, got.DependsOn)
	assert.False(t, got.IsRoot())

	gotDep, err := s.Tickets.GetByID(ctx, depID)
	require.NoError(t, err)
	assert.True(t, gotDep.IsRoot())
	assert.Empty(t, gotDep.DependsOn)

	assert.Equal(t, []string{"created"}, eventKinds(ctx, t, s, ticket.ID))
}

func TestActivate(t *testing.T) {
	s := testdb.NewTestStore(t)
	ctx := context.Background()
	project, session := seedGraph(ctx, t, s)

	root := insertTicket(ctx, t, s.Pool(), session.ID, project.ID, ticketFixture{
		state: models.StateDraft, assigneeID: models.AgentForge,
	})
	dependent := insertTicket(ctx, t, s.Pool(), session.ID, project.ID, ticketFixture{
		state: models.StateDraft, dependsOn: []string{root},
	})

	readyTicket, err := s.Tickets.Activate(ctx, root, models.StateReady)
	require.NoError(t, err)
	require.NotNil(t, readyTicket)
	assert.Equal(t, models.AssigneeAgent, readyTicket.AssigneeKind)
	assert.Equal(t, models.AgentForge, readyTicket.AssigneeID)

	blockedTicket, err := s.Tickets.Activate(ctx, dependent, models.StateBlocked)
	require.NoError(t, err)
	require.NotNil(t, blockedTicket)
	assert.Equal(t, models.StateBlocked, blockedTicket.State)

	_, err = s.Tickets.Activate(ctx, root, models.StateMerged)
	assert.ErrorIs(t, err, store.ErrInvalidInput)
}

func TestTransitionNotifiesTicketRoom(t *testing.T) {
	shared := testdb.NewSharedTestDB(t)
	s := store.New(shared.NewPool(t))
	ctx := context.Background()
	project, session := seedGraph(ctx, t, s)

	id := insertTicket(ctx, t, s.Pool(), session.ID, project.ID, ticketFixture{})

	listener := newRoomListener(ctx, t, shared.ConnString(), "ticket:"+id)

	claimed, err := s.Tickets.ClaimNextReady(ctx, "pod-a", models.AgentForge)
	require.NoError(t, err)
	require.NotNil(t, claimed)

	// One ticket:update and one ticket:activity per transition, update first.
	first := listener.next(t, 5*time.Second)
	assert.Contains(t, first, `"event":"ticket:update"`)
	assert.Contains(t, first, `"state":"in_progress"`)

	second := listener.next(t, 5*time.Second)
	assert.Contains(t, second, `"event":"ticket:activity"`)
	assert.Contains(t, second, `"kind":"claimed"`)
}

// roomListener holds a dedicated LISTEN connection on one room channel.
type roomListener struct {
	conn *pgx.Conn
}

func newRoomListener(ctx context.Context, t *testing.T, connStr, room string) *roomListener {
	t.Helper()
	conn, err := pgx.Connect(ctx, connStr)
	require.NoError(t, err)
	_, err = conn.Exec(ctx, "LISTEN "+pgx.Identifier{room}.Sanitize())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close(context.Background()) })
	return &roomListener{conn: conn}
}

func (l *roomListener) next(t *testing.T, timeout time.Duration) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	n, err := l.conn.WaitForNotification(ctx)
	require.NoError(t, err, "timed out waiting for notification")
	return n.Payload
}
