package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/forgeworks/swarm/pkg/events"
	"github.com/forgeworks/swarm/pkg/models"
)

// Every transition in this file is a single conditional UPDATE whose WHERE
// clause encodes the legal source state (and owner, where one is required).
// Zero rows updated means another actor moved the ticket first; the caller
// gets (nil, nil) and treats it as a silent no-op. The row update, the
// TicketEvent append and the pg_notify broadcasts share one transaction, so
// either all of them land or none do.

// ReclaimedTicket describes one ticket the reaper returned to its queue.
type ReclaimedTicket struct {
	ID        string
	FromState models.TicketState
	ToState   models.TicketState
	WorkerID  string // owner whose lease lapsed
}

// ClaimNextReady atomically claims the oldest ready ticket for the given
// agent role. Concurrent claimers skip each other's locked rows, so two
// dispatch loops can never claim the same ticket. Returns (nil, nil) when the
// queue is empty.
func (s *TicketStore) ClaimNextReady(ctx context.Context, workerID, assigneeID string) (*models.Ticket, error) {
	query := `UPDATE tickets SET
			state = 'in_progress', worker_id = $1, started_at = now(),
			last_heartbeat = now(), heartbeat_count = 0, updated_at = now()
		WHERE id = (
			SELECT id FROM tickets
			WHERE state = 'ready' AND assignee_kind = 'agent' AND assignee_id = $2 AND worker_id IS NULL
			ORDER BY created_at, id
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + ticketColumns
	return s.transition(ctx, models.EventKindClaimed, models.StateReady,
		func(t *models.Ticket) map[string]any {
			return map[string]any{"worker_id": workerID}
		},
		query, []any{workerID, assigneeID})
}

// ClaimForReview claims one specific in_review ticket for a sentinel pass.
// Returns (nil, nil) when another reviewer got there first.
func (s *TicketStore) ClaimForReview(ctx context.Context, id, workerID string) (*models.Ticket, error) {
	query := `UPDATE tickets SET
			state = 'reviewing', worker_id = $2, last_heartbeat = now(),
			heartbeat_count = 0, updated_at = now()
		WHERE id = $1 AND state = 'in_review' AND worker_id IS NULL
		RETURNING ` + ticketColumns
	return s.transition(ctx, models.EventKindSentinelStarted, models.StateInReview,
		func(t *models.Ticket) map[string]any {
			payload := map[string]any{"worker_id": workerID}
			if t.PRURL != nil {
				payload["pr_url"] = *t.PRURL
			}
			return payload
		},
		query, []any{id, workerID})
}

// MarkVerifying moves an owned in_progress ticket into verification. The
// worker lease is released here: verification progress is tracked by state,
// not by ownership, and a crash mid-verification parks the ticket for the
// reaper-less needs_review path rather than silent reclaim.
func (s *TicketStore) MarkVerifying(ctx context.Context, id, workerID string) (*models.Ticket, error) {
	query := `UPDATE tickets SET
			state = 'verifying', worker_id = NULL, verification_status = 'verifying', updated_at = now()
		WHERE id = $1 AND state = 'in_progress' AND worker_id = $2
		RETURNING ` + ticketColumns
	return s.transition(ctx, models.EventKindVerificationStarted, models.StateInProgress,
		func(t *models.Ticket) map[string]any {
			return map[string]any{"attempt": 1}
		},
		query, []any{id, workerID})
}

// MarkVerificationAttempt records the start of a retry attempt. The ticket is
// already verifying; only the verifier status and the activity log move.
func (s *TicketStore) MarkVerificationAttempt(ctx context.Context, id string, attempt int) (*models.Ticket, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	t, err := scanTicket(tx.QueryRow(ctx,
		`UPDATE tickets SET verification_status = 'verifying', updated_at = now()
		WHERE id = $1 AND state = 'verifying'
		RETURNING `+ticketColumns, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to record verification attempt: %w", err)
	}

	payload := map[string]any{"attempt": attempt}
	if err := s.appendAndNotifyTx(ctx, tx, t, models.EventKindVerificationStarted, nil, nil, payload, false); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit verification attempt: %w", err)
	}
	return t, nil
}

// RecordVerificationFeedback bumps the rejection count and appends the
// verifier's feedback to the activity log, tagged with the attempt number so
// the next generation pass can pull the latest artifact.
func (s *TicketStore) RecordVerificationFeedback(ctx context.Context, id string, attempt int, feedback []string) (*models.Ticket, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	t, err := scanTicket(tx.QueryRow(ctx,
		`UPDATE tickets SET rejection_count = rejection_count + 1, verification_status = 'failed', updated_at = now()
		WHERE id = $1 AND state = 'verifying'
		RETURNING `+ticketColumns, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to record verification feedback: %w", err)
	}

	payload := map[string]any{
		"attempt":  attempt,
		"tag":      fmt.Sprintf("attempt_%d", attempt),
		"feedback": feedback,
	}
	if err := s.appendAndNotifyTx(ctx, tx, t, models.EventKindVerificationFeedback, nil, nil, payload, false); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit verification feedback: %w", err)
	}
	return t, nil
}

// MarkInReview records the opened pull request and hands the ticket to the
// review queue, reassigning it to the sentinel role so review dispatch picks
// it up. Emits pr:created alongside the transition broadcast.
func (s *TicketStore) MarkInReview(ctx context.Context, id, prURL string) (*models.Ticket, error) {
	query := `UPDATE tickets SET
			state = 'in_review', pr_url = $2, verification_status = 'passed',
			assignee_id = '` + models.AgentSentinel + `', updated_at = now()
		WHERE id = $1 AND state = 'verifying'
		RETURNING ` + ticketColumns
	extra := events.PRCreatedPayload{
		Event:     events.EventPRCreated,
		TicketID:  id,
		PRURL:     prURL,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
	return s.transition(ctx, models.EventKindPRCreated, models.StateVerifying,
		func(t *models.Ticket) map[string]any {
			return map[string]any{"pr_url": prURL}
		},
		query, []any{id, prURL}, extra)
}

// MarkNeedsReview parks a ticket for human attention after verification
// retries are exhausted.
func (s *TicketStore) MarkNeedsReview(ctx context.Context, id string) (*models.Ticket, error) {
	query := `UPDATE tickets SET
			state = 'needs_review', verification_status = 'failed', updated_at = now()
		WHERE id = $1 AND state = 'verifying'
		RETURNING ` + ticketColumns
	return s.transition(ctx, models.EventKindNeedsReview, models.StateVerifying,
		func(t *models.Ticket) map[string]any {
			return map[string]any{"rejection_count": t.RejectionCount}
		},
		query, []any{id})
}

// MarkMerged records a successful sentinel merge. The merge is what
// satisfies dependency edges, so callers run the unblock cascade after this
// returns a ticket.
func (s *TicketStore) MarkMerged(ctx context.Context, id, workerID string) (*models.Ticket, error) {
	query := `UPDATE tickets SET
			state = 'merged', worker_id = NULL, merged_at = now(), updated_at = now()
		WHERE id = $1 AND state = 'reviewing' AND worker_id = $2
		RETURNING ` + ticketColumns
	return s.transition(ctx, models.EventKindMerged, models.StateReviewing,
		func(t *models.Ticket) map[string]any {
			payload := map[string]any{}
			if t.PRURL != nil {
				payload["pr_url"] = *t.PRURL
			}
			return payload
		},
		query, []any{id, workerID})
}

// MarkSentinelFailed parks a ticket whose review pass rejected the change.
func (s *TicketStore) MarkSentinelFailed(ctx context.Context, id, workerID, reason string) (*models.Ticket, error) {
	query := `UPDATE tickets SET
			state = 'sentinel_failed', worker_id = NULL, verification_status = 'sentinel_rejected', updated_at = now()
		WHERE id = $1 AND state = 'reviewing' AND worker_id = $2
		RETURNING ` + ticketColumns
	return s.transition(ctx, models.EventKindSentinelRejected, models.StateReviewing,
		func(t *models.Ticket) map[string]any {
			return map[string]any{"reason": reason}
		},
		query, []any{id, workerID})
}

// MarkDone closes out a merged ticket.
func (s *TicketStore) MarkDone(ctx context.Context, id string) (*models.Ticket, error) {
	query := `UPDATE tickets SET state = 'done', updated_at = now()
		WHERE id = $1 AND state = 'merged'
		RETURNING ` + ticketColumns
	return s.transition(ctx, models.EventKindCompleted, models.StateMerged, nil, query, []any{id})
}

// Activate moves a draft into the scheduler's view: ready for root tickets,
// blocked for tickets with unmet dependencies. Activating to ready also
// assigns the forge role so the dispatch queue picks the ticket up.
func (s *TicketStore) Activate(ctx context.Context, id string, to models.TicketState) (*models.Ticket, error) {
	var query string
	switch to {
	case models.StateReady:
		query = `UPDATE tickets SET
				state = 'ready', assignee_kind = 'agent', assignee_id = '` + models.AgentForge + `', updated_at = now()
			WHERE id = $1 AND state = 'draft'
			RETURNING ` + ticketColumns
	case models.StateBlocked:
		query = `UPDATE tickets SET state = 'blocked', updated_at = now()
			WHERE id = $1 AND state = 'draft'
			RETURNING ` + ticketColumns
	default:
		return nil, NewValidationError("state", fmt.Sprintf("draft tickets activate to ready or blocked, not %s", to))
	}
	return s.transition(ctx, models.EventKindActivated, models.StateDraft, nil, query, []any{id})
}

// Unblock releases a blocked ticket whose dependencies are all satisfied,
// assigning the forge role and stamping unblocked_at. Conditional on blocked
// state, so concurrent cascades for sibling dependencies collapse to one
// transition.
func (s *TicketStore) Unblock(ctx context.Context, id, completedDependency string) (*models.Ticket, error) {
	query := `UPDATE tickets SET
			state = 'ready', assignee_kind = 'agent', assignee_id = '` + models.AgentForge + `',
			unblocked_at = now(), updated_at = now()
		WHERE id = $1 AND state = 'blocked'
		RETURNING ` + ticketColumns
	return s.transition(ctx, models.EventKindUnblocked, models.StateBlocked,
		func(t *models.Ticket) map[string]any {
			if completedDependency == "" {
				return nil
			}
			return map[string]any{"completed_dependency": completedDependency}
		},
		query, []any{id})
}

// ReleaseClaim returns an owned in_progress ticket to the ready queue without
// waiting for the stale-lease reaper. Used on graceful shutdown.
func (s *TicketStore) ReleaseClaim(ctx context.Context, id, workerID string) (*models.Ticket, error) {
	query := `UPDATE tickets SET
			state = 'ready', worker_id = NULL, started_at = NULL,
			last_heartbeat = NULL, heartbeat_count = 0, updated_at = now()
		WHERE id = $1 AND state = 'in_progress' AND worker_id = $2
		RETURNING ` + ticketColumns
	return s.transition(ctx, models.EventKindReclaimed, models.StateInProgress,
		func(t *models.Ticket) map[string]any {
			return map[string]any{"worker_id": workerID, "reason": "shutdown"}
		},
		query, []any{id, workerID})
}

// ReleaseReview returns an owned reviewing ticket to the review queue without
// waiting for the stale-lease reaper. Used on graceful shutdown.
func (s *TicketStore) ReleaseReview(ctx context.Context, id, workerID string) (*models.Ticket, error) {
	query := `UPDATE tickets SET
			state = 'in_review', worker_id = NULL, started_at = NULL,
			last_heartbeat = NULL, heartbeat_count = 0, updated_at = now()
		WHERE id = $1 AND state = 'reviewing' AND worker_id = $2
		RETURNING ` + ticketColumns
	return s.transition(ctx, models.EventKindReclaimed, models.StateReviewing,
		func(t *models.Ticket) map[string]any {
			return map[string]any{"worker_id": workerID, "reason": "shutdown"}
		},
		query, []any{id, workerID})
}

// Cancel terminates an active ticket. Terminal tickets are left untouched and
// reported as (nil, nil); a missing id is ErrNotFound.
func (s *TicketStore) Cancel(ctx context.Context, id, reason string) (*models.Ticket, error) {
	return s.terminate(ctx, id, "", models.EventKindCancelled, reason, nil)
}

// Fail cancels a ticket on a permanent execution fault, recording the fault
// reason. Restricted to the executing states so a late failure report cannot
// clobber a ticket another actor already moved on.
func (s *TicketStore) Fail(ctx context.Context, id, workerID, reason string) (*models.Ticket, error) {
	allowed := []models.TicketState{models.StateInProgress, models.StateVerifying}
	return s.terminate(ctx, id, workerID, models.EventKindFailed, reason, allowed)
}

func (s *TicketStore) terminate(ctx context.Context, id, workerID, kind, reason string, allowed []models.TicketState) (*models.Ticket, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	current, err := scanTicket(tx.QueryRow(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("ticket %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock ticket %s: %w", id, err)
	}

	if allowed == nil {
		if !current.State.IsActive() {
			return nil, nil
		}
	} else {
		ok := false
		for _, st := range allowed {
			if current.State == st {
				ok = true
				break
			}
		}
		if !ok {
			return nil, nil
		}
	}
	if workerID != "" && current.WorkerID != nil && *current.WorkerID != workerID {
		return nil, nil
	}

	from := current.State
	t, err := scanTicket(tx.QueryRow(ctx,
		`UPDATE tickets SET state = 'cancelled', worker_id = NULL, updated_at = now()
		WHERE id = $1
		RETURNING `+ticketColumns, id))
	if err != nil {
		return nil, fmt.Errorf("failed to cancel ticket %s: %w", id, err)
	}

	payload := map[string]any{}
	if reason != "" {
		payload["reason"] = reason
	}
	if err := s.appendAndNotifyTx(ctx, tx, t, kind, &from, &t.State, payload, true); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit cancel: %w", err)
	}
	return t, nil
}

// UpdateHeartbeats advances the lease on every in-flight ticket the worker
// owns in one statement. Returns the number of rows touched so the engine can
// spot tickets it lost to the reaper.
func (s *TicketStore) UpdateHeartbeats(ctx context.Context, ids []string, workerID string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	ct, err := s.pool.Exec(ctx,
		`UPDATE tickets SET last_heartbeat = now(), heartbeat_count = heartbeat_count + 1, updated_at = now()
		WHERE id = ANY($1) AND worker_id = $2 AND state = ANY($3)`,
		ids, workerID, stateStrings(models.InFlightStates()))
	if err != nil {
		return 0, fmt.Errorf("failed to update heartbeats: %w", err)
	}
	return ct.RowsAffected(), nil
}

// ReclaimStale returns every in-flight ticket whose heartbeat predates the
// cutoff to its queue. Rows locked by a live claim or a concurrent reaper are
// skipped rather than waited on.
func (s *TicketStore) ReclaimStale(ctx context.Context, cutoff time.Time) ([]ReclaimedTicket, error) {
	cond := `state = ANY($1) AND last_heartbeat IS NOT NULL AND last_heartbeat < $2`
	return s.reclaim(ctx, cond, []any{stateStrings(models.InFlightStates()), cutoff}, "stale_heartbeat")
}

// ReclaimWorkerOrphans returns every in-flight ticket still owned by this
// worker id to its queue, regardless of heartbeat age. Run once at startup so
// a restarted replica's previous leases do not sit out the stale threshold.
func (s *TicketStore) ReclaimWorkerOrphans(ctx context.Context, workerID string) ([]ReclaimedTicket, error) {
	cond := `worker_id = $1 AND state = ANY($2)`
	return s.reclaim(ctx, cond, []any{workerID, stateStrings(models.InFlightStates())}, "startup_orphan")
}

func (s *TicketStore) reclaim(ctx context.Context, cond string, args []any, reason string) ([]ReclaimedTicket, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `WITH stranded AS (
			SELECT id, state AS prev_state, worker_id AS prev_worker
			FROM tickets
			WHERE ` + cond + `
			FOR UPDATE SKIP LOCKED
		)
		UPDATE tickets t SET
			state = CASE s.prev_state WHEN 'in_progress' THEN 'ready' ELSE 'in_review' END,
			worker_id = NULL,
			started_at = NULL,
			last_heartbeat = NULL,
			heartbeat_count = 0,
			updated_at = now()
		FROM stranded s
		WHERE t.id = s.id
		RETURNING t.id, s.prev_state, s.prev_worker, t.state, t.project_id, t.design_session_id, t.tenant_id`

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to reclaim tickets: %w", err)
	}

	type reclaimRow struct {
		reclaimed ReclaimedTicket
		projectID string
		sessionID string
		tenantID  string
	}
	var collected []reclaimRow
	for rows.Next() {
		var r reclaimRow
		var prevWorker *string
		if err := rows.Scan(&r.reclaimed.ID, &r.reclaimed.FromState, &prevWorker,
			&r.reclaimed.ToState, &r.projectID, &r.sessionID, &r.tenantID); err != nil {
			rows.Close()
			return nil, err
		}
		if prevWorker != nil {
			r.reclaimed.WorkerID = *prevWorker
		}
		collected = append(collected, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan reclaimed tickets: %w", err)
	}

	reclaimed := make([]ReclaimedTicket, 0, len(collected))
	for _, r := range collected {
		shell := &models.Ticket{
			ID:              r.reclaimed.ID,
			ProjectID:       r.projectID,
			DesignSessionID: r.sessionID,
			TenantID:        r.tenantID,
			State:           r.reclaimed.ToState,
		}
		payload := map[string]any{"reason": reason}
		if r.reclaimed.WorkerID != "" {
			payload["worker_id"] = r.reclaimed.WorkerID
		}
		from := r.reclaimed.FromState
		to := r.reclaimed.ToState
		if err := s.appendAndNotifyTx(ctx, tx, shell, models.EventKindReclaimed, &from, &to, payload, true); err != nil {
			return nil, err
		}
		reclaimed = append(reclaimed, r.reclaimed)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit reclaim: %w", err)
	}
	return reclaimed, nil
}

// AppendActivity records a non-transition activity event (commits, progress
// milestones) against a ticket.
func (s *TicketStore) AppendActivity(ctx context.Context, t *models.Ticket, kind string, payload map[string]any) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := s.appendAndNotifyTx(ctx, tx, t, kind, nil, nil, payload, false); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit activity: %w", err)
	}
	return nil
}

// transition runs one conditional UPDATE ... RETURNING, appends the matching
// TicketEvent and broadcasts the room notifications, all in one transaction.
// Zero rows updated rolls back and returns (nil, nil).
func (s *TicketStore) transition(ctx context.Context, kind string, from models.TicketState,
	payloadFn func(*models.Ticket) map[string]any, query string, args []any, extras ...any) (*models.Ticket, error) {

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	t, err := scanTicket(tx.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to apply %s transition: %w", kind, err)
	}

	var payload map[string]any
	if payloadFn != nil {
		payload = payloadFn(t)
	}
	fromState := from
	if err := s.appendAndNotifyTx(ctx, tx, t, kind, &fromState, &t.State, payload, true, extras...); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit %s transition: %w", kind, err)
	}
	return t, nil
}

// appendAndNotifyTx inserts the TicketEvent row and broadcasts the room
// notifications inside the caller's transaction. notifyUpdate selects whether
// a ticket:update broadcast accompanies the activity broadcast; only state
// transitions send one.
func (s *TicketStore) appendAndNotifyTx(ctx context.Context, tx pgx.Tx, t *models.Ticket, kind string,
	from, to *models.TicketState, payload map[string]any, notifyUpdate bool, extras ...any) error {

	eventID, createdAt, err := appendEventTx(ctx, tx, t.ID, kind, from, to, payload)
	if err != nil {
		return err
	}

	rooms := events.TicketRooms(t.ID, t.ProjectID, t.DesignSessionID, t.TenantID)
	ts := createdAt.UTC().Format(time.RFC3339Nano)

	if notifyUpdate {
		update := events.TicketUpdatePayload{
			Event:     events.EventTicketUpdate,
			TicketID:  t.ID,
			State:     string(t.State),
			DBEventID: eventID,
			Timestamp: ts,
		}
		if err := events.NotifyTx(ctx, tx, rooms, update); err != nil {
			return err
		}
	}

	activity := events.TicketActivityPayload{
		Event:     events.EventTicketActivity,
		TicketID:  t.ID,
		Kind:      kind,
		Payload:   payload,
		DBEventID: eventID,
		Timestamp: ts,
	}
	if from != nil {
		activity.FromState = string(*from)
	}
	if to != nil {
		activity.ToState = string(*to)
	}
	if err := events.NotifyTx(ctx, tx, rooms, activity); err != nil {
		return err
	}

	for _, extra := range extras {
		if err := events.NotifyTx(ctx, tx, rooms, extra); err != nil {
			return err
		}
	}
	return nil
}

func appendEventTx(ctx context.Context, tx pgx.Tx, ticketID, kind string,
	from, to *models.TicketState, payload map[string]any) (int64, time.Time, error) {

	var payloadJSON []byte
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return 0, time.Time{}, fmt.Errorf("failed to encode event payload: %w", err)
		}
		payloadJSON = b
	}

	var id int64
	var createdAt time.Time
	err := tx.QueryRow(ctx,
		`INSERT INTO ticket_events (ticket_id, kind, from_state, to_state, payload)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		ticketID, kind, from, to, payloadJSON).Scan(&id, &createdAt)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("failed to append ticket event: %w", err)
	}
	return id, createdAt, nil
}

func stateStrings(states []models.TicketState) []string {
	out := make([]string, len(states))
	for i, st := range states {
		out[i] = string(st)
	}
	return out
}
