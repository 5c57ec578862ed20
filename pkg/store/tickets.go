package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/forgeworks/swarm/pkg/models"
)

// ticketColumns is the canonical select list; scanTicket depends on this order.
const ticketColumns = `id, design_session_id, project_id, tenant_id, title, description,
	acceptance_criteria, hint_files, rag_context, assignee_kind, assignee_id, worker_id,
	state, verification_status, rejection_count, depends_on, repo_url, branch_name, pr_url,
	merged_at, started_at, last_heartbeat, heartbeat_count, created_at, updated_at, unblocked_at`

// TicketStore provides ticket persistence and the conditional-update
// transition primitives.
type TicketStore struct {
	pool *pgxpool.Pool
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTicket(row scanner) (*models.Ticket, error) {
	var t models.Ticket
	var criteriaJSON, hintJSON, ragJSON []byte

	err := row.Scan(
		&t.ID, &t.DesignSessionID, &t.ProjectID, &t.TenantID, &t.Title, &t.Description,
		&criteriaJSON, &hintJSON, &ragJSON, &t.AssigneeKind, &t.AssigneeID, &t.WorkerID,
		&t.State, &t.VerificationStatus, &t.RejectionCount, &t.DependsOn, &t.RepoURL,
		&t.BranchName, &t.PRURL, &t.MergedAt, &t.StartedAt, &t.LastHeartbeat,
		&t.HeartbeatCount, &t.CreatedAt, &t.UpdatedAt, &t.UnblockedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(criteriaJSON) > 0 {
		if err := json.Unmarshal(criteriaJSON, &t.AcceptanceCriteria); err != nil {
			return nil, fmt.Errorf("failed to decode acceptance criteria: %w", err)
		}
	}
	if len(hintJSON) > 0 {
		if err := json.Unmarshal(hintJSON, &t.HintFiles); err != nil {
			return nil, fmt.Errorf("failed to decode hint files: %w", err)
		}
	}
	if len(ragJSON) > 0 {
		if err := json.Unmarshal(ragJSON, &t.RAGContext); err != nil {
			return nil, fmt.Errorf("failed to decode rag context: %w", err)
		}
	}
	return &t, nil
}

func collectTickets(rows pgx.Rows) ([]*models.Ticket, error) {
	defer rows.Close()
	var tickets []*models.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

func marshalNullable(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

// CreateDrafts inserts a batch of tickets in draft state inside one
// transaction and appends a created event per ticket. Creation timestamps are
// taken per insert so FIFO claiming preserves generator order.
func (s *TicketStore) CreateDrafts(ctx context.Context, tickets []*models.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, t := range tickets {
		if t.Title == "" {
			return NewValidationError("title", "must not be empty")
		}

		criteriaJSON, err := json.Marshal(t.AcceptanceCriteria)
		if err != nil {
			return fmt.Errorf("failed to encode acceptance criteria: %w", err)
		}
		hintJSON, err := marshalNullable(nilIfEmptyStrings(t.HintFiles))
		if err != nil {
			return fmt.Errorf("failed to encode hint files: %w", err)
		}
		ragJSON, err := marshalNullable(nilIfNilRAG(t.RAGContext))
		if err != nil {
			return fmt.Errorf("failed to encode rag context: %w", err)
		}

		now := time.Now().UTC()
		t.State = models.StateDraft
		t.VerificationStatus = models.VerificationUnverified
		t.CreatedAt = now
		t.UpdatedAt = now
		if t.DependsOn == nil {
			t.DependsOn = []string{}
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO tickets (id, design_session_id, project_id, tenant_id, title, description,
				acceptance_criteria, hint_files, rag_context, assignee_kind, assignee_id,
				state, verification_status, depends_on, repo_url, branch_name, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
			t.ID, t.DesignSessionID, t.ProjectID, t.TenantID, t.Title, t.Description,
			criteriaJSON, hintJSON, ragJSON, t.AssigneeKind, t.AssigneeID,
			t.State, t.VerificationStatus, t.DependsOn, t.RepoURL, t.BranchName, t.CreatedAt, t.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert ticket %q: %w", t.Title, err)
		}

		if err := s.appendAndNotifyTx(ctx, tx, t, models.EventKindCreated, nil, nil,
			map[string]any{"title": t.Title, "depends_on": t.DependsOn}, false); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit draft batch: %w", err)
	}
	return nil
}

func nilIfEmptyStrings(v []string) any {
	if len(v) == 0 {
		return nil
	}
	return v
}

func nilIfNilRAG(v *models.RAGContext) any {
	if v == nil {
		return nil
	}
	return v
}

// GetByID fetches one ticket.
func (s *TicketStore) GetByID(ctx context.Context, id string) (*models.Ticket, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = $1`, id)
	t, err := scanTicket(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("ticket %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket %s: %w", id, err)
	}
	return t, nil
}

// List returns tickets matching the filters, newest sessions first within
// FIFO order, plus a total count for paging.
func (s *TicketStore) List(ctx context.Context, filters models.TicketFilters) (*models.TicketListResponse, error) {
	where := []string{}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filters.SessionID != "" {
		where = append(where, "design_session_id = "+arg(filters.SessionID))
	}
	if filters.ProjectID != "" {
		where = append(where, "project_id = "+arg(filters.ProjectID))
	}
	if filters.TenantID != "" {
		where = append(where, "tenant_id = "+arg(filters.TenantID))
	}
	if filters.State != "" {
		where = append(where, "state = "+arg(filters.State))
	}
	if filters.AssigneeID != "" {
		where = append(where, "assignee_id = "+arg(filters.AssigneeID))
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tickets`+whereClause, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count tickets: %w", err)
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	offset := filters.Offset
	if offset < 0 {
		offset = 0
	}

	query := `SELECT ` + ticketColumns + ` FROM tickets` + whereClause +
		` ORDER BY created_at, id LIMIT ` + arg(limit) + ` OFFSET ` + arg(offset)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	tickets, err := collectTickets(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan tickets: %w", err)
	}

	return &models.TicketListResponse{
		Tickets:    tickets,
		TotalCount: total,
		Limit:      limit,
		Offset:     offset,
	}, nil
}

// ListDraftsBySession returns the session's draft tickets for the activation
// pass, in creation order.
func (s *TicketStore) ListDraftsBySession(ctx context.Context, sessionID string) ([]*models.Ticket, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+ticketColumns+` FROM tickets
		WHERE design_session_id = $1 AND state = $2
		ORDER BY created_at, id`,
		sessionID, models.StateDraft)
	if err != nil {
		return nil, fmt.Errorf("failed to list drafts: %w", err)
	}
	return collectTickets(rows)
}

// ListBlockedBySession returns the session's blocked tickets, the cascade's
// candidate set.
func (s *TicketStore) ListBlockedBySession(ctx context.Context, sessionID string) ([]*models.Ticket, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+ticketColumns+` FROM tickets
		WHERE design_session_id = $1 AND state = $2
		ORDER BY created_at, id`,
		sessionID, models.StateBlocked)
	if err != nil {
		return nil, fmt.Errorf("failed to list blocked tickets: %w", err)
	}
	return collectTickets(rows)
}

// ListReviewQueue returns unclaimed in_review tickets for an agent role,
// least recently updated first.
func (s *TicketStore) ListReviewQueue(ctx context.Context, assigneeID string, limit int) ([]*models.Ticket, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+ticketColumns+` FROM tickets
		WHERE state = $1 AND assignee_kind = $2 AND assignee_id = $3 AND worker_id IS NULL
		ORDER BY updated_at ASC
		LIMIT $4`,
		models.StateInReview, models.AssigneeAgent, assigneeID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list review queue: %w", err)
	}
	return collectTickets(rows)
}

// StatesByIDs returns the current state of each requested ticket id.
func (s *TicketStore) StatesByIDs(ctx context.Context, ids []string) (map[string]models.TicketState, error) {
	if len(ids) == 0 {
		return map[string]models.TicketState{}, nil
	}
	rows, err := s.pool.Query(ctx, `SELECT id, state FROM tickets WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query ticket states: %w", err)
	}
	defer rows.Close()

	states := make(map[string]models.TicketState, len(ids))
	for rows.Next() {
		var id string
		var state models.TicketState
		if err := rows.Scan(&id, &state); err != nil {
			return nil, err
		}
		states[id] = state
	}
	return states, rows.Err()
}

// CountByState returns the ticket count per lifecycle state.
func (s *TicketStore) CountByState(ctx context.Context) (map[models.TicketState]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT state, COUNT(*) FROM tickets GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("failed to count tickets by state: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.TicketState]int)
	for rows.Next() {
		var state models.TicketState
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, err
		}
		counts[state] = count
	}
	return counts, rows.Err()
}
