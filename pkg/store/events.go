package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/forgeworks/swarm/pkg/models"
)

const eventColumns = `id, ticket_id, kind, from_state, to_state, payload, created_at`

// EventStore reads the append-only ticket activity log. Writes happen inside
// transition transactions in TicketStore.
type EventStore struct {
	pool *pgxpool.Pool
}

func scanEvent(row scanner) (*models.TicketEvent, error) {
	var e models.TicketEvent
	var payloadJSON []byte
	err := row.Scan(&e.ID, &e.TicketID, &e.Kind, &e.FromState, &e.ToState, &payloadJSON, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	if len(payloadJSON) > 0 {
		if err := json.Unmarshal(payloadJSON, &e.Payload); err != nil {
			return nil, fmt.Errorf("failed to decode event payload: %w", err)
		}
	}
	return &e, nil
}

// ListByTicket returns a ticket's activity log in insertion order.
func (s *EventStore) ListByTicket(ctx context.Context, ticketID string, limit int) ([]*models.TicketEvent, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+eventColumns+` FROM ticket_events
		WHERE ticket_id = $1
		ORDER BY id
		LIMIT $2`,
		ticketID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list ticket events: %w", err)
	}
	defer rows.Close()

	var result []*models.TicketEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// LatestByKind returns the most recent event of one kind for a ticket, or
// (nil, nil) when none exists. Used to pull the latest verification feedback
// artifact into a regeneration prompt.
func (s *EventStore) LatestByKind(ctx context.Context, ticketID, kind string) (*models.TicketEvent, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM ticket_events
		WHERE ticket_id = $1 AND kind = $2
		ORDER BY id DESC
		LIMIT 1`,
		ticketID, kind)
	e, err := scanEvent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest %s event: %w", kind, err)
	}
	return e, nil
}
