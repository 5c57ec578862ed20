package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Publisher broadcasts transient events over PostgreSQL NOTIFY.
//
// Transition-coupled events (ticket:update, ticket:activity, pr:created) do
// not go through Publisher; the store broadcasts them with NotifyTx inside
// the transition transaction so the one-event-per-transition guarantee holds
// under crash. Publisher covers everything that is not tied to a row update:
// progress lines, session lifecycle, build start.
type Publisher struct {
	pool *pgxpool.Pool
}

// NewPublisher creates a Publisher over the shared connection pool.
func NewPublisher(pool *pgxpool.Pool) *Publisher {
	return &Publisher{pool: pool}
}

// PublishTicketProgress broadcasts a ticket:progress transient event.
// High-frequency, ephemeral: consumers that miss it catch up from the
// persisted activity log.
func (p *Publisher) PublishTicketProgress(ctx context.Context, rooms []string, payload TicketProgressPayload) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal TicketProgressPayload: %w", err)
	}
	return p.notify(ctx, rooms, payloadJSON)
}

// PublishSessionUpdate broadcasts a session:update event to the session and
// tenant rooms.
func (p *Publisher) PublishSessionUpdate(ctx context.Context, rooms []string, payload SessionUpdatePayload) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal SessionUpdatePayload: %w", err)
	}
	return p.notify(ctx, rooms, payloadJSON)
}

// PublishSessionCreated broadcasts a session:created event.
func (p *Publisher) PublishSessionCreated(ctx context.Context, rooms []string, payload SessionCreatedPayload) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal SessionCreatedPayload: %w", err)
	}
	return p.notify(ctx, rooms, payloadJSON)
}

// PublishBuildStarted broadcasts a build:started event.
func (p *Publisher) PublishBuildStarted(ctx context.Context, rooms []string, payload BuildStartedPayload) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal BuildStartedPayload: %w", err)
	}
	return p.notify(ctx, rooms, payloadJSON)
}

// notify broadcasts a pre-marshaled payload to each room channel.
func (p *Publisher) notify(ctx context.Context, rooms []string, payloadJSON []byte) error {
	notifyPayload, err := truncateIfNeeded(string(payloadJSON))
	if err != nil {
		return err
	}
	for _, room := range rooms {
		if _, err := p.pool.Exec(ctx, "SELECT pg_notify($1, $2)", room, notifyPayload); err != nil {
			return fmt.Errorf("pg_notify failed on %s: %w", room, err)
		}
	}
	return nil
}

// NotifyTx broadcasts a payload to each room channel from inside an open
// transaction. pg_notify is transactional: the notification is held until
// COMMIT and dropped on ROLLBACK, which couples delivery to the row update
// sharing the transaction.
func NotifyTx(ctx context.Context, tx pgx.Tx, rooms []string, payload any) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal notify payload: %w", err)
	}
	notifyPayload, err := truncateIfNeeded(string(payloadJSON))
	if err != nil {
		return err
	}
	for _, room := range rooms {
		if _, err := tx.Exec(ctx, "SELECT pg_notify($1, $2)", room, notifyPayload); err != nil {
			return fmt.Errorf("pg_notify failed on %s: %w", room, err)
		}
	}
	return nil
}

// TicketRooms returns the full room fan-out for a ticket-scoped event.
func TicketRooms(ticketID, projectID, sessionID, tenantID string) []string {
	return []string{
		TicketRoom(ticketID),
		ProjectRoom(projectID),
		SessionRoom(sessionID),
		TenantRoom(tenantID),
	}
}

// SessionRooms returns the room fan-out for a session-scoped event.
func SessionRooms(sessionID, tenantID string) []string {
	return []string{SessionRoom(sessionID), TenantRoom(tenantID)}
}

// truncateIfNeeded returns the payload string as-is if it fits within
// PostgreSQL's 8000-byte NOTIFY limit, otherwise returns a minimal
// truncation envelope with only routing fields.
func truncateIfNeeded(payloadStr string) (string, error) {
	if len(payloadStr) <= 7900 {
		return payloadStr, nil
	}
	return buildTruncatedPayload([]byte(payloadStr))
}

// buildTruncatedPayload creates a minimal truncation envelope from the full
// JSON payload bytes, keeping only the routing fields a client needs to
// fetch the complete record from the activity log.
func buildTruncatedPayload(payloadBytes []byte) (string, error) {
	var routing struct {
		Event     string `json:"event"`
		TicketID  string `json:"ticket_id"`
		SessionID string `json:"session_id"`
		DBEventID *int64 `json:"db_event_id,omitempty"`
	}
	if err := json.Unmarshal(payloadBytes, &routing); err != nil {
		return "", fmt.Errorf("failed to extract routing fields for truncation: %w", err)
	}

	truncated := map[string]any{
		"event":     routing.Event,
		"truncated": true,
	}
	if routing.TicketID != "" {
		truncated["ticket_id"] = routing.TicketID
	}
	if routing.SessionID != "" {
		truncated["session_id"] = routing.SessionID
	}
	if routing.DBEventID != nil {
		truncated["db_event_id"] = *routing.DBEventID
	}

	truncBytes, err := json.Marshal(truncated)
	if err != nil {
		return "", fmt.Errorf("failed to marshal truncated payload: %w", err)
	}
	return string(truncBytes), nil
}
