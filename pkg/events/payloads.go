package events

// TicketUpdatePayload is the payload for ticket:update events.
// Published on every committed state transition.
type TicketUpdatePayload struct {
	Event     string         `json:"event"`     // always EventTicketUpdate
	TicketID  string         `json:"ticket_id"` // ticket UUID
	State     string         `json:"state"`     // state after the transition
	Extras    map[string]any `json:"extras,omitempty"`
	DBEventID int64          `json:"db_event_id,omitempty"` // id of the persisted TicketEvent
	Timestamp string         `json:"timestamp"`             // RFC3339Nano
}

// TicketActivityPayload is the payload for ticket:activity events.
// Mirrors the persisted TicketEvent row for the dashboard's activity feed.
type TicketActivityPayload struct {
	Event     string         `json:"event"` // always EventTicketActivity
	TicketID  string         `json:"ticket_id"`
	Kind      string         `json:"kind"`
	FromState string         `json:"from_state,omitempty"`
	ToState   string         `json:"to_state,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	DBEventID int64          `json:"db_event_id,omitempty"`
	Timestamp string         `json:"timestamp"` // RFC3339Nano
}

// TicketProgressPayload is the payload for ticket:progress transient events.
// Published during long-running phases (generating, verifying, pushing).
// NOTIFY only, never persisted.
type TicketProgressPayload struct {
	Event     string `json:"event"` // always EventTicketProgress
	TicketID  string `json:"ticket_id"`
	Phase     string `json:"phase"`   // generating, applying, committing, verifying, creating_pr, merging
	Message   string `json:"message"` // human-readable progress line
	Timestamp string `json:"timestamp"`
}

// PRCreatedPayload is the payload for pr:created events.
type PRCreatedPayload struct {
	Event     string `json:"event"` // always EventPRCreated
	TicketID  string `json:"ticket_id"`
	PRURL     string `json:"pr_url"`
	Timestamp string `json:"timestamp"`
}

// SessionUpdatePayload is the payload for session:update events.
type SessionUpdatePayload struct {
	Event     string         `json:"event"` // always EventSessionUpdate
	SessionID string         `json:"session_id"`
	Status    string         `json:"status"`
	Extras    map[string]any `json:"extras,omitempty"`
	Timestamp string         `json:"timestamp"`
}

// SessionCreatedPayload is the payload for session:created events.
type SessionCreatedPayload struct {
	Event     string `json:"event"` // always EventSessionCreated
	SessionID string `json:"session_id"`
	ProjectID string `json:"project_id,omitempty"`
	Title     string `json:"title"`
	Timestamp string `json:"timestamp"`
}

// BuildStartedPayload is the payload for build:started events.
// Published when an approved spec's ticket graph enters execution.
type BuildStartedPayload struct {
	Event       string `json:"event"` // always EventBuildStarted
	SessionID   string `json:"session_id"`
	ProjectID   string `json:"project_id,omitempty"`
	TicketCount int    `json:"ticket_count"`
	Timestamp   string `json:"timestamp"`
}
