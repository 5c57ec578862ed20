package models

import "time"

// TicketEvent is one append-only activity record for a ticket. Every state
// transition writes exactly one; non-transition kinds (progress, feedback,
// commits) share the table so the per-ticket log stays totally ordered.
type TicketEvent struct {
	ID        int64          `json:"id"`
	TicketID  string         `json:"ticket_id"`
	Kind      string         `json:"kind"`
	FromState *TicketState   `json:"from_state,omitempty"`
	ToState   *TicketState   `json:"to_state,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Ticket event kinds.
const (
	EventKindCreated              = "created"
	EventKindActivated            = "activated"
	EventKindClaimed              = "claimed"
	EventKindCommit               = "commit"
	EventKindVerificationStarted  = "verification_started"
	EventKindVerificationFeedback = "verification_feedback"
	EventKindPRCreated            = "pr_created"
	EventKindSentinelStarted      = "sentinel_started"
	EventKindMerged               = "merged"
	EventKindCompleted            = "completed"
	EventKindReclaimed            = "reclaimed"
	EventKindUnblocked            = "unblocked"
	EventKindCancelled            = "cancelled"
	EventKindFailed               = "failed"
	EventKindNeedsReview          = "needs_review"
	EventKindSentinelRejected     = "sentinel_rejected"
)
