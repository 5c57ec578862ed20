// Package events provides the orchestrator's event bus: JSON payloads
// delivered to room channels via PostgreSQL NOTIFY for cross-replica
// distribution.
//
// Every event is scoped by one or more rooms. A room is a NOTIFY channel
// named after the entity it covers ("ticket:<id>", "project:<id>",
// "session:<id>", "tenant:<id>"). Dashboard-side consumers subscribe to
// rooms; the orchestrator only produces.
//
// Events tied to a state transition are broadcast from inside the same
// transaction as the row update (pg_notify is transactional and held until
// COMMIT), so a crash between update and notify cannot split them. Progress
// events are transient: NOTIFY only, no persistence, lost on disconnect.
package events

// Event names carried in the "event" field of every payload envelope.
const (
	EventTicketUpdate   = "ticket:update"
	EventTicketActivity = "ticket:activity"
	EventTicketProgress = "ticket:progress"
	EventPRCreated      = "pr:created"
	EventSessionUpdate  = "session:update"
	EventSessionCreated = "session:created"
	EventBuildStarted   = "build:started"
)

// TicketRoom returns the room channel for a specific ticket's events.
// Format: "ticket:{ticket_id}"
func TicketRoom(ticketID string) string {
	return "ticket:" + ticketID
}

// ProjectRoom returns the room channel for a project's events.
func ProjectRoom(projectID string) string {
	return "project:" + projectID
}

// SessionRoom returns the room channel for a design session's events.
func SessionRoom(sessionID string) string {
	return "session:" + sessionID
}

// TenantRoom returns the room channel for tenant-wide events.
func TenantRoom(tenantID string) string {
	return "tenant:" + tenantID
}
