package api

import (
	"github.com/forgeworks/swarm/pkg/database"
	"github.com/forgeworks/swarm/pkg/models"
)

// HealthCheck is one named dependency check inside a health response.
type HealthCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is returned by GET /healthz and GET /readyz.
type HealthResponse struct {
	Status   string                 `json:"status"`
	Version  string                 `json:"version"`
	Database *database.HealthStatus `json:"database,omitempty"`
	Checks   map[string]HealthCheck `json:"checks,omitempty"`
}

// EngineHealthResponse is returned by GET /api/v1/engine/health.
type EngineHealthResponse struct {
	WorkerID       string         `json:"worker_id"`
	TicketsByState map[string]int `json:"tickets_by_state"`
	InFlight       []string       `json:"in_flight"`
}

// CancelTicketResponse is returned by POST /api/v1/tickets/:id/cancel.
// TaskCancelled reports whether this replica also stopped a running task; the
// row cancellation is what the State field reflects.
type CancelTicketResponse struct {
	TicketID      string `json:"ticket_id"`
	State         string `json:"state"`
	TaskCancelled bool   `json:"task_cancelled"`
}

// TicketEventsResponse is returned by GET /api/v1/tickets/:id/events.
type TicketEventsResponse struct {
	TicketID string                `json:"ticket_id"`
	Events   []*models.TicketEvent `json:"events"`
}

// ProjectListResponse is returned by GET /api/v1/projects.
type ProjectListResponse struct {
	Projects []*models.Project `json:"projects"`
}

// SessionListResponse is returned by GET /api/v1/sessions.
type SessionListResponse struct {
	Sessions []*models.Session `json:"sessions"`
}
