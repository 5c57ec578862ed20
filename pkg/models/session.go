package models

import "time"

// Session statuses owned by the upstream spec-authoring flow. The engine only
// reads sessions for repo resolution and cascade scoping.
const (
	SessionStatusDraft    = "draft"
	SessionStatusApproved = "approved"
	SessionStatusBuilding = "building"
)

// Session is an upstream design session whose approved spec produced a
// ticket graph.
type Session struct {
	ID         string    `json:"id"`
	TenantID   string    `json:"tenant_id"`
	ProjectID  *string   `json:"project_id,omitempty"`
	Title      string    `json:"title"`
	RepoURL    *string   `json:"repo_url,omitempty"`
	BranchName *string   `json:"branch_name,omitempty"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// CreateSessionRequest contains fields for creating a new design session
type CreateSessionRequest struct {
	TenantID   string `json:"tenant_id"`
	ProjectID  string `json:"project_id,omitempty"`
	Title      string `json:"title"`
	RepoURL    string `json:"repo_url,omitempty"`
	BranchName string `json:"branch_name,omitempty"`
}
