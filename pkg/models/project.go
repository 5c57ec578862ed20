package models

import "time"

// ProjectKind distinguishes generic repos from feature-build targets.
type ProjectKind string

const (
	ProjectGeneric      ProjectKind = "generic"
	ProjectBuildFeature ProjectKind = "build_feature"
)

// Project holds repository coordinates for a tenant's codebase.
type Project struct {
	ID        string      `json:"id"`
	TenantID  string      `json:"tenant_id"`
	Name      string      `json:"name"`
	RepoURL   *string     `json:"repo_url,omitempty"`
	Branch    string      `json:"branch"`
	Kind      ProjectKind `json:"kind"`
	CreatedBy string      `json:"created_by,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// CreateProjectRequest contains fields for creating a new project
type CreateProjectRequest struct {
	TenantID string      `json:"tenant_id"`
	Name     string      `json:"name"`
	RepoURL  string      `json:"repo_url,omitempty"`
	Branch   string      `json:"branch,omitempty"`
	Kind     ProjectKind `json:"kind,omitempty"`
}
