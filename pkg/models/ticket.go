package models

import "time"

// AcceptanceCriterion is one testable item of a ticket's acceptance criteria.
// The sub-id is stable across regeneration attempts so verifier feedback can
// reference individual items.
type AcceptanceCriterion struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// RAGContext enumerates the files the generator is expected to touch.
type RAGContext struct {
	FilesToCreate []string `json:"files_to_create,omitempty"`
	FilesToModify []string `json:"files_to_modify,omitempty"`
}

// Ticket is one unit of work in the graph produced from an approved spec.
type Ticket struct {
	ID                 string                `json:"id"`
	DesignSessionID    string                `json:"design_session_id"`
	ProjectID          string                `json:"project_id"`
	TenantID           string                `json:"tenant_id"`
	Title              string                `json:"title"`
	Description        string                `json:"description"`
	AcceptanceCriteria []AcceptanceCriterion `json:"acceptance_criteria"`
	HintFiles          []string              `json:"hint_files,omitempty"`
	RAGContext         *RAGContext           `json:"rag_context,omitempty"`

	AssigneeKind AssigneeKind `json:"assignee_kind"`
	AssigneeID   string       `json:"assignee_id"`
	WorkerID     *string      `json:"worker_id,omitempty"`

	State              TicketState        `json:"state"`
	VerificationStatus VerificationStatus `json:"verification_status"`
	RejectionCount     int                `json:"rejection_count"`
	DependsOn          []string           `json:"depends_on"`

	RepoURL    *string    `json:"repo_url,omitempty"`
	BranchName string     `json:"branch_name"`
	PRURL      *string    `json:"pr_url,omitempty"`
	MergedAt   *time.Time `json:"merged_at,omitempty"`

	StartedAt      *time.Time `json:"started_at,omitempty"`
	LastHeartbeat  *time.Time `json:"last_heartbeat,omitempty"`
	HeartbeatCount int        `json:"heartbeat_count"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	UnblockedAt *time.Time `json:"unblocked_at,omitempty"`
}

// IsRoot reports whether the ticket has no prerequisites.
func (t *Ticket) IsRoot() bool {
	return len(t.DependsOn) == 0
}

// DependsOnTicket reports whether id is one of the ticket's prerequisites.
func (t *Ticket) DependsOnTicket(id string) bool {
	for _, dep := range t.DependsOn {
		if dep == id {
			return true
		}
	}
	return false
}

// TicketFilters contains filtering options for listing tickets
type TicketFilters struct {
	SessionID  string      `json:"session_id,omitempty"`
	ProjectID  string      `json:"project_id,omitempty"`
	TenantID   string      `json:"tenant_id,omitempty"`
	State      TicketState `json:"state,omitempty"`
	AssigneeID string      `json:"assignee_id,omitempty"`
	Limit      int         `json:"limit,omitempty"`
	Offset     int         `json:"offset,omitempty"`
}

// TicketListResponse contains a paginated ticket list
type TicketListResponse struct {
	Tickets    []*Ticket `json:"tickets"`
	TotalCount int       `json:"total_count"`
	Limit      int       `json:"limit"`
	Offset     int       `json:"offset"`
}

// TicketDraft contains the fields the spec→tickets generator produces for one
// ticket before activation. DependsOn holds generated titles at this point;
// the generation service resolves them to ids on insert.
type TicketDraft struct {
	Title              string                `json:"title"`
	Description        string                `json:"description"`
	AcceptanceCriteria []AcceptanceCriterion `json:"acceptance_criteria"`
	HintFiles          []string              `json:"hint_files,omitempty"`
	RAGContext         *RAGContext           `json:"rag_context,omitempty"`
	DependsOn          []string              `json:"depends_on,omitempty"`
}
