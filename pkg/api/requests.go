package api

// CancelTicketRequest is the optional body of POST /api/v1/tickets/:id/cancel.
type CancelTicketRequest struct {
	Reason string `json:"reason"`
}

// GenerateTicketsRequest is the optional body of
// POST /api/v1/sessions/:id/tickets/generate. Both fields default from the
// session's project when omitted.
type GenerateTicketsRequest struct {
	ProjectID  string `json:"project_id"`
	BaseBranch string `json:"base_branch"`
}
