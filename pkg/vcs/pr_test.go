package vcs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgeworks/swarm/pkg/models"
)

func TestScopeLabel(t *testing.T) {
	tests := []struct {
		files int
		want  string
	}{
		{0, "scope:small"},
		{1, "scope:small"},
		{2, "scope:small"},
		{3, "scope:medium"},
		{5, "scope:medium"},
		{6, "scope:large"},
		{40, "scope:large"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ScopeLabel(tt.files), "files=%d", tt.files)
	}
}

func TestLabels(t *testing.T) {
	assert.Equal(t, []string{"swarm-generated", "scope:small"}, Labels(1))
	assert.Equal(t, []string{"swarm-generated", "scope:large"}, Labels(9))
}

func TestPRNumberFromURL(t *testing.T) {
	n, err := PRNumberFromURL("https://forge.example.com/acme/payments/pull/42")
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	n, err = PRNumberFromURL("https://forge.example.com/acme/payments/pull/7/")
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	for _, bad := range []string{"", "https://forge.example.com/acme/payments", "https://forge.example.com/acme/payments/pull/abc", "https://forge.example.com/acme/payments/pull/0"} {
		_, err := PRNumberFromURL(bad)
		assert.Error(t, err, "url=%q", bad)
	}
}

func TestPRBody(t *testing.T) {
	ticket := &models.Ticket{
		ID:          "b7f9a3ce-0000-4000-8000-000000000001",
		Title:       "Add refunds flow",
		Description: "Expose POST /refunds and wire it to the ledger.",
		AcceptanceCriteria: []models.AcceptanceCriterion{
			{ID: "ac-1", Text: "POST /refunds returns 200 for a valid charge"},
			{ID: "ac-2", Text: "refund rows are written to the ledger"},
		},
	}

	body := PRBody(ticket, []string{"internal/refunds/handler.go", "internal/refunds/handler_test.go"})

	assert.Contains(t, body, "Ticket: `b7f9a3ce-0000-4000-8000-000000000001`")
	assert.Contains(t, body, "Expose POST /refunds")
	assert.Contains(t, body, "- [ ] POST /refunds returns 200 for a valid charge")
	assert.Contains(t, body, "- [ ] refund rows are written to the ledger")
	assert.Contains(t, body, "- `internal/refunds/handler.go`")
}

func TestPRBodyMinimalTicket(t *testing.T) {
	body := PRBody(&models.Ticket{ID: "t-1", Title: "Tiny fix"}, nil)

	require.NotEmpty(t, body)
	assert.Contains(t, body, "Ticket: `t-1`")
	assert.NotContains(t, body, "Acceptance criteria")
	assert.NotContains(t, body, "Changed files")
}
