package vcs

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/forgeworks/swarm/pkg/models"
)

// LabelGenerated marks every PR the engine opens.
const LabelGenerated = "swarm-generated"

// Scope label thresholds in changed files.
const (
	scopeSmallMax  = 2
	scopeMediumMax = 5
)

// ScopeLabel returns the size label for a PR by changed file count.
func ScopeLabel(changedFiles int) string {
	switch {
	case changedFiles <= scopeSmallMax:
		return "scope:small"
	case changedFiles <= scopeMediumMax:
		return "scope:medium"
	default:
		return "scope:large"
	}
}

// Labels returns the full label set for a generated PR.
func Labels(changedFiles int) []string {
	return []string{LabelGenerated, ScopeLabel(changedFiles)}
}

// PRNumberFromURL extracts the pull request number from a PR web URL,
// e.g. https://forge.example.com/acme/payments/pull/42.
func PRNumberFromURL(prURL string) (int, error) {
	trimmed := strings.TrimRight(prURL, "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx < 0 {
		return 0, fmt.Errorf("invalid pull request URL %q", prURL)
	}
	n, err := strconv.Atoi(trimmed[idx+1:])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid pull request URL %q", prURL)
	}
	return n, nil
}

// PRTitle builds the pull request title from the ticket.
func PRTitle(t *models.Ticket) string {
	return t.Title
}

// PRBody builds the pull request description: ticket reference, the
// description, the acceptance criteria as a checklist, and the changed
// files.
func PRBody(t *models.Ticket, changedFiles []string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Ticket: `%s`\n\n", t.ID)

	if t.Description != "" {
		b.WriteString(t.Description)
		b.WriteString("\n\n")
	}

	if len(t.AcceptanceCriteria) > 0 {
		b.WriteString("## Acceptance criteria\n\n")
		for _, ac := range t.AcceptanceCriteria {
			fmt.Fprintf(&b, "- [ ] %s\n", ac.Text)
		}
		b.WriteString("\n")
	}

	if len(changedFiles) > 0 {
		b.WriteString("## Changed files\n\n")
		for _, f := range changedFiles {
			fmt.Fprintf(&b, "- `%s`\n", f)
		}
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}
