package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/forgeworks/swarm/pkg/api"
	"github.com/forgeworks/swarm/pkg/models"
	"github.com/forgeworks/swarm/pkg/ticketgen"
)

// tenantID is the tenant every e2e fixture lives under.
const tenantID = "tenant-1"

// CreateProject posts a project pointing at the app's git host.
func (app *TestApp) CreateProject(t *testing.T, name string) *models.Project {
	t.Helper()
	var project models.Project
	app.postJSON(t, "/api/v1/projects", models.CreateProjectRequest{
		TenantID: tenantID,
		Name:     name,
		RepoURL:  app.RepoURL,
		Branch:   "main",
	}, &project, http.StatusCreated)
	return &project
}

// CreateSession posts a design session under the project.
func (app *TestApp) CreateSession(t *testing.T, projectID, title string) *models.Session {
	t.Helper()
	var session models.Session
	app.postJSON(t, "/api/v1/sessions", models.CreateSessionRequest{
		TenantID:  tenantID,
		ProjectID: projectID,
		Title:     title,
	}, &session, http.StatusCreated)
	return &session
}

// GenerateTickets runs the session's spec-to-tickets generation.
func (app *TestApp) GenerateTickets(t *testing.T, sessionID string) *ticketgen.GenerateResult {
	t.Helper()
	var result ticketgen.GenerateResult
	app.postJSON(t, fmt.Sprintf("/api/v1/sessions/%s/tickets/generate", sessionID), nil, &result, http.StatusCreated)
	return &result
}

// GetSession retrieves a session by id.
func (app *TestApp) GetSession(t *testing.T, id string) *models.Session {
	t.Helper()
	var session models.Session
	app.getJSON(t, "/api/v1/sessions/"+id, &session, http.StatusOK)
	return &session
}

// GetTicket retrieves a ticket by id.
func (app *TestApp) GetTicket(t *testing.T, id string) *models.Ticket {
	t.Helper()
	var ticket models.Ticket
	app.getJSON(t, "/api/v1/tickets/"+id, &ticket, http.StatusOK)
	return &ticket
}

// ListSessionTickets lists every ticket of one session.
func (app *TestApp) ListSessionTickets(t *testing.T, sessionID string) *models.TicketListResponse {
	t.Helper()
	var list models.TicketListResponse
	app.getJSON(t, "/api/v1/tickets?session_id="+sessionID, &list, http.StatusOK)
	return &list
}

// TicketByTitle finds a session's ticket by its generated title.
func (app *TestApp) TicketByTitle(t *testing.T, sessionID, title string) *models.Ticket {
	t.Helper()
	list := app.ListSessionTickets(t, sessionID)
	for _, ticket := range list.Tickets {
		if ticket.Title == title {
			return ticket
		}
	}
	t.Fatalf("session %s has no ticket titled %q", sessionID, title)
	return nil
}

// TicketEvents returns the ticket's persisted activity log.
func (app *TestApp) TicketEvents(t *testing.T, id string) []*models.TicketEvent {
	t.Helper()
	var resp api.TicketEventsResponse
	app.getJSON(t, fmt.Sprintf("/api/v1/tickets/%s/events", id), &resp, http.StatusOK)
	return resp.Events
}

// CancelTicket posts a cancel for the ticket and returns the parsed response.
func (app *TestApp) CancelTicket(t *testing.T, id, reason string) *api.CancelTicketResponse {
	t.Helper()
	var resp api.CancelTicketResponse
	app.postJSON(t, fmt.Sprintf("/api/v1/tickets/%s/cancel", id), api.CancelTicketRequest{Reason: reason}, &resp, http.StatusOK)
	return &resp
}

// EngineHealth returns this replica's engine health snapshot.
func (app *TestApp) EngineHealth(t *testing.T) *api.EngineHealthResponse {
	t.Helper()
	var resp api.EngineHealthResponse
	app.getJSON(t, "/api/v1/engine/health", &resp, http.StatusOK)
	return &resp
}

// AwaitTicketState polls until the ticket reaches one of the wanted states
// and returns the state it landed on.
func (app *TestApp) AwaitTicketState(t *testing.T, ticketID string, want ...models.TicketState) models.TicketState {
	t.Helper()
	var last models.TicketState
	require.Eventually(t, func() bool {
		ticket, err := app.Store.Tickets.GetByID(context.Background(), ticketID)
		if err != nil {
			return false
		}
		last = ticket.State
		for _, s := range want {
			if last == s {
				return true
			}
		}
		return false
	}, 30*time.Second, 50*time.Millisecond,
		"ticket %s did not reach %v (last: %s)", ticketID, want, last)
	return last
}

// AwaitTicketReleased polls until no worker owns the ticket. Terminal
// bookkeeping lags the terminal state by up to one task teardown.
func (app *TestApp) AwaitTicketReleased(t *testing.T, ticketID string) {
	t.Helper()
	require.Eventually(t, func() bool {
		ticket, err := app.Store.Tickets.GetByID(context.Background(), ticketID)
		return err == nil && ticket.WorkerID == nil
	}, 10*time.Second, 50*time.Millisecond, "ticket %s still has a worker", ticketID)
}

// eventKinds projects the activity log onto its kind column.
func eventKinds(evs []*models.TicketEvent) []string {
	kinds := make([]string, 0, len(evs))
	for _, ev := range evs {
		kinds = append(kinds, ev.Kind)
	}
	return kinds
}

// eventsOfKind filters the activity log by kind.
func eventsOfKind(evs []*models.TicketEvent, kind string) []*models.TicketEvent {
	var matched []*models.TicketEvent
	for _, ev := range evs {
		if ev.Kind == kind {
			matched = append(matched, ev)
		}
	}
	return matched
}

func (app *TestApp) postJSON(t *testing.T, path string, body, out any, wantStatus int) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, app.BaseURL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, wantStatus, resp.StatusCode, "POST %s: %s", path, raw)
	if out != nil {
		require.NoError(t, json.Unmarshal(raw, out), "POST %s: %s", path, raw)
	}
}

func (app *TestApp) getJSON(t *testing.T, path string, out any, wantStatus int) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, app.BaseURL+path, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, wantStatus, resp.StatusCode, "GET %s: %s", path, raw)
	if out != nil {
		require.NoError(t, json.Unmarshal(raw, out), "GET %s: %s", path, raw)
	}
}
