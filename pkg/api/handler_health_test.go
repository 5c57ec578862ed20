package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthz(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	decodeJSON(t, rec, &resp)
	assert.Equal(t, "healthy", resp.Status)
	assert.NotEmpty(t, resp.Version)
	assert.Nil(t, resp.Database)
}

func TestReadyz(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp HealthResponse
	decodeJSON(t, rec, &resp)
	assert.Equal(t, "healthy", resp.Status)
	require.NotNil(t, resp.Database)
	assert.Equal(t, "healthy", resp.Database.Status)
	assert.Equal(t, "healthy", resp.Checks["database"].Status)
}

func TestEngineHealth(t *testing.T) {
	ctx := context.Background()
	srv, st, eng := newTestServer(t)
	project, session := seedGraph(ctx, t, st)
	seedReadyTicket(ctx, t, st, project, session, "Add refund API")
	seedReadyTicket(ctx, t, st, project, session, "Add refund UI")
	eng.inFlight = []string{"ticket-a"}

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/engine/health", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp EngineHealthResponse
	decodeJSON(t, rec, &resp)
	assert.Equal(t, "test-pod", resp.WorkerID)
	assert.Equal(t, 2, resp.TicketsByState["ready"])
	assert.Equal(t, []string{"ticket-a"}, resp.InFlight)
}
