package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/forgeworks/swarm/pkg/events"
	"github.com/forgeworks/swarm/pkg/models"
)

// createSessionHandler handles POST /api/v1/sessions. Sessions normally come
// out of the upstream spec-authoring flow; this endpoint seeds them directly.
func (s *Server) createSessionHandler(c *gin.Context) {
	var req models.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := s.store.Sessions.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	s.announceSessionCreated(c.Request.Context(), session)
	c.JSON(http.StatusCreated, session)
}

// announceSessionCreated broadcasts session:created. Best effort: the row is
// already committed.
func (s *Server) announceSessionCreated(ctx context.Context, session *models.Session) {
	if s.publisher == nil {
		return
	}
	payload := events.SessionCreatedPayload{
		Event:     events.EventSessionCreated,
		SessionID: session.ID,
		Title:     session.Title,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if session.ProjectID != nil {
		payload.ProjectID = *session.ProjectID
	}
	rooms := events.SessionRooms(session.ID, session.TenantID)
	if err := s.publisher.PublishSessionCreated(ctx, rooms, payload); err != nil {
		slog.Warn("Failed to publish session created", "session_id", session.ID, "error", err)
	}
}

// getSessionHandler handles GET /api/v1/sessions/:id.
func (s *Server) getSessionHandler(c *gin.Context) {
	session, err := s.store.Sessions.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// listSessionsHandler handles GET /api/v1/sessions, tenant-scoped like
// projects.
func (s *Server) listSessionsHandler(c *gin.Context) {
	tenantID := c.Query("tenant_id")
	if tenantID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tenant_id query parameter is required"})
		return
	}

	sessions, err := s.store.Sessions.ListByTenant(c.Request.Context(), tenantID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, &SessionListResponse{Sessions: sessions})
}

// generateTicketsHandler handles POST /api/v1/sessions/:id/tickets/generate.
// Generation is synchronous: the response carries the inserted graph's
// counts, and the dispatch loops pick the ready tickets up on their next
// tick.
func (s *Server) generateTicketsHandler(c *gin.Context) {
	if s.generator == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "ticket generation is not configured"})
		return
	}
	id := c.Param("id")

	var req GenerateTicketsRequest
	if c.Request.Body != nil && c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	result, err := s.generator.Generate(c.Request.Context(), id, req.ProjectID, req.BaseBranch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}
