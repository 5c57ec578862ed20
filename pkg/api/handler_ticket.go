package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/forgeworks/swarm/pkg/models"
)

// validTicketStates guards the state filter; an unknown state would silently
// match nothing.
var validTicketStates = map[string]bool{
	string(models.StateDraft):          true,
	string(models.StateReady):          true,
	string(models.StateBlocked):        true,
	string(models.StateInProgress):     true,
	string(models.StateVerifying):      true,
	string(models.StateInReview):       true,
	string(models.StateReviewing):      true,
	string(models.StateNeedsReview):    true,
	string(models.StateMerged):         true,
	string(models.StateDone):           true,
	string(models.StateCancelled):      true,
	string(models.StateSentinelFailed): true,
}

// listTicketsHandler handles GET /api/v1/tickets with optional filters:
// session_id, project_id, tenant_id, state, assignee_id, limit, offset.
func (s *Server) listTicketsHandler(c *gin.Context) {
	filters := models.TicketFilters{
		SessionID:  c.Query("session_id"),
		ProjectID:  c.Query("project_id"),
		TenantID:   c.Query("tenant_id"),
		AssigneeID: c.Query("assignee_id"),
	}

	if state := c.Query("state"); state != "" {
		if !validTicketStates[state] {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid state: " + state})
			return
		}
		filters.State = models.TicketState(state)
	}

	var err error
	if filters.Limit, err = intQuery(c, "limit"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if filters.Offset, err = intQuery(c, "offset"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	list, err := s.store.Tickets.List(c.Request.Context(), filters)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// getTicketHandler handles GET /api/v1/tickets/:id.
func (s *Server) getTicketHandler(c *gin.Context) {
	ticket, err := s.store.Tickets.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ticket)
}

// listTicketEventsHandler handles GET /api/v1/tickets/:id/events, the
// ticket's persisted activity log in insertion order.
func (s *Server) listTicketEventsHandler(c *gin.Context) {
	id := c.Param("id")

	limit, err := intQuery(c, "limit")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := s.store.Tickets.GetByID(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	eventList, err := s.store.Events.ListByTicket(c.Request.Context(), id, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, &TicketEventsResponse{TicketID: id, Events: eventList})
}

// cancelTicketHandler handles POST /api/v1/tickets/:id/cancel. The row is
// cancelled first, then the in-flight task on this replica. The request
// succeeds when either took effect: the row may already be terminal while the
// task is still winding down here, or the task may be running on another
// replica entirely.
func (s *Server) cancelTicketHandler(c *gin.Context) {
	id := c.Param("id")

	var req CancelTicketRequest
	if c.Request.Body != nil && c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	reason := req.Reason
	if reason == "" {
		reason = "cancelled via api"
	}

	cancelled, err := s.store.Tickets.Cancel(c.Request.Context(), id, reason)
	if err != nil {
		respondError(c, err)
		return
	}

	taskCancelled := false
	if s.engine != nil {
		taskCancelled = s.engine.CancelTicket(id)
	}

	if cancelled == nil && !taskCancelled {
		c.JSON(http.StatusConflict, gin.H{"error": "ticket is not in a cancellable state"})
		return
	}

	state := string(models.StateCancelled)
	if cancelled != nil {
		state = string(cancelled.State)
	} else if current, err := s.store.Tickets.GetByID(c.Request.Context(), id); err == nil {
		state = string(current.State)
	}
	c.JSON(http.StatusOK, &CancelTicketResponse{
		TicketID:      id,
		State:         state,
		TaskCancelled: taskCancelled,
	})
}

// completeTicketHandler handles POST /api/v1/tickets/:id/complete, the
// deploy collaborator's hook for closing out a merged ticket.
func (s *Server) completeTicketHandler(c *gin.Context) {
	id := c.Param("id")

	if _, err := s.store.Tickets.GetByID(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	done, err := s.store.Tickets.MarkDone(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if done == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "only merged tickets can be completed"})
		return
	}
	c.JSON(http.StatusOK, done)
}

// intQuery parses an optional non-negative integer query parameter.
func intQuery(c *gin.Context, name string) (int, error) {
	v := c.Query(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s: must be a non-negative integer", name)
	}
	return n, nil
}
