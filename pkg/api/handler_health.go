package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/forgeworks/swarm/pkg/database"
	"github.com/forgeworks/swarm/pkg/version"
)

const (
	healthStatusHealthy   = "healthy"
	healthStatusUnhealthy = "unhealthy"
)

// healthzHandler handles GET /healthz. Liveness only: the process is up and
// serving. No dependency is consulted, so a database outage cannot make the
// orchestrator restart-loop the replica.
func (s *Server) healthzHandler(c *gin.Context) {
	c.JSON(http.StatusOK, &HealthResponse{
		Status:  healthStatusHealthy,
		Version: version.GitCommit,
	})
}

// readyzHandler handles GET /readyz. Readiness gates on the database: a
// replica that cannot reach PostgreSQL cannot claim, transition or serve
// consistent reads.
func (s *Server) readyzHandler(c *gin.Context) {
	reqCtx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]HealthCheck)
	status := healthStatusHealthy

	dbHealth, err := database.Health(reqCtx, s.store.Pool())
	if err != nil {
		status = healthStatusUnhealthy
		checks["database"] = HealthCheck{Status: healthStatusUnhealthy, Message: err.Error()}
	} else {
		checks["database"] = HealthCheck{Status: healthStatusHealthy}
	}

	httpStatus := http.StatusOK
	if status == healthStatusUnhealthy {
		httpStatus = http.StatusServiceUnavailable
	}
	c.JSON(httpStatus, &HealthResponse{
		Status:   status,
		Version:  version.GitCommit,
		Database: dbHealth,
		Checks:   checks,
	})
}

// engineHealthHandler handles GET /api/v1/engine/health: fleet-wide queue
// depth by state plus this replica's identity and in-flight tickets.
func (s *Server) engineHealthHandler(c *gin.Context) {
	reqCtx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	counts, err := s.store.Tickets.CountByState(reqCtx)
	if err != nil {
		respondError(c, err)
		return
	}

	byState := make(map[string]int, len(counts))
	for state, n := range counts {
		byState[string(state)] = n
	}

	resp := &EngineHealthResponse{
		WorkerID:       s.workerID,
		TicketsByState: byState,
		InFlight:       []string{},
	}
	if s.engine != nil {
		resp.InFlight = s.engine.InFlight()
	}
	c.JSON(http.StatusOK, resp)
}
