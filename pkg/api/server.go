// Package api exposes the orchestrator's HTTP surface: ticket queries and
// cancellation, project and session seeding, ticket generation, health and
// metrics.
//
// The surface is deliberately thin. Every mutation goes through the store's
// conditional transitions or the generation service, and handlers hold no
// state of their own, so any replica can serve any request.
package api

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/forgeworks/swarm/pkg/events"
	"github.com/forgeworks/swarm/pkg/metrics"
	"github.com/forgeworks/swarm/pkg/store"
	"github.com/forgeworks/swarm/pkg/ticketgen"
)

// TaskEngine is the slice of the engine the API needs: cancelling the
// in-flight task for a ticket on this replica and reporting occupancy.
type TaskEngine interface {
	CancelTicket(id string) bool
	InFlight() []string
}

// TicketGenerator turns an approved session into its ticket graph.
type TicketGenerator interface {
	Generate(ctx context.Context, sessionID, projectID, baseBranch string) (*ticketgen.GenerateResult, error)
}

// Server is the HTTP API server for one replica.
type Server struct {
	workerID  string
	store     *store.Store
	engine    TaskEngine
	generator TicketGenerator
	publisher *events.Publisher
	metrics   *metrics.Metrics

	router     *gin.Engine
	httpServer *http.Server
}

// NewServer creates the API server and registers its routes.
func NewServer(workerID string, st *store.Store, eng TaskEngine, gen TicketGenerator,
	pub *events.Publisher, m *metrics.Metrics) *Server {

	s := &Server{
		workerID:  workerID,
		store:     st,
		engine:    eng,
		generator: gen,
		publisher: pub,
		metrics:   m,
	}
	s.router = s.routes()
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), securityHeaders())

	r.GET("/healthz", s.healthzHandler)
	r.GET("/readyz", s.readyzHandler)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{})))

	v1 := r.Group("/api/v1")
	{
		v1.GET("/engine/health", s.engineHealthHandler)

		v1.GET("/tickets", s.listTicketsHandler)
		v1.GET("/tickets/:id", s.getTicketHandler)
		v1.GET("/tickets/:id/events", s.listTicketEventsHandler)
		v1.POST("/tickets/:id/cancel", s.cancelTicketHandler)
		v1.POST("/tickets/:id/complete", s.completeTicketHandler)

		v1.POST("/projects", s.createProjectHandler)
		v1.GET("/projects", s.listProjectsHandler)
		v1.GET("/projects/:id", s.getProjectHandler)

		v1.POST("/sessions", s.createSessionHandler)
		v1.GET("/sessions", s.listSessionsHandler)
		v1.GET("/sessions/:id", s.getSessionHandler)
		v1.POST("/sessions/:id/tickets/generate", s.generateTicketsHandler)
	}
	return r
}

// Handler exposes the routed handler for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins serving on addr. It blocks until the listener closes; callers
// run it in a goroutine and drive Shutdown from the signal path.
func (s *Server) Start(addr string) error {
	s.httpServer.Addr = addr
	return s.httpServer.ListenAndServe()
}

// StartWithListener serves on an existing listener. Tests use it to bind a
// random port before the server goroutine starts.
func (s *Server) StartWithListener(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
