package ticketgen

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/forgeworks/swarm/pkg/events"
	"github.com/forgeworks/swarm/pkg/models"
	"github.com/forgeworks/swarm/pkg/store"
)

// Planner produces the ticket breakdown for an approved session.
type Planner interface {
	Plan(ctx context.Context, req PlanRequest) ([]models.TicketDraft, error)
}

// GenerateResult summarizes one generation run.
type GenerateResult struct {
	SessionID    string `json:"session_id"`
	ProjectID    string `json:"project_id"`
	TicketCount  int    `json:"ticket_count"`
	ReadyCount   int    `json:"ready_count"`
	BlockedCount int    `json:"blocked_count"`
}

// Service drives spec-to-tickets generation: plan, insert drafts, activate.
type Service struct {
	store     *store.Store
	planner   Planner
	publisher *events.Publisher
	logger    *slog.Logger
}

// NewService creates the generation service.
func NewService(st *store.Store, planner Planner, publisher *events.Publisher) *Service {
	return &Service{
		store:     st,
		planner:   planner,
		publisher: publisher,
		logger:    slog.Default(),
	}
}

// Generate runs the full generation flow for one approved session. projectID
// and baseBranch are optional; they default to the session's project and
// branch. Tickets inherit the session's tenant. Generation is once per
// session: a session that already has tickets is rejected.
func (s *Service) Generate(ctx context.Context, sessionID, projectID, baseBranch string) (*GenerateResult, error) {
	session, err := s.store.Sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if session.Status == models.SessionStatusBuilding {
		return nil, fmt.Errorf("session %s is already building: %w", sessionID, store.ErrAlreadyExists)
	}

	if projectID == "" {
		if session.ProjectID == nil || *session.ProjectID == "" {
			return nil, fmt.Errorf("session %s has no project and none was given: %w", sessionID, store.ErrInvalidInput)
		}
		projectID = *session.ProjectID
	}
	project, err := s.store.Projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load project: %w", err)
	}
	if project.TenantID != session.TenantID {
		return nil, fmt.Errorf("project %s does not belong to tenant %s", projectID, session.TenantID)
	}

	existing, err := s.store.Tickets.List(ctx, models.TicketFilters{SessionID: sessionID, Limit: 1})
	if err != nil {
		return nil, fmt.Errorf("failed to check for existing tickets: %w", err)
	}
	if existing.TotalCount > 0 {
		return nil, fmt.Errorf("session %s already has %d tickets: %w", sessionID, existing.TotalCount, store.ErrAlreadyExists)
	}

	if baseBranch == "" {
		if session.BranchName != nil && *session.BranchName != "" {
			baseBranch = *session.BranchName
		} else {
			baseBranch = project.Branch
		}
	}

	drafts, err := s.planner.Plan(ctx, PlanRequest{
		SessionID:  sessionID,
		ProjectID:  projectID,
		BaseBranch: baseBranch,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to plan tickets: %w", err)
	}

	deps, err := resolveDependencies(drafts)
	if err != nil {
		return nil, fmt.Errorf("planner output rejected: %w", err)
	}
	if err := validateAcyclic(drafts, deps); err != nil {
		return nil, fmt.Errorf("planner output rejected: %w", err)
	}

	tickets := buildTickets(drafts, deps, session, project)
	if err := s.store.Tickets.CreateDrafts(ctx, tickets); err != nil {
		return nil, fmt.Errorf("failed to insert tickets: %w", err)
	}

	result := &GenerateResult{
		SessionID:   sessionID,
		ProjectID:   projectID,
		TicketCount: len(tickets),
	}
	for _, t := range tickets {
		target := models.StateBlocked
		if t.IsRoot() {
			target = models.StateReady
		}
		if _, err := s.store.Tickets.Activate(ctx, t.ID, target); err != nil {
			return nil, fmt.Errorf("failed to activate ticket %s: %w", t.ID, err)
		}
		if target == models.StateReady {
			result.ReadyCount++
		} else {
			result.BlockedCount++
		}
	}

	if _, err := s.store.Sessions.SetStatus(ctx, sessionID, models.SessionStatusBuilding); err != nil {
		return nil, fmt.Errorf("failed to mark session building: %w", err)
	}

	s.announce(ctx, session, result)

	s.logger.Info("Generated ticket graph",
		"session_id", sessionID,
		"project_id", projectID,
		"tickets", result.TicketCount,
		"ready", result.ReadyCount,
		"blocked", result.BlockedCount)
	return result, nil
}

// buildTickets materializes drafts into insertable tickets. Branch names are
// derived from titles here; one timestamp covers the whole graph.
func buildTickets(drafts []models.TicketDraft, deps [][]int, session *models.Session, project *models.Project) []*models.Ticket {
	now := time.Now()
	tickets := make([]*models.Ticket, len(drafts))
	for i, d := range drafts {
		tickets[i] = &models.Ticket{
			ID:                 uuid.NewString(),
			DesignSessionID:    session.ID,
			ProjectID:          project.ID,
			TenantID:           session.TenantID,
			Title:              d.Title,
			Description:        d.Description,
			AcceptanceCriteria: d.AcceptanceCriteria,
			HintFiles:          d.HintFiles,
			RAGContext:         d.RAGContext,
			AssigneeKind:       models.AssigneeAgent,
			AssigneeID:         models.AgentForge,
			State:              models.StateDraft,
			VerificationStatus: models.VerificationUnverified,
			BranchName:         BranchName(d.Title, now),
		}
	}
	for i, ds := range deps {
		for _, j := range ds {
			tickets[i].DependsOn = append(tickets[i].DependsOn, tickets[j].ID)
		}
	}
	return tickets
}

// announce emits the bus events for a finished generation run. Delivery is
// best effort; the row states are already committed.
func (s *Service) announce(ctx context.Context, session *models.Session, result *GenerateResult) {
	rooms := events.SessionRooms(session.ID, session.TenantID)
	ts := time.Now().UTC().Format(time.RFC3339Nano)

	if err := s.publisher.PublishSessionUpdate(ctx, rooms, events.SessionUpdatePayload{
		Event:     events.EventSessionUpdate,
		SessionID: session.ID,
		Status:    models.SessionStatusBuilding,
		Extras:    map[string]any{"ticket_count": result.TicketCount},
		Timestamp: ts,
	}); err != nil {
		s.logger.Warn("Failed to publish session update", "session_id", session.ID, "error", err)
	}

	if err := s.publisher.PublishBuildStarted(ctx, rooms, events.BuildStartedPayload{
		Event:       events.EventBuildStarted,
		SessionID:   session.ID,
		ProjectID:   result.ProjectID,
		TicketCount: result.TicketCount,
		Timestamp:   ts,
	}); err != nil {
		s.logger.Warn("Failed to publish build started", "session_id", session.ID, "error", err)
	}
}
