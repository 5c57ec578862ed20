// Package ticketgen turns an approved design session into a ticket graph:
// it calls the planner service, inserts the drafts with dependencies resolved
// from generated titles to ids, and runs the activation pass.
package ticketgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/forgeworks/swarm/pkg/config"
	"github.com/forgeworks/swarm/pkg/models"
)

// PlanRequest asks the planner to break an approved spec into tickets.
type PlanRequest struct {
	SessionID  string `json:"session_id"`
	ProjectID  string `json:"project_id"`
	BaseBranch string `json:"base_branch"`
}

// PlanResponse is the planner's ticket breakdown. DependsOn entries reference
// other tickets in the same response by title.
type PlanResponse struct {
	Tickets []models.TicketDraft `json:"tickets"`
}

// Client is the HTTP client for the planner service.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	logger     *slog.Logger
}

// NewClient creates a planner client from service configuration.
func NewClient(cfg *config.ServiceConfig) *Client {
	token := ""
	if cfg.TokenEnv != "" {
		token = os.Getenv(cfg.TokenEnv)
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      token,
		logger:     slog.Default(),
	}
}

// Plan requests the ticket breakdown for one approved session.
func (c *Client) Plan(ctx context.Context, planReq PlanRequest) ([]models.TicketDraft, error) {
	body, err := json.Marshal(planReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal plan request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/plan", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create plan request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	c.logger.Debug("Calling planner", "session_id", planReq.SessionID, "project_id", planReq.ProjectID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("planner call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("planner returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var planResp PlanResponse
	if err := json.NewDecoder(resp.Body).Decode(&planResp); err != nil {
		return nil, fmt.Errorf("failed to decode planner response: %w", err)
	}
	if len(planResp.Tickets) == 0 {
		return nil, fmt.Errorf("planner returned no tickets")
	}
	for i := range planResp.Tickets {
		if strings.TrimSpace(planResp.Tickets[i].Title) == "" {
			return nil, fmt.Errorf("planner returned ticket %d without a title", i)
		}
	}

	return planResp.Tickets, nil
}
