// Package codegen wraps the code generation service and applies its file
// changes to a worktree.
package codegen

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

// FileContext is one existing file passed to the generator as context.
type FileContext struct {
	Path      string `json:"path"`
	Content   string `json:"content"`
	Truncated bool   `json:"truncated,omitempty"`
}

// GenerateRequest is one generation call for a ticket attempt.
type GenerateRequest struct {
	TicketID           string                       `json:"ticket_id"`
	Title              string                       `json:"title"`
	Description        string                       `json:"description"`
	AcceptanceCriteria []models.AcceptanceCriterion `json:"acceptance_criteria"`
	BranchName         string                       `json:"branch_name"`
	Attempt            int                          `json:"attempt"`

	// Files carries the current content of the files the ticket expects to
	// modify.
	Files []FileContext `json:"files,omitempty"`

	// Feedback carries the verifier's feedback from the previous attempt.
	Feedback []string `json:"feedback,omitempty"`
}

// GenerateResponse is the generator's structured output.
type GenerateResponse struct {
	Files         []FileChange `json:"files"`
	CommitMessage string       `json:"commit_message,omitempty"`
	Notes         string       `json:"notes,omitempty"`
}

// Client is the HTTP client for the code generation service.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	logger     *slog.Logger
}

// NewClient creates a codegen client from service configuration.
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

// Generate requests file changes for one ticket attempt. The response is
// validated change-by-change before it is returned; malformed output is an
// error here, a permanent fault for the caller.
func (c *Client) Generate(ctx context.Context, genReq GenerateRequest) (*GenerateResponse, error) {
	body, err := json.Marshal(genReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	c.logger.Debug("Calling generator",
		"ticket_id", genReq.TicketID,
		"attempt", genReq.Attempt,
		"context_files", len(genReq.Files),
		"feedback_items", len(genReq.Feedback))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("generator call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("generator returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var genResp GenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return nil, fmt.Errorf("failed to decode generator response: %w", err)
	}
	if len(genResp.Files) == 0 {
		return nil, fmt.Errorf("generator returned no file changes")
	}
	for i := range genResp.Files {
		if err := genResp.Files[i].Validate(); err != nil {
			return nil, fmt.Errorf("generator returned malformed output: %w", err)
		}
	}

	return &genResp, nil
}
