// Package verifier wraps the external verification service that checks a
// ticket's branch against its acceptance criteria.
package verifier

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

// Verification phases. A forge-side review runs static and automated; the
// sentinel review on the PR runs the sentinel phase alone.
const (
	PhaseStatic    = "static"
	PhaseAutomated = "automated"
	PhaseSentinel  = "sentinel"
)

// ForgePhases returns the phases run before a PR exists.
func ForgePhases() []string {
	return []string{PhaseStatic, PhaseAutomated}
}

// SentinelPhases returns the phases run by the sentinel gate on the PR.
func SentinelPhases() []string {
	return []string{PhaseSentinel}
}

// Result statuses.
const (
	StatusPassed = "passed"
	StatusFailed = "failed"
)

// Request is one verification call for a ticket attempt.
type Request struct {
	TicketID           string                       `json:"ticket_id"`
	BranchName         string                       `json:"branch_name"`
	RepoURL            string                       `json:"repo_url"`
	Attempt            int                          `json:"attempt"`
	AcceptanceCriteria []models.AcceptanceCriterion `json:"acceptance_criteria"`
	Phases             []string                     `json:"phases"`
}

// Result is the verifier's verdict for one attempt.
type Result struct {
	Status           string          `json:"status"`
	ReadyForPR       bool            `json:"ready_for_pr,omitempty"`
	FeedbackForAgent []string        `json:"feedback_for_agent,omitempty"`
	Evidence         json.RawMessage `json:"evidence,omitempty"`
}

// Passed reports whether the attempt cleared verification.
func (r *Result) Passed() bool {
	return r.Status == StatusPassed || r.ReadyForPR
}

// StatusError is a non-2xx verifier response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("verifier returned HTTP %d: %s", e.StatusCode, e.Body)
}

// Client is the HTTP client for the verification service.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	logger     *slog.Logger
}

// NewClient creates a verifier client from service configuration.
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

// Verify runs one verification attempt. The verifier is idempotent per
// (ticket, attempt); callers guarantee monotonic attempt numbers.
func (c *Client) Verify(ctx context.Context, verifyReq Request) (*Result, error) {
	body, err := json.Marshal(verifyReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal verify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/verify", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create verify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	c.logger.Debug("Calling verifier",
		"ticket_id", verifyReq.TicketID,
		"attempt", verifyReq.Attempt,
		"phases", verifyReq.Phases)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("verifier call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode verifier response: %w", err)
	}

	if result.Status != StatusPassed && result.Status != StatusFailed {
		return nil, fmt.Errorf("verifier returned unknown status %q", result.Status)
	}

	return &result, nil
}
