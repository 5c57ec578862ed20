// Package vcs talks to the git hosting API: pull request creation, labels,
// squash merges, and branch cleanup.
package vcs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/forgeworks/swarm/pkg/config"
)

// APIError is a non-2xx response from the VCS host.
type APIError struct {
	StatusCode int
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("vcs api returned HTTP %d: %s", e.StatusCode, e.Message)
}

// PullRequest is the subset of the host's PR representation the engine uses.
type PullRequest struct {
	Number  int    `json:"number"`
	HTMLURL string `json:"html_url"`
	State   string `json:"state"`
	Merged  bool   `json:"merged"`
}

// CreatePRRequest describes a pull request to open.
type CreatePRRequest struct {
	Repo       Repo
	Title      string
	Body       string
	HeadBranch string
	BaseBranch string
}

// MergeResult reports the outcome of a squash merge.
type MergeResult struct {
	SHA           string `json:"sha"`
	Merged        bool   `json:"merged"`
	Message       string `json:"message"`
	AlreadyMerged bool   `json:"-"`
}

// Client is the HTTP client for the VCS host's REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	logger     *slog.Logger
}

// NewClient creates a VCS client. token may be empty (test stubs, public
// read paths); write operations against a real host will then fail with 401.
func NewClient(cfg *config.VCSConfig, token string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      token,
		logger:     slog.Default(),
	}
}

// CreatePullRequest opens a PR for the head branch. When the host reports
// that a PR for this head already exists, the open one is looked up and
// adopted so retried executions stay idempotent.
func (c *Client) CreatePullRequest(ctx context.Context, req CreatePRRequest) (*PullRequest, error) {
	body := map[string]string{
		"title": req.Title,
		"body":  req.Body,
		"head":  req.HeadBranch,
		"base":  req.BaseBranch,
	}

	var pr PullRequest
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/repos/%s/pulls", req.Repo), body, &pr)
	if err == nil {
		c.logger.Info("Created pull request",
			"repo", req.Repo.String(),
			"pr_number", pr.Number,
			"head", req.HeadBranch)
		return &pr, nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnprocessableEntity &&
		strings.Contains(strings.ToLower(apiErr.Message), "already exists") {
		existing, lookupErr := c.findOpenPRByHead(ctx, req.Repo, req.HeadBranch)
		if lookupErr != nil {
			return nil, fmt.Errorf("pr exists but lookup failed: %w", lookupErr)
		}
		if existing != nil {
			c.logger.Info("Adopted existing pull request",
				"repo", req.Repo.String(),
				"pr_number", existing.Number,
				"head", req.HeadBranch)
			return existing, nil
		}
	}
	return nil, err
}

// findOpenPRByHead returns the open PR whose head is the given branch, or
// nil when there is none.
func (c *Client) findOpenPRByHead(ctx context.Context, repo Repo, headBranch string) (*PullRequest, error) {
	query := url.Values{}
	query.Set("head", repo.Owner+":"+headBranch)
	query.Set("state", "open")

	var prs []PullRequest
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/repos/%s/pulls?%s", repo, query.Encode()), nil, &prs); err != nil {
		return nil, err
	}
	if len(prs) == 0 {
		return nil, nil
	}
	return &prs[0], nil
}

// GetPullRequest fetches one PR.
func (c *Client) GetPullRequest(ctx context.Context, repo Repo, number int) (*PullRequest, error) {
	var pr PullRequest
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/repos/%s/pulls/%d", repo, number), nil, &pr); err != nil {
		return nil, err
	}
	return &pr, nil
}

// AddLabels attaches labels to the PR.
func (c *Client) AddLabels(ctx context.Context, repo Repo, number int, labels []string) error {
	body := map[string][]string{"labels": labels}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/repos/%s/issues/%d/labels", repo, number), body, nil)
}

// SquashMerge merges the PR with a squash commit. A PR that turns out to be
// merged already is reported as success with AlreadyMerged set; someone
// finishing our work is not a failure.
func (c *Client) SquashMerge(ctx context.Context, repo Repo, number int, commitTitle string) (*MergeResult, error) {
	body := map[string]string{
		"merge_method": "squash",
		"commit_title": commitTitle,
	}

	var result MergeResult
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("/repos/%s/pulls/%d/merge", repo, number), body, &result)
	if err == nil {
		return &result, nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) && mergeConflictStatus(apiErr.StatusCode) {
		pr, getErr := c.GetPullRequest(ctx, repo, number)
		if getErr == nil && pr.Merged {
			c.logger.Info("Pull request was already merged", "repo", repo.String(), "pr_number", number)
			return &MergeResult{Merged: true, AlreadyMerged: true}, nil
		}
	}
	return nil, err
}

// mergeConflictStatus covers the statuses the host uses for "cannot merge
// right now", which includes the already-merged case.
func mergeConflictStatus(code int) bool {
	return code == http.StatusMethodNotAllowed || code == http.StatusConflict
}

// DeleteBranch removes the remote branch after a merge. A branch that is
// already gone counts as deleted.
func (c *Client) DeleteBranch(ctx context.Context, repo Repo, branch string) error {
	err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/repos/%s/git/refs/heads/%s", repo, url.PathEscape(branch)), nil, nil)
	if err == nil {
		return nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusNotFound ||
			(apiErr.StatusCode == http.StatusUnprocessableEntity &&
				strings.Contains(strings.ToLower(apiErr.Message), "does not exist")) {
			return nil
		}
	}
	return err
}

// do executes one API call, encoding body and decoding the response into
// out when non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("vcs api call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if decodeErr := json.NewDecoder(resp.Body).Decode(apiErr); decodeErr != nil {
			apiErr.Message = resp.Status
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode vcs response: %w", err)
	}
	return nil
}
