package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/forgeworks/swarm/pkg/models"
)

const sessionColumns = `id, tenant_id, project_id, title, repo_url, branch_name, status, created_at, updated_at`

// SessionStore provides design-session persistence.
type SessionStore struct {
	pool *pgxpool.Pool
}

func scanSession(row scanner) (*models.Session, error) {
	var sess models.Session
	err := row.Scan(&sess.ID, &sess.TenantID, &sess.ProjectID, &sess.Title,
		&sess.RepoURL, &sess.BranchName, &sess.Status, &sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// Create inserts a new design session in draft status.
func (s *SessionStore) Create(ctx context.Context, req models.CreateSessionRequest) (*models.Session, error) {
	if req.TenantID == "" {
		return nil, NewValidationError("tenant_id", "must not be empty")
	}
	if req.Title == "" {
		return nil, NewValidationError("title", "must not be empty")
	}

	var projectID, repoURL, branchName *string
	if req.ProjectID != "" {
		projectID = &req.ProjectID
	}
	if req.RepoURL != "" {
		repoURL = &req.RepoURL
	}
	if req.BranchName != "" {
		branchName = &req.BranchName
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO hitl_sessions (id, tenant_id, project_id, title, repo_url, branch_name, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+sessionColumns,
		uuid.NewString(), req.TenantID, projectID, req.Title, repoURL, branchName, models.SessionStatusDraft)
	sess, err := scanSession(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return sess, nil
}

// GetByID fetches one design session.
func (s *SessionStore) GetByID(ctx context.Context, id string) (*models.Session, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM hitl_sessions WHERE id = $1`, id)
	sess, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session %s: %w", id, err)
	}
	return sess, nil
}

// SetStatus updates the session status.
func (s *SessionStore) SetStatus(ctx context.Context, id, status string) (*models.Session, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE hitl_sessions SET status = $2, updated_at = now() WHERE id = $1 RETURNING `+sessionColumns,
		id, status)
	sess, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update session %s: %w", id, err)
	}
	return sess, nil
}

// ListByTenant returns a tenant's sessions, newest first.
func (s *SessionStore) ListByTenant(ctx context.Context, tenantID string) ([]*models.Session, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+sessionColumns+` FROM hitl_sessions WHERE tenant_id = $1 ORDER BY created_at DESC`,
		tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}
