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

const projectColumns = `id, tenant_id, name, repo_url, branch, kind, created_by, created_at, updated_at`

// ProjectStore provides project persistence.
type ProjectStore struct {
	pool *pgxpool.Pool
}

func scanProject(row scanner) (*models.Project, error) {
	var p models.Project
	var createdBy *string
	err := row.Scan(&p.ID, &p.TenantID, &p.Name, &p.RepoURL, &p.Branch, &p.Kind, &createdBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if createdBy != nil {
		p.CreatedBy = *createdBy
	}
	return &p, nil
}

// Create inserts a new project.
func (s *ProjectStore) Create(ctx context.Context, req models.CreateProjectRequest) (*models.Project, error) {
	if req.TenantID == "" {
		return nil, NewValidationError("tenant_id", "must not be empty")
	}
	if req.Name == "" {
		return nil, NewValidationError("name", "must not be empty")
	}

	branch := req.Branch
	if branch == "" {
		branch = "main"
	}
	kind := req.Kind
	if kind == "" {
		kind = models.ProjectGeneric
	}
	var repoURL *string
	if req.RepoURL != "" {
		repoURL = &req.RepoURL
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO projects (id, tenant_id, name, repo_url, branch, kind)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+projectColumns,
		uuid.NewString(), req.TenantID, req.Name, repoURL, branch, kind)
	p, err := scanProject(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}
	return p, nil
}

// GetByID fetches one project.
func (s *ProjectStore) GetByID(ctx context.Context, id string) (*models.Project, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id)
	p, err := scanProject(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project %s: %w", id, err)
	}
	return p, nil
}

// ListByTenant returns a tenant's projects, newest first.
func (s *ProjectStore) ListByTenant(ctx context.Context, tenantID string) ([]*models.Project, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE tenant_id = $1 ORDER BY created_at DESC`,
		tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []*models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}
