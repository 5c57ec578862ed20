package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Worktree is one checked-out working directory bound to a ticket branch.
// File paths on all methods are relative to the worktree root; escaping
// paths are rejected because they come from generator output.
type Worktree struct {
	Path    string
	Branch  string
	RepoURL string

	mirror  string
	manager *Manager
}

// ReadFile reads a file inside the worktree.
func (w *Worktree) ReadFile(rel string) ([]byte, error) {
	abs, err := w.resolve(rel)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(abs)
}

// WriteFile writes a file inside the worktree, creating parent directories.
func (w *Worktree) WriteFile(rel string, data []byte) error {
	abs, err := w.resolve(rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o750); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", rel, err)
	}
	return os.WriteFile(abs, data, 0o644)
}

// FileExists reports whether rel exists inside the worktree.
func (w *Worktree) FileExists(rel string) bool {
	abs, err := w.resolve(rel)
	if err != nil {
		return false
	}
	_, statErr := os.Stat(abs)
	return statErr == nil
}

func (w *Worktree) resolve(rel string) (string, error) {
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("path %q must be relative to the worktree", rel)
	}
	clean := filepath.Clean(rel)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the worktree", rel)
	}
	return filepath.Join(w.Path, clean), nil
}

// CommitAll stages every change and commits with the configured agent
// identity. committed is false when the tree is clean, which is not an
// error; the generator may legitimately produce an already-applied state on
// a retried ticket.
func (w *Worktree) CommitAll(ctx context.Context, message string) (sha string, committed bool, err error) {
	if err := w.manager.git(ctx, w.Path, "add", "-A"); err != nil {
		return "", false, fmt.Errorf("failed to stage changes: %w", err)
	}

	status, err := w.manager.gitOutput(ctx, w.Path, "status", "--porcelain")
	if err != nil {
		return "", false, fmt.Errorf("failed to check status: %w", err)
	}
	if status == "" {
		return "", false, nil
	}

	cfg := w.manager.cfg
	if err := w.manager.git(ctx, w.Path,
		"-c", "user.name="+cfg.GitUserName,
		"-c", "user.email="+cfg.GitUserEmail,
		"commit", "-m", message); err != nil {
		return "", false, fmt.Errorf("failed to commit: %w", err)
	}

	sha, err = w.manager.gitOutput(ctx, w.Path, "rev-parse", "HEAD")
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve commit sha: %w", err)
	}
	return sha, true, nil
}

// Push uploads the ticket branch to origin.
func (w *Worktree) Push(ctx context.Context) error {
	if err := w.manager.git(ctx, w.Path, "push", "-u", "origin", w.Branch); err != nil {
		return fmt.Errorf("failed to push %s: %w", w.Branch, err)
	}
	return nil
}

// Head returns the current commit SHA.
func (w *Worktree) Head(ctx context.Context) (string, error) {
	return w.manager.gitOutput(ctx, w.Path, "rev-parse", "HEAD")
}

// Remove deletes the worktree directory and its registration. The branch
// itself stays in the mirror; the VCS host deletes the remote branch on
// merge.
func (w *Worktree) Remove(ctx context.Context) error {
	if err := w.manager.git(ctx, w.mirror, "worktree", "remove", "--force", w.Path); err != nil {
		// Fall back to manual removal plus prune when git refuses.
		if rmErr := os.RemoveAll(w.Path); rmErr != nil {
			return fmt.Errorf("failed to remove worktree: %w", rmErr)
		}
		_ = w.manager.git(ctx, w.mirror, "worktree", "prune")
	}
	return nil
}
