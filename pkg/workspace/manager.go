// Package workspace manages the on-disk git working area: one cached bare
// clone per repository and one worktree per ticket branch.
package workspace

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/forgeworks/swarm/pkg/config"
)

// Manager creates and tears down worktrees. Safe for concurrent use across
// tickets as long as each ticket works on its own branch, which the branch
// naming scheme guarantees.
type Manager struct {
	cfg    *config.WorkspaceConfig
	logger *slog.Logger
}

// NewManager creates a workspace manager.
func NewManager(cfg *config.WorkspaceConfig) *Manager {
	return &Manager{
		cfg:    cfg,
		logger: slog.Default(),
	}
}

// Checkout ensures a worktree exists for the ticket's branch, creating the
// branch from baseBranch when it does not exist yet. An existing worktree
// directory is reused as-is so re-claimed tickets continue where the branch
// left off.
func (m *Manager) Checkout(ctx context.Context, repoURL, branch, baseBranch string) (*Worktree, error) {
	mirror, err := m.ensureMirror(ctx, repoURL)
	if err != nil {
		return nil, err
	}

	worktreePath := filepath.Join(m.cfg.RootDir, safeDirName(branch))
	wt := &Worktree{
		Path:    worktreePath,
		Branch:  branch,
		RepoURL: repoURL,
		mirror:  mirror,
		manager: m,
	}

	if _, err := os.Stat(worktreePath); err == nil {
		m.logger.Debug("Reusing existing worktree", "path", worktreePath, "branch", branch)
		return wt, nil
	}

	if err := os.MkdirAll(filepath.Dir(worktreePath), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create worktree directory: %w", err)
	}

	switch {
	case m.refExists(ctx, mirror, "refs/heads/"+branch):
		err = m.git(ctx, mirror, "worktree", "add", worktreePath, branch)
	case m.refExists(ctx, mirror, "refs/remotes/origin/"+branch):
		err = m.git(ctx, mirror, "worktree", "add", "--track", "-b", branch, worktreePath, "origin/"+branch)
	default:
		if !m.refExists(ctx, mirror, "refs/remotes/origin/"+baseBranch) {
			return nil, fmt.Errorf("base branch %q not found in %s", baseBranch, repoURL)
		}
		err = m.git(ctx, mirror, "worktree", "add", "-b", branch, worktreePath, "origin/"+baseBranch)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create worktree for %s: %w", branch, err)
	}

	m.logger.Info("Created worktree", "path", worktreePath, "branch", branch, "base", baseBranch)
	return wt, nil
}

// ensureMirror returns the cached bare clone for repoURL, cloning on first
// use and fetching otherwise. Remote branches are tracked under
// refs/remotes/origin/* so worktree checkouts never collide with fetches.
func (m *Manager) ensureMirror(ctx context.Context, repoURL string) (string, error) {
	path := filepath.Join(m.cfg.MirrorDir, mirrorDirName(repoURL))

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(m.cfg.MirrorDir, 0o750); err != nil {
			return "", fmt.Errorf("failed to create mirror directory: %w", err)
		}
		if err := m.git(ctx, "", "clone", "--bare", repoURL, path); err != nil {
			return "", fmt.Errorf("failed to clone %s: %w", repoURL, err)
		}
		if err := m.git(ctx, path, "config", "remote.origin.fetch", "+refs/heads/*:refs/remotes/origin/*"); err != nil {
			return "", err
		}
	}

	if err := m.git(ctx, path, "fetch", "--prune", "origin"); err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", repoURL, err)
	}
	return path, nil
}

// refExists reports whether the ref is present in the repository at dir.
func (m *Manager) refExists(ctx context.Context, dir, ref string) bool {
	return m.git(ctx, dir, "show-ref", "--verify", "--quiet", ref) == nil
}

// git runs one git command bounded by the configured command timeout.
// Stderr ends up in the returned error.
func (m *Manager) git(ctx context.Context, dir string, args ...string) error {
	_, err := m.gitOutput(ctx, dir, args...)
	return err
}

func (m *Manager) gitOutput(ctx context.Context, dir string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.CommandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return "", fmt.Errorf("git %s failed: %s", strings.Join(args, " "), detail)
	}
	return strings.TrimSpace(stdout.String()), nil
}

var unsafePathChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// safeDirName flattens a branch name into a filesystem-safe directory name.
func safeDirName(branch string) string {
	return unsafePathChars.ReplaceAllString(branch, "-")
}

// mirrorDirName derives a stable directory name for a repository URL. The
// hash suffix keeps same-named repos from different owners apart.
func mirrorDirName(repoURL string) string {
	sum := sha256.Sum256([]byte(repoURL))

	base := strings.TrimSuffix(repoURL, ".git")
	if i := strings.LastIndexAny(base, "/:"); i >= 0 {
		base = base[i+1:]
	}
	if base == "" {
		base = "repo"
	}
	return safeDirName(base) + "-" + hex.EncodeToString(sum[:4]) + ".git"
}
