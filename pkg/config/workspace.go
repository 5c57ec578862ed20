package config

import (
	"os"
	"path/filepath"
	"time"
)

// WorkspaceConfig controls the on-disk git working area.
type WorkspaceConfig struct {
	// RootDir is where per-ticket worktrees are created.
	RootDir string `yaml:"root_dir"`

	// MirrorDir is where bare mirror clones are cached, one per repo.
	MirrorDir string `yaml:"mirror_dir"`

	// GitUserName and GitUserEmail identify the committing agent.
	GitUserName  string `yaml:"git_user_name"`
	GitUserEmail string `yaml:"git_user_email"`

	// CommandTimeout bounds one git invocation. Fetches of large repos set
	// the practical floor.
	CommandTimeout time.Duration `yaml:"command_timeout"`
}

// DefaultWorkspaceConfig returns the built-in workspace defaults.
func DefaultWorkspaceConfig() *WorkspaceConfig {
	base := filepath.Join(os.TempDir(), "swarm")
	return &WorkspaceConfig{
		RootDir:        filepath.Join(base, "worktrees"),
		MirrorDir:      filepath.Join(base, "mirrors"),
		GitUserName:    "swarm-forge",
		GitUserEmail:   "forge@swarm.invalid",
		CommandTimeout: 2 * time.Minute,
	}
}
