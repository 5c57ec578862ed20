package codegen

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// FS is the writable file surface changes apply to. The worktree implements
// it; tests substitute an in-memory map.
type FS interface {
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte) error
}

// ApplyResult summarizes one application of a generator response.
type ApplyResult struct {
	ChangedFiles   []string
	Created        int
	Modified       int
	SkippedPatches int
}

// Applier applies generator file changes to a worktree.
//
// Patch discipline: each search string is expected to match exactly once.
// Multiple matches get a warning and the replacement is applied to every
// occurrence. Zero matches get the patch logged and skipped with the file
// otherwise untouched; the ticket continues and verification catches the
// missing behavior.
type Applier struct {
	logger *slog.Logger
}

// NewApplier creates an Applier.
func NewApplier(logger *slog.Logger) *Applier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Applier{logger: logger}
}

// Apply writes every change to fs. It validates all changes before touching
// any file, so malformed generator output never half-applies.
func (a *Applier) Apply(fs FS, changes []FileChange) (*ApplyResult, error) {
	for i := range changes {
		if err := changes[i].Validate(); err != nil {
			return nil, fmt.Errorf("invalid generator output: %w", err)
		}
	}

	result := &ApplyResult{}
	changed := make(map[string]bool)

	for _, fc := range changes {
		switch fc.Kind {
		case ChangeCreate:
			if err := fs.WriteFile(fc.Path, []byte(fc.Content)); err != nil {
				return nil, fmt.Errorf("failed to create %s: %w", fc.Path, err)
			}
			result.Created++
			changed[fc.Path] = true

		case ChangeModify:
			modified, skipped, err := a.applyPatches(fs, fc)
			if err != nil {
				return nil, err
			}
			result.SkippedPatches += skipped
			if modified {
				result.Modified++
				changed[fc.Path] = true
			}
		}
	}

	result.ChangedFiles = make([]string, 0, len(changed))
	for p := range changed {
		result.ChangedFiles = append(result.ChangedFiles, p)
	}
	sort.Strings(result.ChangedFiles)
	return result, nil
}

// applyPatches runs one modify change. Returns whether the file was written
// and how many patches were skipped.
func (a *Applier) applyPatches(fs FS, fc FileChange) (bool, int, error) {
	data, err := fs.ReadFile(fc.Path)
	if err != nil {
		// The whole file is unpatched; let verification surface the gap.
		a.logger.Error("Cannot read file for modify change, skipping",
			"path", fc.Path,
			"patches", len(fc.Patches),
			"error", err)
		return false, len(fc.Patches), nil
	}

	original := string(data)
	content := original

	skipped := 0
	for i, p := range fc.Patches {
		count := strings.Count(content, p.Search)
		switch count {
		case 0:
			a.logger.Warn("Patch search text not found, skipping patch",
				"path", fc.Path,
				"patch", i+1,
				"search_prefix", prefixForLog(p.Search))
			skipped++
		case 1:
			content = strings.Replace(content, p.Search, p.Replace, 1)
		default:
			a.logger.Warn("Patch search text matches multiple times, applying to all",
				"path", fc.Path,
				"patch", i+1,
				"matches", count)
			content = strings.ReplaceAll(content, p.Search, p.Replace)
		}
	}

	if content == original {
		return false, skipped, nil
	}
	if err := fs.WriteFile(fc.Path, []byte(content)); err != nil {
		return false, skipped, fmt.Errorf("failed to write %s: %w", fc.Path, err)
	}
	return true, skipped, nil
}

func prefixForLog(s string) string {
	const max = 60
	s = strings.ReplaceAll(s, "\n", "\\n")
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
