package codegen

import (
	"fmt"
	"path"
	"strings"
)

// ChangeKind is the tag of the generator's file-change variant.
type ChangeKind string

const (
	// ChangeCreate carries the full content of a new file.
	ChangeCreate ChangeKind = "create"
	// ChangeModify carries an ordered list of search/replace patches against
	// the file's current content.
	ChangeModify ChangeKind = "modify"
)

// Patch is one search/replace edit. Search must match the file content
// byte-for-byte, surrounding whitespace included.
type Patch struct {
	Search  string `json:"search"`
	Replace string `json:"replace"`
}

// FileChange is one entry of the generator's response. Exactly one variant
// is populated according to Kind.
type FileChange struct {
	Path    string     `json:"path"`
	Kind    ChangeKind `json:"kind"`
	Content string     `json:"content,omitempty"`
	Patches []Patch    `json:"patches,omitempty"`
}

// Validate rejects malformed generator output. A malformed change is a
// permanent fault for the ticket, never silently skipped.
func (fc *FileChange) Validate() error {
	if fc.Path == "" {
		return fmt.Errorf("file change has empty path")
	}
	if !isSafeRelPath(fc.Path) {
		return fmt.Errorf("file change path %q escapes the worktree", fc.Path)
	}

	switch fc.Kind {
	case ChangeCreate:
		if len(fc.Patches) > 0 {
			return fmt.Errorf("create change for %q carries patches", fc.Path)
		}
	case ChangeModify:
		if len(fc.Patches) == 0 {
			return fmt.Errorf("modify change for %q has no patches", fc.Path)
		}
		for i, p := range fc.Patches {
			if p.Search == "" {
				return fmt.Errorf("modify change for %q: patch %d has empty search", fc.Path, i+1)
			}
		}
	default:
		return fmt.Errorf("unknown change kind %q for %q", fc.Kind, fc.Path)
	}
	return nil
}

// isSafeRelPath reports whether p stays inside the worktree root.
func isSafeRelPath(p string) bool {
	if strings.HasPrefix(p, "/") || strings.Contains(p, "\\") {
		return false
	}
	clean := path.Clean(p)
	return clean != ".." && !strings.HasPrefix(clean, "../") && clean != "."
}
