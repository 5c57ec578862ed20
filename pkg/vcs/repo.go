package vcs

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Repo identifies a repository on the VCS host.
type Repo struct {
	Owner string
	Name  string
}

// String returns the owner/name form used in API paths.
func (r Repo) String() string {
	return r.Owner + "/" + r.Name
}

// sshRepoPattern matches scp-like git URLs: git@host:owner/repo(.git)
var sshRepoPattern = regexp.MustCompile(`^(?:ssh://)?git@[^:/]+[:/]([^/]+)/(.+?)(?:\.git)?$`)

// ParseRepoURL extracts owner and repository name from a clone URL.
// Supports https://host/owner/repo(.git) and git@host:owner/repo(.git).
func ParseRepoURL(rawURL string) (Repo, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return Repo{}, fmt.Errorf("empty repository URL")
	}

	if matches := sshRepoPattern.FindStringSubmatch(rawURL); matches != nil {
		return Repo{Owner: matches[1], Name: matches[2]}, nil
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return Repo{}, fmt.Errorf("malformed repository URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return Repo{}, fmt.Errorf("unsupported repository URL scheme %q", parsed.Scheme)
	}

	parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return Repo{}, fmt.Errorf("repository URL %q has no owner/name path", rawURL)
	}

	return Repo{
		Owner: parts[0],
		Name:  strings.TrimSuffix(parts[1], ".git"),
	}, nil
}
