package vcs

import (
	"fmt"
	"os"
	"strings"
)

// LoadToken resolves the VCS API token. A configured token file wins; the
// environment variable is the fallback. An empty result is legal (the
// client then runs unauthenticated, which only works against stubs).
func LoadToken(tokenPath, tokenEnv string) (string, error) {
	if tokenPath != "" {
		data, err := os.ReadFile(tokenPath)
		if err != nil {
			return "", fmt.Errorf("failed to read vcs token file %s: %w", tokenPath, err)
		}
		token := strings.TrimSpace(string(data))
		if token == "" {
			return "", fmt.Errorf("vcs token file %s is empty", tokenPath)
		}
		return token, nil
	}

	if tokenEnv != "" {
		return strings.TrimSpace(os.Getenv(tokenEnv)), nil
	}
	return "", nil
}
