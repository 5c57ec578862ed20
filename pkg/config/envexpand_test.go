package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandEnv(t *testing.T) {
	tests := []struct {
		name  string
		input string
		env   map[string]string
		want  string
	}{
		{
			name:  "simple substitution with {{.VAR}}",
			input: "token_env: {{.VCS_TOKEN}}",
			env:   map[string]string{"VCS_TOKEN": "ghp_secret123"},
			want:  "token_env: ghp_secret123",
		},
		{
			name:  "literal ${VAR} is NOT expanded (no collision)",
			input: "pattern: ${BRANCH}",
			env:   map[string]string{"BRANCH": "main"},
			want:  "pattern: ${BRANCH}",
		},
		{
			name:  "multiple substitutions in one line",
			input: "base_url: {{.PROTOCOL}}://{{.HOST}}:{{.PORT}}",
			env: map[string]string{
				"PROTOCOL": "https",
				"HOST":     "codegen.internal",
				"PORT":     "8090",
			},
			want: "base_url: https://codegen.internal:8090",
		},
		{
			name:  "missing variable expands to empty",
			input: "endpoint: {{.MISSING_VAR}}",
			env:   map[string]string{},
			want:  "endpoint: ",
		},
		{
			name:  "no substitution when no variables",
			input: "static: value",
			env:   map[string]string{"UNUSED": "value"},
			want:  "static: value",
		},
		{
			name:  "variables in nested YAML structure",
			input: "services:\n  vcs:\n    base_url: {{.VCS_BASE_URL}}",
			env:   map[string]string{"VCS_BASE_URL": "https://github.example.com/api/v3"},
			want:  "services:\n  vcs:\n    base_url: https://github.example.com/api/v3",
		},
		{
			name:  "special characters in expanded value",
			input: "token: {{.TOKEN}}",
			env:   map[string]string{"TOKEN": "t0k3n!#$%"},
			want:  "token: t0k3n!#$%",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			result := ExpandEnv([]byte(tt.input))
			assert.Equal(t, tt.want, string(result))
		})
	}
}

func TestExpandEnvPreservesOriginalWhenNoVariables(t *testing.T) {
	input := `
# This is a comment
engine:
  poll_interval: 2s
  max_concurrent: 4
`

	result := ExpandEnv([]byte(input))
	assert.Equal(t, input, string(result), "Content without variables should be unchanged")
}

// Malformed template syntax must pass through unchanged so the YAML parser
// can handle the content or fail with a clearer message.
func TestExpandEnvMalformedTemplates(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{
			name:  "unclosed template",
			input: "token: {{.VCS_TOKEN",
		},
		{
			name:  "missing leading dot",
			input: "token: {{VCS_TOKEN}}",
		},
		{
			name:  "empty template",
			input: "token: {{}}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("VCS_TOKEN", "should-not-appear")

			result := ExpandEnv([]byte(tt.input))

			assert.Equal(t, tt.input, string(result))
			assert.NotContains(t, string(result), "should-not-appear")
		})
	}
}
