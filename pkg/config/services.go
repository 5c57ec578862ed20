package config

import "time"

// ServiceConfig describes one upstream HTTP collaborator.
type ServiceConfig struct {
	// BaseURL is the collaborator's root URL.
	BaseURL string `yaml:"base_url"`

	// Timeout bounds one request to the collaborator.
	Timeout time.Duration `yaml:"timeout"`

	// TokenEnv names the env var holding the bearer token. Empty disables
	// auth on outgoing requests.
	TokenEnv string `yaml:"token_env,omitempty"`
}

// VCSConfig holds the VCS host API coordinates. The token itself comes from
// EngineConfig.VCSTokenPath or the TokenEnv variable.
type VCSConfig struct {
	// BaseURL is the REST API root, e.g. https://api.github.com or a GHES
	// /api/v3 endpoint.
	BaseURL string `yaml:"base_url"`

	// Timeout bounds one API call. Merge polling uses several calls, each
	// individually bounded.
	Timeout time.Duration `yaml:"timeout"`

	// TokenEnv names the env var fallback when vcs_token_path is not set.
	TokenEnv string `yaml:"token_env"`
}

// ServicesConfig groups the engine's external collaborators.
type ServicesConfig struct {
	// Ticketgen turns an approved spec into a ticket graph.
	Ticketgen *ServiceConfig `yaml:"ticketgen"`

	// Codegen generates file changes for one ticket.
	Codegen *ServiceConfig `yaml:"codegen"`

	// Verifier checks a branch against acceptance criteria.
	Verifier *ServiceConfig `yaml:"verifier"`

	// VCS is the git hosting API used for PRs and merges.
	VCS *VCSConfig `yaml:"vcs"`
}

// DefaultServicesConfig returns the built-in collaborator defaults.
// Codegen gets a long timeout: generation regularly runs for minutes.
func DefaultServicesConfig() *ServicesConfig {
	return &ServicesConfig{
		Ticketgen: &ServiceConfig{
			BaseURL: "http://localhost:8091",
			Timeout: 2 * time.Minute,
		},
		Codegen: &ServiceConfig{
			BaseURL: "http://localhost:8090",
			Timeout: 10 * time.Minute,
		},
		Verifier: &ServiceConfig{
			BaseURL: "http://localhost:8092",
			Timeout: 2 * time.Minute,
		},
		VCS: &VCSConfig{
			BaseURL:  "https://api.github.com",
			Timeout:  30 * time.Second,
			TokenEnv: "VCS_TOKEN",
		},
	}
}
