package config

import (
	"fmt"
	"net/url"
)

// ConfigValidator validates configuration comprehensively with clear error messages
type ConfigValidator struct {
	cfg *Config
}

// NewValidator creates a validator for the given configuration
func NewValidator(cfg *Config) *ConfigValidator {
	return &ConfigValidator{cfg: cfg}
}

// ValidateAll performs comprehensive validation (fail-fast - stops at first error)
func (v *ConfigValidator) ValidateAll() error {
	if err := v.validateEngine(); err != nil {
		return fmt.Errorf("engine validation failed: %w", err)
	}
	if err := v.validateServices(); err != nil {
		return fmt.Errorf("services validation failed: %w", err)
	}
	if err := v.validateWorkspace(); err != nil {
		return fmt.Errorf("workspace validation failed: %w", err)
	}
	return nil
}

func (v *ConfigValidator) validateEngine() error {
	e := v.cfg.Engine
	if e == nil {
		return NewValidationError("engine", "", ErrMissingRequiredField)
	}
	if e.PollInterval <= 0 {
		return NewValidationError("engine", "poll_interval", fmt.Errorf("must be positive"))
	}
	if e.PollIntervalJitter < 0 || e.PollIntervalJitter >= e.PollInterval {
		return NewValidationError("engine", "poll_interval_jitter", fmt.Errorf("must be in [0, poll_interval)"))
	}
	if e.MaxConcurrent < 1 {
		return NewValidationError("engine", "max_concurrent", fmt.Errorf("must be at least 1"))
	}
	if e.ClaimBatchLimit < 1 {
		return NewValidationError("engine", "claim_batch_limit", fmt.Errorf("must be at least 1"))
	}
	if e.TicketTimeout <= 0 {
		return NewValidationError("engine", "ticket_timeout", fmt.Errorf("must be positive"))
	}
	if e.GracefulShutdownTimeout <= 0 {
		return NewValidationError("engine", "graceful_shutdown_timeout", fmt.Errorf("must be positive"))
	}
	if e.HeartbeatInterval <= 0 {
		return NewValidationError("engine", "heartbeat_interval", fmt.Errorf("must be positive"))
	}
	if e.ReaperInterval <= 0 {
		return NewValidationError("engine", "reaper_interval", fmt.Errorf("must be positive"))
	}
	// A lease must be refreshable at least a few times before it goes stale,
	// or routine scheduling hiccups trigger reclaims of live work.
	if e.StaleThreshold <= e.HeartbeatInterval*2 {
		return NewValidationError("engine", "stale_threshold",
			fmt.Errorf("must exceed twice heartbeat_interval (%s)", e.HeartbeatInterval))
	}
	if e.VerifyMaxRetries < 0 {
		return NewValidationError("engine", "verify_max_retries", fmt.Errorf("must not be negative"))
	}
	if e.VerifyBaseDelay <= 0 {
		return NewValidationError("engine", "verify_base_delay", fmt.Errorf("must be positive"))
	}
	if e.VerifyDelayCap < e.VerifyBaseDelay {
		return NewValidationError("engine", "verify_delay_cap", fmt.Errorf("must be at least verify_base_delay"))
	}
	if e.VerifyBackoffMultiplier < 1 {
		return NewValidationError("engine", "verify_backoff_multiplier", fmt.Errorf("must be at least 1"))
	}
	if e.DefaultBaseBranch == "" {
		return NewValidationError("engine", "default_base_branch", ErrMissingRequiredField)
	}
	return nil
}

func (v *ConfigValidator) validateServices() error {
	s := v.cfg.Services
	if s == nil {
		return NewValidationError("services", "", ErrMissingRequiredField)
	}

	endpoints := []struct {
		name    string
		baseURL string
		timeout bool
	}{
		{"ticketgen", svcBaseURL(s.Ticketgen), svcTimeoutSet(s.Ticketgen)},
		{"codegen", svcBaseURL(s.Codegen), svcTimeoutSet(s.Codegen)},
		{"verifier", svcBaseURL(s.Verifier), svcTimeoutSet(s.Verifier)},
	}
	for _, ep := range endpoints {
		if err := validateBaseURL(ep.name, ep.baseURL); err != nil {
			return err
		}
		if !ep.timeout {
			return NewValidationError("services", ep.name+".timeout", fmt.Errorf("must be positive"))
		}
	}

	if s.VCS == nil {
		return NewValidationError("services", "vcs", ErrMissingRequiredField)
	}
	if err := validateBaseURL("vcs", s.VCS.BaseURL); err != nil {
		return err
	}
	if s.VCS.Timeout <= 0 {
		return NewValidationError("services", "vcs.timeout", fmt.Errorf("must be positive"))
	}
	return nil
}

func svcBaseURL(s *ServiceConfig) string {
	if s == nil {
		return ""
	}
	return s.BaseURL
}

func svcTimeoutSet(s *ServiceConfig) bool {
	return s != nil && s.Timeout > 0
}

func validateBaseURL(name, raw string) error {
	if raw == "" {
		return NewValidationError("services", name+".base_url", ErrMissingRequiredField)
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return NewValidationError("services", name+".base_url", fmt.Errorf("%w: %q", ErrInvalidValue, raw))
	}
	return nil
}

func (v *ConfigValidator) validateWorkspace() error {
	w := v.cfg.Workspace
	if w == nil {
		return NewValidationError("workspace", "", ErrMissingRequiredField)
	}
	if w.RootDir == "" {
		return NewValidationError("workspace", "root_dir", ErrMissingRequiredField)
	}
	if w.MirrorDir == "" {
		return NewValidationError("workspace", "mirror_dir", ErrMissingRequiredField)
	}
	if w.GitUserName == "" || w.GitUserEmail == "" {
		return NewValidationError("workspace", "git_user", fmt.Errorf("commit identity must be set"))
	}
	if w.CommandTimeout <= 0 {
		return NewValidationError("workspace", "command_timeout", fmt.Errorf("must be positive"))
	}
	return nil
}
