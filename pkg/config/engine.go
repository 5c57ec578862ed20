package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// EngineConfig contains orchestration engine configuration.
// These values control how tickets are polled, claimed, verified, and
// reclaimed.
type EngineConfig struct {
	// PollInterval is the base interval between dispatch ticks.
	PollInterval time.Duration `yaml:"poll_interval"`

	// PollIntervalJitter is the random jitter added to PollInterval.
	// Actual interval: PollInterval ± PollIntervalJitter. Staggers replicas
	// so they do not hit the claim query in lockstep.
	PollIntervalJitter time.Duration `yaml:"poll_interval_jitter"`

	// MaxConcurrent is the per-replica limit of tickets executing at once.
	// Fleet-wide concurrency is emergent from claim atomicity, not enforced
	// centrally.
	MaxConcurrent int `yaml:"max_concurrent"`

	// ClaimBatchLimit is how many tickets one claim call may take. One per
	// call keeps FIFO fairness across replicas.
	ClaimBatchLimit int `yaml:"claim_batch_limit"`

	// TicketTimeout bounds one ticket's full execution (generate, apply,
	// push, verify, PR).
	TicketTimeout time.Duration `yaml:"ticket_timeout"`

	// GracefulShutdownTimeout is the max time to wait for in-flight tickets
	// to release during shutdown.
	GracefulShutdownTimeout time.Duration `yaml:"graceful_shutdown_timeout"`

	// HeartbeatInterval is how often the engine advances leases on its
	// in-flight tickets.
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`

	// ReaperInterval is how often to scan for stale in-flight tickets.
	ReaperInterval time.Duration `yaml:"reaper_interval"`

	// StaleThreshold is how long a ticket can go without a heartbeat before
	// it is reclaimed. Strictly greater-than: a heartbeat exactly at the
	// threshold is still live.
	StaleThreshold time.Duration `yaml:"stale_threshold"`

	// VerifyMaxRetries is the total number of verification attempts per
	// ticket, the first included. 3 means attempt_1 through attempt_3.
	VerifyMaxRetries int `yaml:"verify_max_retries"`

	// VerifyBaseDelay is the delay before the first verification retry.
	VerifyBaseDelay time.Duration `yaml:"verify_base_delay"`

	// VerifyDelayCap bounds the exponential retry delay.
	VerifyDelayCap time.Duration `yaml:"verify_delay_cap"`

	// VerifyBackoffMultiplier is the exponential growth factor between
	// retry delays.
	VerifyBackoffMultiplier float64 `yaml:"verify_backoff_multiplier"`

	// VCSTokenPath is a file holding the VCS host token. When empty, the
	// token comes from the environment instead.
	VCSTokenPath string `yaml:"vcs_token_path"`

	// DefaultBaseBranch is the branch PRs target when neither the session
	// nor the project names one.
	DefaultBaseBranch string `yaml:"default_base_branch"`
}

// DefaultEngineConfig returns the built-in engine defaults.
func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		PollInterval:            2 * time.Second,
		PollIntervalJitter:      500 * time.Millisecond,
		MaxConcurrent:           4,
		ClaimBatchLimit:         1,
		TicketTimeout:           15 * time.Minute,
		GracefulShutdownTimeout: 30 * time.Second,
		HeartbeatInterval:       30 * time.Second,
		ReaperInterval:          60 * time.Second,
		StaleThreshold:          5 * time.Minute,
		VerifyMaxRetries:        3,
		VerifyBaseDelay:         1 * time.Second,
		VerifyDelayCap:          8 * time.Second,
		VerifyBackoffMultiplier: 2.0,
		DefaultBaseBranch:       "main",
	}
}

// applyEngineEnvOverrides layers SWARM_* environment variables over the
// merged YAML/default values. Environment wins; a malformed value is a
// startup error rather than a silent fallback.
func applyEngineEnvOverrides(cfg *EngineConfig) error {
	if err := overrideDuration("SWARM_POLL_INTERVAL", &cfg.PollInterval); err != nil {
		return err
	}
	if err := overrideInt("SWARM_MAX_CONCURRENT", &cfg.MaxConcurrent); err != nil {
		return err
	}
	if err := overrideDuration("SWARM_TICKET_TIMEOUT", &cfg.TicketTimeout); err != nil {
		return err
	}
	if err := overrideDuration("SWARM_HEARTBEAT_INTERVAL", &cfg.HeartbeatInterval); err != nil {
		return err
	}
	if err := overrideDuration("SWARM_REAPER_INTERVAL", &cfg.ReaperInterval); err != nil {
		return err
	}
	if err := overrideDuration("SWARM_STALE_THRESHOLD", &cfg.StaleThreshold); err != nil {
		return err
	}
	if err := overrideInt("SWARM_VERIFY_MAX_RETRIES", &cfg.VerifyMaxRetries); err != nil {
		return err
	}
	if err := overrideDuration("SWARM_VERIFY_BASE_DELAY", &cfg.VerifyBaseDelay); err != nil {
		return err
	}
	if err := overrideDuration("SWARM_VERIFY_DELAY_CAP", &cfg.VerifyDelayCap); err != nil {
		return err
	}
	if err := overrideFloat("SWARM_VERIFY_BACKOFF_MULTIPLIER", &cfg.VerifyBackoffMultiplier); err != nil {
		return err
	}
	if v := os.Getenv("SWARM_VCS_TOKEN_PATH"); v != "" {
		cfg.VCSTokenPath = v
	}
	if v := os.Getenv("SWARM_DEFAULT_BASE_BRANCH"); v != "" {
		cfg.DefaultBaseBranch = v
	}
	return nil
}

func overrideDuration(key string, target *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%w: %s=%q is not a duration", ErrInvalidValue, key, v)
	}
	*target = d
	return nil
}

func overrideInt(key string, target *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidValue, key, v)
	}
	*target = n
	return nil
}

func overrideFloat(key string, target *float64) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%w: %s=%q is not a number", ErrInvalidValue, key, v)
	}
	*target = f
	return nil
}
