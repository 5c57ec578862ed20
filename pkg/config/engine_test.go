package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultEngineConfig(t *testing.T) {
	cfg := DefaultEngineConfig()

	assert.Equal(t, 2*time.Second, cfg.PollInterval)
	assert.Equal(t, 4, cfg.MaxConcurrent)
	assert.Equal(t, 1, cfg.ClaimBatchLimit)
	assert.Equal(t, 30*time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, 60*time.Second, cfg.ReaperInterval)
	assert.Equal(t, 5*time.Minute, cfg.StaleThreshold)
	assert.Equal(t, 3, cfg.VerifyMaxRetries)
	assert.Equal(t, 1*time.Second, cfg.VerifyBaseDelay)
	assert.Equal(t, 8*time.Second, cfg.VerifyDelayCap)
	assert.Equal(t, 2.0, cfg.VerifyBackoffMultiplier)
	assert.Equal(t, "main", cfg.DefaultBaseBranch)
	assert.Empty(t, cfg.VCSTokenPath)
}

func TestApplyEngineEnvOverrides(t *testing.T) {
	t.Setenv("SWARM_POLL_INTERVAL", "750ms")
	t.Setenv("SWARM_MAX_CONCURRENT", "16")
	t.Setenv("SWARM_STALE_THRESHOLD", "10m")
	t.Setenv("SWARM_VERIFY_MAX_RETRIES", "5")
	t.Setenv("SWARM_VERIFY_BACKOFF_MULTIPLIER", "1.5")
	t.Setenv("SWARM_VCS_TOKEN_PATH", "/var/run/secrets/vcs-token")
	t.Setenv("SWARM_DEFAULT_BASE_BRANCH", "develop")

	cfg := DefaultEngineConfig()
	require.NoError(t, applyEngineEnvOverrides(cfg))

	assert.Equal(t, 750*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 16, cfg.MaxConcurrent)
	assert.Equal(t, 10*time.Minute, cfg.StaleThreshold)
	assert.Equal(t, 5, cfg.VerifyMaxRetries)
	assert.Equal(t, 1.5, cfg.VerifyBackoffMultiplier)
	assert.Equal(t, "/var/run/secrets/vcs-token", cfg.VCSTokenPath)
	assert.Equal(t, "develop", cfg.DefaultBaseBranch)

	// Untouched fields keep their defaults.
	assert.Equal(t, 30*time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, 15*time.Minute, cfg.TicketTimeout)
}

func TestApplyEngineEnvOverridesEmptyValuesIgnored(t *testing.T) {
	t.Setenv("SWARM_POLL_INTERVAL", "")
	t.Setenv("SWARM_MAX_CONCURRENT", "")

	cfg := DefaultEngineConfig()
	require.NoError(t, applyEngineEnvOverrides(cfg))

	assert.Equal(t, 2*time.Second, cfg.PollInterval)
	assert.Equal(t, 4, cfg.MaxConcurrent)
}

func TestApplyEngineEnvOverridesMalformedValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad duration", "SWARM_POLL_INTERVAL", "not-a-duration"},
		{"bare number for duration", "SWARM_HEARTBEAT_INTERVAL", "30"},
		{"bad integer", "SWARM_MAX_CONCURRENT", "many"},
		{"bad float", "SWARM_VERIFY_BACKOFF_MULTIPLIER", "twice"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			cfg := DefaultEngineConfig()
			err := applyEngineEnvOverrides(cfg)

			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidValue)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}
