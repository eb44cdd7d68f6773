package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 300, cfg.PollInterval)
	assert.Equal(t, "codex", cfg.LLMBackend)
	assert.Equal(t, 30, cfg.Lock.ActiveLockWindowMinutes)
	assert.Equal(t, 30, cfg.Lock.ConflictWindowSeconds)
	assert.Equal(t, 2, cfg.Lock.GraceWaitSeconds)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 3, cfg.Retry.MaxCheckFixAttempts)
	assert.Equal(t, 600, cfg.Retry.CheckTimeoutSeconds)
	assert.Equal(t, 100, cfg.Spec.MinLength)
	assert.Contains(t, cfg.Spec.AmbiguityKeywords, "undefined behavior")
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `
poll_interval: 60
llm_backend: claude
lock:
  active_lock_window_minutes: 45
  conflict_window_seconds: 20
  grace_wait_seconds: 1
retry:
  max_attempts: 5
  max_check_fix_attempts: 2
  check_poll_interval_seconds: 10
  check_timeout_seconds: 120
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := Load("octo/demo", path)
	require.NoError(t, err)

	assert.Equal(t, "octo/demo", cfg.Repo)
	assert.Equal(t, 60, cfg.PollInterval)
	assert.Equal(t, "claude", cfg.LLMBackend)
	assert.Equal(t, 45, cfg.Lock.ActiveLockWindowMinutes)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	// Unset sections keep defaults.
	assert.Equal(t, 100, cfg.Spec.MinLength)
	assert.Equal(t, "squash", cfg.MergeMethod)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load("octo/demo", filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 300, cfg.PollInterval)
	assert.NotEmpty(t, cfg.WorkDir)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("WORKHIVE_POLL_INTERVAL", "15")
	t.Setenv("WORKHIVE_LLM_BACKEND", "claude")

	cfg, err := Load("octo/demo", filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 15, cfg.PollInterval)
	assert.Equal(t, "claude", cfg.LLMBackend)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad repo", func(c *Config) { c.Repo = "not-a-repo" }, "invalid repository format"},
		{"bad backend", func(c *Config) { c.LLMBackend = "gpt" }, "invalid llm_backend"},
		{"bad merge method", func(c *Config) { c.MergeMethod = "fast-forward" }, "invalid merge_method"},
		{"conflict window too large", func(c *Config) {
			c.Lock.ActiveLockWindowMinutes = 1
			c.Lock.ConflictWindowSeconds = 60
		}, "conflict window must be smaller"},
		{"zero attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }, "attempt budgets"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Repo = "octo/demo"
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDurationAccessors(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "30m0s", cfg.ActiveLockWindow().String())
	assert.Equal(t, "30s", cfg.ConflictWindow().String())
	assert.Equal(t, "2s", cfg.GraceWait().String())
	assert.Equal(t, "10m0s", cfg.CheckTimeout().String())
}
