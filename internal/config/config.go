// Package config provides configuration management for workhive agents.
// Configuration is loaded with the following precedence:
// built-in defaults → config file → env vars → CLI flags
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LockConfig holds the distributed lock protocol timing knobs.
// All agents sharing a repository must agree on these values.
type LockConfig struct {
	// ActiveLockWindowMinutes is how long a claim is presumed to represent
	// live work. Items stuck past this window are eligible for recovery.
	ActiveLockWindowMinutes int `yaml:"active_lock_window_minutes"`
	// ConflictWindowSeconds bounds which claims compete in one resolution
	// round. Must be strictly smaller than the active lock window.
	ConflictWindowSeconds int `yaml:"conflict_window_seconds"`
	// GraceWaitSeconds is the pause between announcing a claim and
	// resolving the winner, giving concurrent announces time to appear.
	GraceWaitSeconds int `yaml:"grace_wait_seconds"`
}

// RetryConfig holds the attempt budgets and CI polling knobs.
type RetryConfig struct {
	MaxAttempts              int `yaml:"max_attempts"`
	MaxCheckFixAttempts      int `yaml:"max_check_fix_attempts"`
	CheckPollIntervalSeconds int `yaml:"check_poll_interval_seconds"`
	CheckTimeoutSeconds      int `yaml:"check_timeout_seconds"`
}

// SpecConfig holds the ambiguity heuristic parameters. The heuristic is a
// plain OR of two signals (length threshold, keyword match) and is part of
// the cross-agent behavior contract; do not tune it casually.
type SpecConfig struct {
	MinLength         int      `yaml:"min_length"`
	AmbiguityKeywords []string `yaml:"ambiguity_keywords"`
}

// Config holds all configuration settings for workhive.
type Config struct {
	// Repo is the target repository in owner/repo format.
	Repo string `yaml:"repo"`

	// PollInterval is the daemon poll interval in seconds.
	PollInterval int `yaml:"poll_interval"`

	// WorkDir is where worker workspaces are cloned.
	WorkDir string `yaml:"work_dir"`

	// LogsDir is where per-run progress logs are written.
	LogsDir string `yaml:"logs_dir"`

	// LLM backend selection: "codex" or "claude".
	LLMBackend string `yaml:"llm_backend"`
	CodexCLI   string `yaml:"codex_cli"`
	ClaudeCLI  string `yaml:"claude_cli"`

	// GhCLI is the path to the GitHub CLI binary.
	GhCLI string `yaml:"gh_cli"`

	// ValidateCmd runs inside the workspace to validate an attempt; a
	// non-zero exit is a validation failure.
	ValidateCmd string `yaml:"validate_cmd"`

	// AutoMerge merges approved PRs automatically using MergeMethod.
	AutoMerge   bool   `yaml:"auto_merge"`
	MergeMethod string `yaml:"merge_method"`

	Lock  LockConfig  `yaml:"lock"`
	Retry RetryConfig `yaml:"retry"`
	Spec  SpecConfig  `yaml:"spec"`
}

// DefaultAmbiguityKeywords are the failure-text markers that route attempt
// exhaustion to needs-clarification instead of failed. Matching is
// case-insensitive substring search.
var DefaultAmbiguityKeywords = []string{
	"ambiguous",
	"unclear",
	"not specified",
	"undefined behavior",
	"missing requirement",
	"conflicting requirement",
	"cannot determine",
	"insufficient information",
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		PollInterval: 300,
		LLMBackend:   "codex",
		CodexCLI:     "codex",
		ClaudeCLI:    "claude",
		GhCLI:        "gh",
		ValidateCmd:  "make test",
		MergeMethod:  "squash",
		Lock: LockConfig{
			ActiveLockWindowMinutes: 30,
			ConflictWindowSeconds:   30,
			GraceWaitSeconds:        2,
		},
		Retry: RetryConfig{
			MaxAttempts:              3,
			MaxCheckFixAttempts:      3,
			CheckPollIntervalSeconds: 30,
			CheckTimeoutSeconds:      600,
		},
		Spec: SpecConfig{
			MinLength:         100,
			AmbiguityKeywords: DefaultAmbiguityKeywords,
		},
	}
}

// DefaultConfigDir returns the global configuration directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".workhive")
	}
	return filepath.Join(home, ".workhive")
}

// Load loads configuration for a repository. path may be empty, in which
// case WORKHIVE_CONFIG and then ~/.workhive/config.yaml are tried. A
// missing file is not an error; defaults plus env apply.
func Load(repo, path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("WORKHIVE_CONFIG")
	}
	if path == "" {
		path = filepath.Join(DefaultConfigDir(), "config.yaml")
	}

	data, err := os.ReadFile(path) //nolint:gosec // user's config file
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// No file is fine.
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg.applyEnv()

	if repo != "" {
		cfg.Repo = repo
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = filepath.Join(DefaultConfigDir(), "workspaces")
	}
	if cfg.LogsDir == "" {
		cfg.LogsDir = filepath.Join(DefaultConfigDir(), "logs")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var repoPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+/[A-Za-z0-9_.-]+$`)

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Repo != "" && !repoPattern.MatchString(c.Repo) {
		return fmt.Errorf("invalid repository format: %q (want owner/repo)", c.Repo)
	}
	if c.LLMBackend != "codex" && c.LLMBackend != "claude" {
		return fmt.Errorf("invalid llm_backend: %q (must be codex or claude)", c.LLMBackend)
	}
	switch c.MergeMethod {
	case "squash", "merge", "rebase":
	default:
		return fmt.Errorf("invalid merge_method: %q (must be squash, merge, or rebase)", c.MergeMethod)
	}
	if c.Lock.ActiveLockWindowMinutes <= 0 {
		return fmt.Errorf("active_lock_window_minutes must be positive")
	}
	if c.Lock.ConflictWindowSeconds <= 0 {
		return fmt.Errorf("conflict_window_seconds must be positive")
	}
	// The conflict window must stay inside the active lock window, or a
	// claim could compete with one that is presumed live work.
	if time.Duration(c.Lock.ConflictWindowSeconds)*time.Second >= c.ActiveLockWindow() {
		return fmt.Errorf("conflict window must be smaller than active lock window")
	}
	if c.Retry.MaxAttempts <= 0 || c.Retry.MaxCheckFixAttempts <= 0 {
		return fmt.Errorf("attempt budgets must be positive")
	}
	return nil
}

// applyEnv applies WORKHIVE_* environment variable overrides.
func (c *Config) applyEnv() {
	if v := os.Getenv("WORKHIVE_POLL_INTERVAL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.PollInterval = n
		}
	}
	if v := os.Getenv("WORKHIVE_LLM_BACKEND"); v != "" {
		c.LLMBackend = v
	}
	if v := os.Getenv("WORKHIVE_WORK_DIR"); v != "" {
		c.WorkDir = v
	}
	if v := os.Getenv("WORKHIVE_GH_CLI"); v != "" {
		c.GhCLI = v
	}
	if v := os.Getenv("WORKHIVE_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Retry.MaxAttempts = n
		}
	}
	if v := os.Getenv("WORKHIVE_ACTIVE_LOCK_WINDOW_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Lock.ActiveLockWindowMinutes = n
		}
	}
}

// Duration accessors keep the YAML surface in plain integers while the
// rest of the code works with time.Duration.

func (c *Config) PollEvery() time.Duration { return time.Duration(c.PollInterval) * time.Second }

func (c *Config) ActiveLockWindow() time.Duration {
	return time.Duration(c.Lock.ActiveLockWindowMinutes) * time.Minute
}

func (c *Config) ConflictWindow() time.Duration {
	return time.Duration(c.Lock.ConflictWindowSeconds) * time.Second
}

func (c *Config) GraceWait() time.Duration {
	return time.Duration(c.Lock.GraceWaitSeconds) * time.Second
}

func (c *Config) CheckPollInterval() time.Duration {
	return time.Duration(c.Retry.CheckPollIntervalSeconds) * time.Second
}

func (c *Config) CheckTimeout() time.Duration {
	return time.Duration(c.Retry.CheckTimeoutSeconds) * time.Second
}
