// Package executor constructs LLM invokers by backend name.
package executor

import (
	"fmt"

	"github.com/workhive/workhive/internal/llm"
	"github.com/workhive/workhive/internal/llm/claude"
	"github.com/workhive/workhive/internal/llm/codex"
)

// Config selects and configures the backend.
type Config struct {
	Name   string // "claude", "codex", or "" (defaults to "claude")
	Claude claude.Config
	Codex  codex.Config
}

// New creates an Invoker for the named backend.
func New(cfg Config) (llm.Invoker, error) {
	switch cfg.Name {
	case "claude", "":
		return claude.New(cfg.Claude), nil
	case "codex":
		return codex.New(cfg.Codex), nil
	default:
		return nil, fmt.Errorf("unknown llm backend: %q (supported: claude, codex)", cfg.Name)
	}
}
