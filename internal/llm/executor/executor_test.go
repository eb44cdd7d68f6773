package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workhive/workhive/internal/llm/claude"
	"github.com/workhive/workhive/internal/llm/codex"
)

func TestNewDefaultsToClaude(t *testing.T) {
	inv, err := New(Config{})
	require.NoError(t, err)
	assert.IsType(t, &claude.Invoker{}, inv)
}

func TestNewCodex(t *testing.T) {
	inv, err := New(Config{Name: "codex", Codex: codex.Config{Model: "o3"}})
	require.NoError(t, err)
	assert.IsType(t, &codex.Invoker{}, inv)
}

func TestNewUnknownBackend(t *testing.T) {
	_, err := New(Config{Name: "gemini"})
	require.ErrorContains(t, err, "unknown llm backend")
}
