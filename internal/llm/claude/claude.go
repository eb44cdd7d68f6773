// Package claude shells out to the Claude Code CLI.
package claude

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/workhive/workhive/internal/debug"
	"github.com/workhive/workhive/internal/llm"
)

// Config holds the binary path and subprocess environment.
type Config struct {
	// Bin is the claude binary, "claude" when empty.
	Bin string
	// ConfigDir sets CLAUDE_CONFIG_DIR for the subprocess.
	ConfigDir string
	// APIKey sets ANTHROPIC_API_KEY for the subprocess.
	APIKey string
}

// Invoker invokes the Claude CLI binary.
type Invoker struct {
	Env Config
}

func New(env Config) *Invoker {
	return &Invoker{Env: env}
}

// BuildEnv constructs the environment for a claude subprocess. Inherited
// credentials are filtered so only explicitly configured ones apply.
func BuildEnv(cfg Config) []string {
	env := llm.FilterEnv(os.Environ(), "ANTHROPIC_API_KEY=", "CLAUDE_CONFIG_DIR=")
	if cfg.ConfigDir != "" {
		env = append(env, "CLAUDE_CONFIG_DIR="+cfg.ConfigDir)
	}
	if cfg.APIKey != "" {
		env = append(env, "ANTHROPIC_API_KEY="+cfg.APIKey)
	}
	return env
}

// Invoke runs `claude --print` with the prompt on stdin.
func (c *Invoker) Invoke(ctx context.Context, prompt string, opts llm.Options) (*llm.Result, error) {
	args := []string{"--print"}
	if opts.Streaming {
		args = append(args, "--output-format", "stream-json", "--verbose")
	}

	invokeCtx := ctx
	var cancel context.CancelFunc
	if opts.Timeout > 0 {
		invokeCtx, cancel = context.WithTimeout(ctx, time.Duration(opts.Timeout)*time.Second)
		defer cancel()
	}

	bin := c.Env.Bin
	if bin == "" {
		bin = "claude"
	}
	cmd := exec.CommandContext(invokeCtx, bin, args...) //nolint:gosec // bin comes from config
	if opts.WorkingDir != "" {
		cmd.Dir = opts.WorkingDir
	}
	cmd.Env = BuildEnv(c.Env)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	var stderrBuf bytes.Buffer
	cmd.Stderr = &stderrBuf

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	go func() {
		defer stdin.Close()
		if _, err := io.WriteString(stdin, prompt); err != nil {
			debug.Logf("claude: failed to write prompt to stdin: %v", err)
		}
	}()

	var output string
	if opts.Streaming {
		output = processStreamingOutput(stdout, opts)
	} else {
		output = llm.ProcessTextOutput(stdout, opts)
	}

	if err := cmd.Wait(); err != nil {
		if invokeCtx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("claude invocation timed out after %ds", opts.Timeout)
		}
		if stderrStr := strings.TrimSpace(stderrBuf.String()); stderrStr != "" {
			return nil, fmt.Errorf("claude exited: %w\nstderr: %s", err, stderrStr)
		}
		return nil, fmt.Errorf("claude exited: %w", err)
	}
	return &llm.Result{Text: output}, nil
}
