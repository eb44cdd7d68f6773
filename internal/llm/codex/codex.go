// Package codex shells out to the OpenAI Codex CLI in exec mode.
package codex

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/workhive/workhive/internal/llm"
)

// Config holds the binary path and subprocess environment.
type Config struct {
	// Bin is the codex binary, "codex" when empty.
	Bin string
	// Model is the -m value, backend default when empty.
	Model string
	// APIKey sets OPENAI_API_KEY for the subprocess.
	APIKey string
}

// Invoker invokes the codex CLI binary.
type Invoker struct {
	Env Config
}

func New(env Config) *Invoker {
	return &Invoker{Env: env}
}

// BuildEnv constructs the environment for a codex subprocess.
func BuildEnv(cfg Config) []string {
	env := llm.FilterEnv(os.Environ(), "OPENAI_API_KEY=")
	if cfg.APIKey != "" {
		env = append(env, "OPENAI_API_KEY="+cfg.APIKey)
	}
	return env
}

// Invoke runs `codex exec` with the prompt as the final positional argument.
func (c *Invoker) Invoke(ctx context.Context, prompt string, opts llm.Options) (*llm.Result, error) {
	args := []string{"exec"}
	if c.Env.Model != "" {
		args = append(args, "-m", c.Env.Model)
	}
	if opts.Streaming {
		args = append(args, "--json")
	}
	if opts.WorkingDir != "" {
		args = append(args, "--cd", opts.WorkingDir)
	}
	args = append(args, prompt)

	invokeCtx := ctx
	var cancel context.CancelFunc
	if opts.Timeout > 0 {
		invokeCtx, cancel = context.WithTimeout(ctx, time.Duration(opts.Timeout)*time.Second)
		defer cancel()
	}

	bin := c.Env.Bin
	if bin == "" {
		bin = "codex"
	}
	cmd := exec.CommandContext(invokeCtx, bin, args...) //nolint:gosec // bin comes from config
	cmd.Env = BuildEnv(c.Env)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	var stderrBuf bytes.Buffer
	cmd.Stderr = &stderrBuf

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	var output string
	if opts.Streaming {
		output = processStreamingOutput(stdout, opts)
	} else {
		output = llm.ProcessTextOutput(stdout, opts)
	}

	if err := cmd.Wait(); err != nil {
		if invokeCtx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("codex invocation timed out after %ds", opts.Timeout)
		}
		if stderrStr := strings.TrimSpace(stderrBuf.String()); stderrStr != "" {
			return nil, fmt.Errorf("codex exited: %w\nstderr: %s", err, stderrStr)
		}
		return nil, fmt.Errorf("codex exited: %w", err)
	}
	return &llm.Result{Text: output}, nil
}
