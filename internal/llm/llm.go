// Package llm defines the text-generation collaborator contract the agents
// depend on. The core treats generation as a black-box function from a
// prompt to text or failure; concrete CLI backends live in subpackages.
package llm

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/workhive/workhive/internal/debug"
)

// Invoker runs one generation call against a backend.
type Invoker interface {
	Invoke(ctx context.Context, prompt string, opts Options) (*Result, error)
}

// Options configures a single invocation.
type Options struct {
	// WorkingDir for the backend subprocess, usually the item's workspace.
	WorkingDir string

	// Streaming enables the backend's JSON stream mode.
	Streaming bool

	// Timeout in seconds; zero respects only the caller's context.
	Timeout int

	// OnOutput receives text fragments as they arrive.
	OnOutput func(text string)
}

// Result holds the output of a completed invocation.
type Result struct {
	Text string
}

// ProcessTextOutput reads plain-text lines from r, calls opts.OnOutput for
// each line, and returns the accumulated output. Backends use it in
// non-streaming mode.
func ProcessTextOutput(r io.Reader, opts Options) string {
	var output strings.Builder
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text() + "\n"
		output.WriteString(line)
		if opts.OnOutput != nil {
			opts.OnOutput(line)
		}
	}
	if err := scanner.Err(); err != nil {
		debug.Logf("llm: text scanner error: %v", err)
	}
	return output.String()
}

// FilterEnv returns a copy of environ with entries matching any of the
// given prefixes removed. Prefixes include the trailing "=".
func FilterEnv(environ []string, excludePrefixes ...string) []string {
	result := make([]string, 0, len(environ))
	for _, e := range environ {
		keep := true
		for _, prefix := range excludePrefixes {
			if strings.HasPrefix(e, prefix) {
				keep = false
				break
			}
		}
		if keep {
			result = append(result, e)
		}
	}
	return result
}
