package codex

import (
	"bufio"
	"io"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/workhive/workhive/internal/debug"
	"github.com/workhive/workhive/internal/llm"
)

// processStreamingOutput reads `codex exec --json` JSONL events and returns
// the accumulated agent message text.
func processStreamingOutput(r io.Reader, opts llm.Options) string {
	var fullOutput strings.Builder
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !gjson.Valid(line) {
			continue
		}
		event := gjson.Parse(line)
		switch event.Get("type").String() {
		case "item.completed":
			item := event.Get("item")
			if item.Get("type").String() != "agent_message" {
				continue
			}
			text := item.Get("text").String()
			if text == "" {
				continue
			}
			fullOutput.WriteString(text)
			fullOutput.WriteString("\n")
			if opts.OnOutput != nil {
				opts.OnOutput(text)
			}
		case "turn.failed":
			debug.Logf("codex stream: turn failed: %s", event.Get("error.message").String())
		}
	}
	if err := scanner.Err(); err != nil {
		debug.Logf("codex stream: scanner error: %v", err)
	}
	return fullOutput.String()
}
