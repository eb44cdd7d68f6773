package claude

import (
	"bufio"
	"io"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/workhive/workhive/internal/debug"
	"github.com/workhive/workhive/internal/llm"
)

// processStreamingOutput reads `--output-format stream-json` lines and
// returns the accumulated assistant text. A final "result" event supplies
// the output when no assistant text blocks were seen.
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
		case "assistant":
			for _, block := range event.Get("message.content").Array() {
				if block.Get("type").String() != "text" {
					continue
				}
				text := block.Get("text").String()
				if text == "" {
					continue
				}
				fullOutput.WriteString(text)
				if opts.OnOutput != nil {
					opts.OnOutput(text)
				}
			}
		case "result":
			if res := event.Get("result").String(); res != "" && fullOutput.Len() == 0 {
				fullOutput.WriteString(res)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		debug.Logf("claude stream: scanner error: %v", err)
	}
	return fullOutput.String()
}
