// Package progress writes persistent timestamped run logs. Every agent run
// appends to a per-run log file under the configured logs directory, with
// an optional mirror writer for live output.
package progress

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const timestampFormat = "2006-01-02 15:04:05"

// Logger writes timestamped progress to a log file and optional writer.
type Logger struct {
	file      *os.File
	writer    io.Writer
	startTime time.Time
	logPath   string
}

// Config holds logger configuration.
type Config struct {
	// LogsDir is where run logs land; default ~/.workhive/logs.
	LogsDir string
	// Role names the agent ("worker", "reviewer", "planner").
	Role string
	// AgentID is the agent instance identity.
	AgentID string
	// Writer optionally mirrors every line, e.g. to stdout.
	Writer io.Writer
}

// New creates a logger writing to <logsdir>/<timestamp>-<role>.log.
func New(cfg Config) (*Logger, error) {
	logsDir := cfg.LogsDir
	if logsDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home dir: %w", err)
		}
		logsDir = filepath.Join(home, ".workhive", "logs")
	}
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create logs dir: %w", err)
	}

	logPath := filepath.Join(logsDir,
		fmt.Sprintf("%s-%s.log", time.Now().Format("20060102-150405"), cfg.Role))
	f, err := os.Create(logPath)
	if err != nil {
		return nil, fmt.Errorf("create log file: %w", err)
	}

	l := &Logger{file: f, writer: cfg.Writer, startTime: time.Now(), logPath: logPath}
	l.writef("# workhive %s log\n", cfg.Role)
	l.writef("Agent: %s\n", cfg.AgentID)
	l.writef("Started: %s\n", time.Now().Format(timestampFormat))
	l.writef("%s\n\n", strings.Repeat("-", 60))
	return l, nil
}

// Path returns the log file path.
func (l *Logger) Path() string { return l.logPath }

// Printf writes a timestamped message.
func (l *Logger) Printf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	l.writef("[%s] %s\n", time.Now().Format(timestampFormat), msg)
}

// Errorf writes a timestamped error message.
func (l *Logger) Errorf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	l.writef("[%s] ERROR: %s\n", time.Now().Format(timestampFormat), msg)
}

// Section writes a section header.
func (l *Logger) Section(title string) {
	l.writef("\n--- %s ---\n", title)
}

// Item starts a section for one work item.
func (l *Logger) Item(number int, title string) {
	l.Section(fmt.Sprintf("#%d %s", number, title))
}

// Close finishes the log with the run duration.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	l.writef("\n%s\n", strings.Repeat("-", 60))
	l.writef("Duration: %s\n", time.Since(l.startTime).Round(time.Second))
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("close log file: %w", err)
	}
	l.file = nil
	return nil
}

func (l *Logger) writef(format string, args ...any) {
	if l.file != nil {
		fmt.Fprintf(l.file, format, args...)
	}
	if l.writer != nil {
		fmt.Fprintf(l.writer, format, args...)
	}
}

// Discard returns a logger that writes nowhere, for tests.
func Discard() *Logger {
	return &Logger{startTime: time.Now()}
}
