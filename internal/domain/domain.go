// Package domain defines the shared model types used across workhive:
// WorkItem, Comment, and their helper methods.
package domain

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind distinguishes the two item types the agents operate on.
type Kind int

const (
	KindIssue Kind = iota
	KindPullRequest
)

func (k Kind) String() string {
	if k == KindPullRequest {
		return "pr"
	}
	return "issue"
}

// StatusPrefix is the namespace shared by all workflow status labels.
const StatusPrefix = "status:"

// WorkItem represents an issue or pull request that agents coordinate on.
// Labels are the only externally visible workflow state; at most one
// status label is expected at a time, but readers must tolerate transient
// windows with zero or two while a transition is in flight.
type WorkItem struct {
	// Number is the issue/PR number, stable within a repository.
	Number int
	// Kind says whether this is an issue or a pull request.
	Kind Kind
	// Title is the human-readable title.
	Title string
	// Body is the specification text (issue) or description (PR).
	Body string
	// Labels is the full label set as observed at read time.
	Labels []string
	// State is the open/closed state reported by the forge.
	State string
	// HeadRef and BaseRef are set for pull requests only.
	HeadRef string
	BaseRef string
}

// HasLabel reports whether the item carries the given label.
func (w *WorkItem) HasLabel(label string) bool {
	for _, l := range w.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// StatusLabel returns the first label in the status namespace, or "" if
// none is present.
func (w *WorkItem) StatusLabel() string {
	for _, l := range w.Labels {
		if strings.HasPrefix(l, StatusPrefix) {
			return l
		}
	}
	return ""
}

// NewAgentID returns a fresh agent identity of the form "<role>-<8 hex>".
// Identity is an explicit value threaded through constructors so several
// agents can coexist in one process.
func NewAgentID(role string) string {
	return role + "-" + uuid.NewString()[:8]
}

var closesPattern = regexp.MustCompile(`(?i)closes #(\d+)`)

// LinkedIssue extracts the issue number a pull request body declares it
// closes, or 0 when there is no reference.
func LinkedIssue(body string) int {
	m := closesPattern.FindStringSubmatch(body)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

// Comment is a single entry in an item's append-only comment log.
type Comment struct {
	ID        int64
	Body      string
	CreatedAt time.Time
}
