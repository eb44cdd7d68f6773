// Package forge provides the client for the remote issue/PR store. Agents
// never talk to the forge directly; everything goes through the Client
// interface so the lock protocol and the daemons can run against the
// in-memory Fake in tests.
package forge

import (
	"time"

	"github.com/workhive/workhive/internal/domain"
)

// CheckState is the aggregate CI state of a pull request.
type CheckState int

const (
	// CheckPending means at least one check has not finished yet.
	CheckPending CheckState = iota
	// CheckSuccess means every check passed (or no CI is configured).
	CheckSuccess
	// CheckFailure means at least one check failed.
	CheckFailure
)

func (s CheckState) String() string {
	switch s {
	case CheckSuccess:
		return "success"
	case CheckFailure:
		return "failure"
	default:
		return "pending"
	}
}

// Review is a submitted pull request review.
type Review struct {
	State       string // APPROVED, CHANGES_REQUESTED, COMMENTED
	Body        string
	SubmittedAt time.Time
}

// Client is the full surface the agents need from the remote store.
// All operations are synchronous; any failure is a transient remote
// error that the caller's outer poll loop absorbs.
type Client interface {
	// DefaultBranch returns the repository default branch ("main" on error paths).
	DefaultBranch() (string, error)

	ListIssues(labels []string) ([]domain.WorkItem, error)
	Issue(number int) (*domain.WorkItem, error)
	CreateIssue(title, body string, labels []string) (int, error)
	UpdateIssueBody(number int, body string) error

	ListPRs(labels []string) ([]domain.WorkItem, error)
	PR(number int) (*domain.WorkItem, error)
	CreatePR(title, body, head, base string, labels []string) (int, error)
	PRDiff(number int) (string, error)

	// Comments returns the item's comment log, oldest first. PRs share the
	// issue comment log on the forge side.
	Comments(number int, limit int) ([]domain.Comment, error)
	Comment(number int, kind domain.Kind, body string) error

	Labels(number int, kind domain.Kind) ([]string, error)
	AddLabel(number int, kind domain.Kind, label string) error
	RemoveLabel(number int, kind domain.Kind, label string) error

	Reviews(number int) ([]Review, error)
	Approve(number int, body string) error
	RequestChanges(number int, body string) error
	Merge(number int, method string) error

	Checks(number int) (CheckState, error)
	CheckFailureLogs(number int) (string, error)
}
