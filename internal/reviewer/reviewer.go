// Package reviewer implements the review agent: it claims pull requests
// that passed implementation, asks the generation backend for a structured
// review, and either approves or requests changes. Small findings are
// deferred into a nit store instead of blocking the pull request.
package reviewer

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/tidwall/gjson"

	"github.com/workhive/workhive/internal/clock"
	"github.com/workhive/workhive/internal/config"
	"github.com/workhive/workhive/internal/debug"
	"github.com/workhive/workhive/internal/domain"
	"github.com/workhive/workhive/internal/forge"
	"github.com/workhive/workhive/internal/llm"
	"github.com/workhive/workhive/internal/lock"
	"github.com/workhive/workhive/internal/progress"
	"github.com/workhive/workhive/internal/prompt"
	"github.com/workhive/workhive/internal/workflow"
)

// Role is the claim namespace for reviewer agents.
const Role = "reviewer"

// nitThreshold is how many deferred findings accumulate before they are
// bundled into one cleanup issue.
const nitThreshold = 5

// ReviewResult is the structured verdict parsed from the backend response.
type ReviewResult struct {
	Summary string
	Issues  []Issue
}

// Issue is one review finding.
type Issue struct {
	Severity string
	File     string
	Comment  string
}

// Blocking reports whether the finding must be fixed before merge.
func (i Issue) Blocking() bool {
	return i.Severity == "critical" || i.Severity == "major"
}

// Reviewer is one review agent instance.
type Reviewer struct {
	cfg     *config.Config
	forge   forge.Client
	invoker llm.Invoker
	clk     clock.Clock
	log     *progress.Logger
	lock    *lock.Manager
	agentID string
	nits    *NitStore
}

// New creates a reviewer claiming under agentID; an empty agentID mints
// a fresh identity. fs backs the nit store; pass afero.NewOsFs() in
// production.
func New(cfg *config.Config, f forge.Client, inv llm.Invoker, clk clock.Clock, log *progress.Logger, fs afero.Fs, agentID string) *Reviewer {
	if agentID == "" {
		agentID = domain.NewAgentID(Role)
	}
	return &Reviewer{
		cfg:     cfg,
		forge:   f,
		invoker: inv,
		clk:     clk,
		log:     log,
		agentID: agentID,
		nits:    NewNitStore(fs, filepath.Join(cfg.WorkDir, "review-nits.json")),
		lock: lock.NewManager(f, clk, Role, agentID, lock.Windows{
			Active:   cfg.ActiveLockWindow(),
			Conflict: cfg.ConflictWindow(),
			Grace:    cfg.GraceWait(),
		}),
	}
}

// AgentID returns this reviewer's claim identity.
func (r *Reviewer) AgentID() string { return r.agentID }

// Run polls until ctx is cancelled.
func (r *Reviewer) Run(ctx context.Context) error {
	r.log.Printf("reviewer %s polling %s every %s", r.agentID, r.cfg.Repo, r.cfg.PollEvery())
	for {
		if err := r.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.log.Errorf("poll cycle: %v", err)
		}
		r.clk.Sleep(ctx, r.cfg.PollEvery())
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// RunOnce recovers stale claims, then reviews every claimable pull
// request awaiting review.
func (r *Reviewer) RunOnce(ctx context.Context) error {
	if err := r.recoverStale(ctx); err != nil {
		r.log.Errorf("stale recovery: %v", err)
	}

	prs, err := r.forge.ListPRs([]string{workflow.Reviewing.Label()})
	if err != nil {
		return fmt.Errorf("list reviewable prs: %w", err)
	}
	for i := range prs {
		pr := prs[i]
		state, err := r.forge.Checks(pr.Number)
		if err != nil {
			r.log.Errorf("checks #%d: %v", pr.Number, err)
			continue
		}
		// Failing checks are the worker's problem. Pending checks are
		// reviewed anyway: the worker only hands over after its check
		// window, so waiting longer buys nothing.
		if state == forge.CheckFailure {
			debug.Logf("reviewer: #%d has failing checks, skipping", pr.Number)
			continue
		}
		outcome, err := r.lock.TryAcquire(ctx, &pr, workflow.Reviewing, workflow.InReview)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.log.Errorf("claim #%d: %v", pr.Number, err)
			continue
		}
		if outcome != lock.Acquired {
			continue
		}
		if err := r.reviewPR(ctx, &pr); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.log.Errorf("review #%d: %v", pr.Number, err)
		}
	}
	return nil
}

// recoverStale returns in-review pull requests whose claim has expired to
// the review queue. The claiming reviewer crashed; flipping back to
// reviewing lets the ordinary sweep pick the item up again.
func (r *Reviewer) recoverStale(ctx context.Context) error {
	stuck, err := r.forge.ListPRs([]string{workflow.InReview.Label()})
	if err != nil {
		return err
	}
	for i := range stuck {
		pr := stuck[i]
		claim, err := r.lock.ActiveClaim(&pr)
		if err != nil {
			r.log.Errorf("check claim #%d: %v", pr.Number, err)
			continue
		}
		if claim != nil {
			continue
		}
		r.log.Printf("#%d: stale review claim, returning to queue", pr.Number)
		if _, err := r.lock.TryAcquire(ctx, &pr, workflow.InReview, workflow.Reviewing); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.log.Errorf("requeue #%d: %v", pr.Number, err)
		}
	}
	return nil
}

// reviewPR runs one review on a claimed pull request.
func (r *Reviewer) reviewPR(ctx context.Context, pr *domain.WorkItem) error {
	r.log.Item(pr.Number, pr.Title)

	diff, err := r.forge.PRDiff(pr.Number)
	if err != nil {
		return fmt.Errorf("pr diff: %w", err)
	}
	body := pr.Body
	if n := domain.LinkedIssue(pr.Body); n != 0 {
		if issue, err := r.forge.Issue(n); err == nil {
			body = pr.Body + "\n\n## Linked specification\n\n" + issue.Body
		}
	}

	res, err := r.invoker.Invoke(ctx, prompt.Review(pr.Title, body, diff), llm.Options{})
	if err != nil {
		return fmt.Errorf("invoke review: %w", err)
	}
	verdict, err := parseReview(res.Text)
	if err != nil {
		// A malformed response is retryable: hand the item back so the
		// next cycle reviews it again.
		r.log.Errorf("#%d: unparseable review, releasing: %v", pr.Number, err)
		return r.lock.Release(pr, workflow.InReview, workflow.Reviewing)
	}

	var blocking []Issue
	var deferred []Nit
	for _, issue := range verdict.Issues {
		if issue.Blocking() {
			blocking = append(blocking, issue)
		} else {
			deferred = append(deferred, Nit{PR: pr.Number, File: issue.File, Comment: issue.Comment})
		}
	}

	if len(blocking) > 0 {
		if err := r.forge.RequestChanges(pr.Number, changesBody(verdict.Summary, blocking)); err != nil {
			return fmt.Errorf("request changes: %w", err)
		}
		r.log.Printf("#%d: changes requested, %d blocking findings", pr.Number, len(blocking))
		return r.lock.Release(pr, workflow.InReview, workflow.ChangesRequested)
	}

	if len(deferred) > 0 {
		if err := r.nits.Add(deferred); err != nil {
			r.log.Errorf("store nits: %v", err)
		}
		if err := r.flushNits(); err != nil {
			r.log.Errorf("flush nits: %v", err)
		}
	}

	if err := r.forge.Approve(pr.Number, approveBody(verdict.Summary, len(deferred))); err != nil {
		return fmt.Errorf("approve: %w", err)
	}
	if err := r.lock.Release(pr, workflow.InReview, workflow.Approved); err != nil {
		return err
	}
	r.log.Printf("#%d: approved", pr.Number)

	if r.cfg.AutoMerge {
		if err := r.forge.Merge(pr.Number, r.cfg.MergeMethod); err != nil {
			return fmt.Errorf("merge: %w", err)
		}
		r.log.Printf("#%d: merged (%s)", pr.Number, r.cfg.MergeMethod)
	}
	return nil
}

// flushNits files a cleanup issue once enough findings have piled up.
func (r *Reviewer) flushNits() error {
	count, err := r.nits.Count()
	if err != nil {
		return err
	}
	if count < nitThreshold {
		return nil
	}
	nits, err := r.nits.Drain()
	if err != nil {
		return err
	}
	num, err := r.forge.CreateIssue("chore: review follow-ups", ChoreIssueBody(nits),
		[]string{workflow.Ready.Label()})
	if err != nil {
		return err
	}
	r.log.Printf("filed cleanup issue #%d with %d findings", num, len(nits))
	return nil
}

func changesBody(summary string, blocking []Issue) string {
	var b strings.Builder
	b.WriteString(summary)
	b.WriteString("\n\nBlocking findings:\n\n")
	for _, i := range blocking {
		fmt.Fprintf(&b, "- **%s** `%s`: %s\n", i.Severity, i.File, i.Comment)
	}
	return b.String()
}

func approveBody(summary string, deferredCount int) string {
	if summary == "" {
		summary = "Looks good."
	}
	if deferredCount > 0 {
		return fmt.Sprintf("%s\n\n%d small findings were deferred to a future cleanup issue.", summary, deferredCount)
	}
	return summary
}

// parseReview extracts the structured verdict from a backend response,
// tolerating surrounding prose and markdown code fences.
func parseReview(text string) (ReviewResult, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ReviewResult{}, fmt.Errorf("no JSON object in response")
	}
	doc := text[start : end+1]
	if !gjson.Valid(doc) {
		return ReviewResult{}, fmt.Errorf("invalid JSON in response")
	}
	out := ReviewResult{Summary: gjson.Get(doc, "summary").String()}
	for _, v := range gjson.Get(doc, "issues").Array() {
		out.Issues = append(out.Issues, Issue{
			Severity: strings.ToLower(v.Get("severity").String()),
			File:     v.Get("file").String(),
			Comment:  v.Get("comment").String(),
		})
	}
	return out, nil
}
