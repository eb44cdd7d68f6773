// Package worker implements the implementation agent: it claims ready
// issues, drives a test-first generate/validate loop, opens a pull request,
// babysits CI, and reworks pull requests the reviewer bounced.
package worker

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/workhive/workhive/internal/clock"
	"github.com/workhive/workhive/internal/config"
	"github.com/workhive/workhive/internal/debug"
	"github.com/workhive/workhive/internal/domain"
	"github.com/workhive/workhive/internal/forge"
	"github.com/workhive/workhive/internal/git"
	"github.com/workhive/workhive/internal/llm"
	"github.com/workhive/workhive/internal/lock"
	"github.com/workhive/workhive/internal/progress"
	"github.com/workhive/workhive/internal/prompt"
	"github.com/workhive/workhive/internal/retry"
	"github.com/workhive/workhive/internal/workflow"
)

// Role is the claim namespace for worker agents.
const Role = "worker"

const (
	// retryMarker comments persist the rework counter for a pull request
	// across worker restarts.
	retryMarker = "WORKER_RETRY:"
	// escalationMarker comments flag items the planner must look at.
	escalationMarker = "ESCALATION:worker"
)

// Workspace is the slice of repository operations the worker needs; a
// *git.Repo in production, a fake in tests.
type Workspace interface {
	WorkDir() string
	CheckoutBranch(branch string) error
	CommitAll(message string) (bool, error)
	Push(branch string, force bool) error
	Pull(branch string) error
}

// Worker is one implementation agent instance.
type Worker struct {
	cfg     *config.Config
	forge   forge.Client
	invoker llm.Invoker
	clk     clock.Clock
	log     *progress.Logger
	lock    *lock.Manager
	agentID string

	// Injection points for tests.
	openWorkspace func(issue int) (Workspace, error)
	validate      func(ctx context.Context, dir string) (string, bool, error)
}

// New creates a worker claiming under agentID; an empty agentID mints a
// fresh identity.
func New(cfg *config.Config, f forge.Client, inv llm.Invoker, clk clock.Clock, log *progress.Logger, agentID string) *Worker {
	if agentID == "" {
		agentID = domain.NewAgentID(Role)
	}
	w := &Worker{
		cfg:     cfg,
		forge:   f,
		invoker: inv,
		clk:     clk,
		log:     log,
		agentID: agentID,
		lock: lock.NewManager(f, clk, Role, agentID, lock.Windows{
			Active:   cfg.ActiveLockWindow(),
			Conflict: cfg.ConflictWindow(),
			Grace:    cfg.GraceWait(),
		}),
	}
	w.openWorkspace = w.cloneWorkspace
	w.validate = w.runValidateCmd
	return w
}

// AgentID returns this worker's claim identity.
func (w *Worker) AgentID() string { return w.agentID }

// Run polls until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Printf("worker %s polling %s every %s", w.agentID, w.cfg.Repo, w.cfg.PollEvery())
	for {
		if err := w.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.log.Errorf("poll cycle: %v", err)
		}
		w.clk.Sleep(ctx, w.cfg.PollEvery())
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// RunOnce executes a single poll cycle: recover stale claims, process
// ready issues, then rework changes-requested pull requests.
func (w *Worker) RunOnce(ctx context.Context) error {
	if err := w.recoverStale(ctx); err != nil {
		w.log.Errorf("stale recovery: %v", err)
	}

	issues, err := w.forge.ListIssues([]string{workflow.Ready.Label()})
	if err != nil {
		return fmt.Errorf("list ready issues: %w", err)
	}
	for i := range issues {
		issue := issues[i]
		outcome, err := w.lock.TryAcquire(ctx, &issue, workflow.Ready, workflow.Implementing)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.log.Errorf("claim #%d: %v", issue.Number, err)
			continue
		}
		if outcome != lock.Acquired {
			debug.Logf("worker: #%d not acquired: %s", issue.Number, outcome)
			continue
		}
		if err := w.processIssue(ctx, &issue); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.log.Errorf("process #%d: %v", issue.Number, err)
		}
	}

	prs, err := w.forge.ListPRs([]string{workflow.ChangesRequested.Label()})
	if err != nil {
		return fmt.Errorf("list changes-requested prs: %w", err)
	}
	for i := range prs {
		pr := prs[i]
		if err := w.processChangesRequested(ctx, &pr); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.log.Errorf("rework #%d: %v", pr.Number, err)
		}
	}
	return nil
}

// recoverStale reprocesses items stuck in implementing whose claim has
// expired: the claiming agent crashed or was killed. The self-transition
// re-runs the full claim protocol, so concurrent recoverers race safely.
// Stale issues restart implementation from scratch; stale pull requests
// resume the rework their dead owner abandoned.
func (w *Worker) recoverStale(ctx context.Context) error {
	stuck, err := w.forge.ListIssues([]string{workflow.Implementing.Label()})
	if err != nil {
		return err
	}
	for i := range stuck {
		issue := stuck[i]
		if !w.reclaim(ctx, &issue) {
			continue
		}
		if err := w.processIssue(ctx, &issue); err != nil {
			w.log.Errorf("process recovered #%d: %v", issue.Number, err)
		}
	}

	stuckPRs, err := w.forge.ListPRs([]string{workflow.Implementing.Label()})
	if err != nil {
		return err
	}
	for i := range stuckPRs {
		pr := stuckPRs[i]
		if !w.reclaim(ctx, &pr) {
			continue
		}
		if err := w.rework(ctx, &pr); err != nil {
			w.log.Errorf("rework recovered #%d: %v", pr.Number, err)
		}
	}
	return nil
}

// reclaim takes over an implementing item if its claim expired.
func (w *Worker) reclaim(ctx context.Context, item *domain.WorkItem) bool {
	claim, err := w.lock.ActiveClaim(item)
	if err != nil {
		w.log.Errorf("check claim #%d: %v", item.Number, err)
		return false
	}
	if claim != nil {
		return false
	}
	w.log.Printf("#%d: stale claim, recovering", item.Number)
	outcome, err := w.lock.TryAcquire(ctx, item, workflow.Implementing, workflow.Implementing)
	return err == nil && outcome == lock.Acquired
}

// processIssue drives a claimed issue from implementing to a terminal or
// hand-off state. The issue is already in implementing and held by us.
func (w *Worker) processIssue(ctx context.Context, issue *domain.WorkItem) error {
	w.log.Item(issue.Number, issue.Title)
	spec := issue.Body

	ws, err := w.openWorkspace(issue.Number)
	if err != nil {
		return fmt.Errorf("open workspace: %w", err)
	}
	branch := git.BranchName(issue.Number)
	if err := ws.CheckoutBranch(branch); err != nil {
		return fmt.Errorf("checkout %s: %w", branch, err)
	}

	// Tests first. They pin the specification down before any attempt.
	if _, err := w.generate(ctx, ws, prompt.Tests(spec)); err != nil {
		return fmt.Errorf("generate tests: %w", err)
	}
	if _, err := ws.CommitAll(fmt.Sprintf("test: add tests for #%d", issue.Number)); err != nil {
		return fmt.Errorf("commit tests: %w", err)
	}

	ctrl := w.controller()
	res, err := ctrl.Run(ctx, spec, retry.Hooks{
		Generate: func(ctx context.Context, failureContext string) error {
			if _, err := w.generate(ctx, ws, prompt.Implementation(spec, failureContext)); err != nil {
				return err
			}
			_, err := ws.CommitAll(fmt.Sprintf("feat: implement #%d", issue.Number))
			return err
		},
		Validate: func(ctx context.Context) (string, bool, error) {
			return w.validate(ctx, ws.WorkDir())
		},
	})
	if err != nil {
		return err
	}

	switch res.Outcome {
	case retry.NeedsClarification:
		fb := retry.Feedback{
			ItemNumber:  issue.Number,
			Attempts:    res.Attempts,
			MaxAttempts: w.cfg.Retry.MaxAttempts,
			Failure:     res.LastFailure(),
			Spec:        spec,
		}
		return w.lock.MarkNeedsClarification(issue, fb.String())
	case retry.Exhausted:
		w.escalate(issue, "max-attempts-exhausted")
		return w.lock.MarkFailed(issue, fmt.Sprintf(
			"Implementation failed after %d/%d attempts.\n\nLast failure:\n```\n%s\n```",
			res.Attempts, w.cfg.Retry.MaxAttempts, res.LastFailure()))
	}

	w.comment(issue, fmt.Sprintf("Validation passed on attempt %d of %d.", res.Attempts, w.cfg.Retry.MaxAttempts))
	if err := w.lock.Release(issue, workflow.Implementing, workflow.Testing); err != nil {
		return err
	}
	if err := ws.Push(branch, true); err != nil {
		return fmt.Errorf("push %s: %w", branch, err)
	}

	base, err := w.forge.DefaultBranch()
	if err != nil {
		w.log.Errorf("default branch: %v", err)
		base = "main"
	}
	prNum, err := w.forge.CreatePR(issue.Title, fmt.Sprintf("Closes #%d", issue.Number),
		branch, base, []string{workflow.Reviewing.Label()})
	if err != nil {
		return fmt.Errorf("create pr: %w", err)
	}
	w.log.Printf("#%d: opened PR #%d", issue.Number, prNum)

	if err := w.lock.Release(issue, workflow.Testing, workflow.AwaitingCheck); err != nil {
		return err
	}
	return w.awaitChecks(ctx, issue, prNum, branch, ws, spec)
}

// awaitChecks babysits CI for the pull request and moves item through
// awaiting-check accordingly. item is the work item whose labels track the
// workflow (the issue on the first pass, the PR itself on rework).
func (w *Worker) awaitChecks(ctx context.Context, item *domain.WorkItem, prNum int, branch string, ws Workspace, spec string) error {
	ctrl := w.controller()
	res, err := ctrl.AwaitChecks(ctx, retry.CheckHooks{
		Poll:          func() (forge.CheckState, error) { return w.forge.Checks(prNum) },
		FailureDetail: func() (string, error) { return w.forge.CheckFailureLogs(prNum) },
		Fix: func(ctx context.Context, detail string) error {
			if _, err := w.generate(ctx, ws, prompt.CheckFix(spec, detail)); err != nil {
				return err
			}
			if _, err := ws.CommitAll(fmt.Sprintf("fix: address failing checks for #%d", item.Number)); err != nil {
				return err
			}
			return ws.Push(branch, true)
		},
	})
	if err != nil {
		return err
	}

	switch res.Outcome {
	case retry.CheckTimedOut:
		w.comment(item, fmt.Sprintf(
			"Warning: checks did not resolve within %s; proceeding to review with unverified checks.",
			w.cfg.CheckTimeout()))
	case retry.CheckExhausted:
		w.escalate(item, "check-fix-attempts-exhausted")
		// On a first pass the issue tracks the workflow while the PR
		// sits in reviewing; pull the PR out of the review queue too.
		if prNum != item.Number {
			if pr, err := w.forge.PR(prNum); err != nil {
				w.log.Errorf("#%d: read PR #%d: %v", item.Number, prNum, err)
			} else if err := w.lock.MarkCheckFailed(pr, ""); err != nil {
				w.log.Errorf("#%d: mark PR #%d check-failed: %v", item.Number, prNum, err)
			}
		}
		return w.lock.MarkCheckFailed(item, fmt.Sprintf(
			"Checks still failing after %d fix attempts.", res.FixAttempts))
	}
	return w.lock.Release(item, workflow.AwaitingCheck, workflow.Reviewing)
}

// processChangesRequested claims a pull request the reviewer bounced and
// reworks it.
func (w *Worker) processChangesRequested(ctx context.Context, pr *domain.WorkItem) error {
	outcome, err := w.lock.TryAcquire(ctx, pr, workflow.ChangesRequested, workflow.Implementing)
	if err != nil {
		return err
	}
	if outcome != lock.Acquired {
		return nil
	}
	return w.rework(ctx, pr)
}

// rework addresses review feedback on a claimed pull request. The rework
// counter lives in retry-marker comments on the linked issue so it
// survives worker restarts and owner changes.
func (w *Worker) rework(ctx context.Context, pr *domain.WorkItem) error {
	issueNum := domain.LinkedIssue(pr.Body)
	counterItem := pr
	if issueNum != 0 {
		counterItem = &domain.WorkItem{Number: issueNum, Kind: domain.KindIssue}
	}

	comments, err := w.forge.Comments(counterItem.Number, 100)
	if err != nil {
		return fmt.Errorf("read retry markers: %w", err)
	}
	retries := retryCount(comments)
	if retries >= w.cfg.Retry.MaxAttempts {
		w.escalate(counterItem, "review-retries-exhausted")
		return w.lock.MarkFailed(pr, fmt.Sprintf(
			"Review rework budget exhausted after %d attempts.", retries))
	}
	w.log.Item(pr.Number, "rework: "+pr.Title)

	spec := pr.Body
	if issueNum != 0 {
		if issue, err := w.forge.Issue(issueNum); err == nil {
			spec = issue.Body
		}
	}
	feedback, err := w.latestReviewFeedback(pr.Number)
	if err != nil {
		w.log.Errorf("read reviews #%d: %v", pr.Number, err)
	}

	ws, err := w.openWorkspace(counterItem.Number)
	if err != nil {
		return fmt.Errorf("open workspace: %w", err)
	}
	branch := pr.HeadRef
	if branch == "" {
		branch = git.BranchName(counterItem.Number)
	}
	if err := ws.CheckoutBranch(branch); err != nil {
		return fmt.Errorf("checkout %s: %w", branch, err)
	}
	// A fresh clone branches from the default branch; the PR's earlier
	// commits live on the remote branch and must come down first.
	if err := ws.Pull(branch); err != nil {
		return fmt.Errorf("pull %s: %w", branch, err)
	}

	failureContext := "## Review feedback\n\n" + feedback
	if _, err := w.generate(ctx, ws, prompt.Implementation(spec, failureContext)); err != nil {
		return fmt.Errorf("generate rework: %w", err)
	}
	if _, err := ws.CommitAll(fmt.Sprintf("fix: address review feedback for #%d", pr.Number)); err != nil {
		return err
	}
	if err := ws.Push(branch, true); err != nil {
		return fmt.Errorf("push %s: %w", branch, err)
	}

	w.comment(counterItem, fmt.Sprintf("%s%d", retryMarker, retries+1))

	if err := w.lock.Release(pr, workflow.Implementing, workflow.Testing); err != nil {
		return err
	}
	if err := w.lock.Release(pr, workflow.Testing, workflow.AwaitingCheck); err != nil {
		return err
	}
	return w.awaitChecks(ctx, pr, pr.Number, branch, ws, spec)
}

func (w *Worker) controller() *retry.Controller {
	return &retry.Controller{
		MaxAttempts:       w.cfg.Retry.MaxAttempts,
		MaxCheckFix:       w.cfg.Retry.MaxCheckFixAttempts,
		CheckPoll:         w.cfg.CheckPollInterval(),
		CheckTimeout:      w.cfg.CheckTimeout(),
		MinSpecLength:     w.cfg.Spec.MinLength,
		AmbiguityKeywords: w.cfg.Spec.AmbiguityKeywords,
		Clock:             w.clk,
	}
}

func (w *Worker) generate(ctx context.Context, ws Workspace, p string) (string, error) {
	res, err := w.invoker.Invoke(ctx, p, llm.Options{
		WorkingDir: ws.WorkDir(),
		Streaming:  true,
	})
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

func (w *Worker) comment(item *domain.WorkItem, body string) {
	if err := w.forge.Comment(item.Number, item.Kind, body); err != nil {
		w.log.Errorf("comment on #%d: %v", item.Number, err)
	}
}

func (w *Worker) escalate(item *domain.WorkItem, reason string) {
	w.comment(item, fmt.Sprintf("%s:%s", escalationMarker, reason))
}

func (w *Worker) latestReviewFeedback(prNum int) (string, error) {
	reviews, err := w.forge.Reviews(prNum)
	if err != nil {
		return "", err
	}
	for i := len(reviews) - 1; i >= 0; i-- {
		if reviews[i].State == "CHANGES_REQUESTED" {
			return reviews[i].Body, nil
		}
	}
	return "", nil
}

func (w *Worker) cloneWorkspace(issue int) (Workspace, error) {
	url := fmt.Sprintf("https://github.com/%s.git", w.cfg.Repo)
	dir := filepath.Join(w.cfg.WorkDir, fmt.Sprintf("issue-%d", issue))
	return git.Clone(url, dir)
}

// runValidateCmd executes the configured validation command inside the
// workspace. A non-zero exit is a validation failure with the combined
// output as detail; everything else is an infrastructure error.
func (w *Worker) runValidateCmd(ctx context.Context, dir string) (string, bool, error) {
	parts := strings.Fields(w.cfg.ValidateCmd)
	if len(parts) == 0 {
		return "", true, nil
	}
	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...) //nolint:gosec // configured by the operator
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		if _, ok := err.(*exec.ExitError); ok {
			return string(out), false, nil
		}
		return "", false, fmt.Errorf("run %q: %w", w.cfg.ValidateCmd, err)
	}
	return "", true, nil
}

// retryCount returns the highest persisted retry-marker value.
func retryCount(comments []domain.Comment) int {
	count := 0
	for _, c := range comments {
		body := strings.TrimSpace(c.Body)
		if !strings.HasPrefix(body, retryMarker) {
			continue
		}
		if n, err := strconv.Atoi(strings.TrimPrefix(body, retryMarker)); err == nil && n > count {
			count = n
		}
	}
	return count
}
