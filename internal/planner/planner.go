// Package planner implements the planning agent. It has two jobs: turn a
// user story into a specification issue, and watch for items the other
// agents gave up on, refining their specifications and putting them back
// into circulation.
package planner

import (
	"context"
	"fmt"
	"strconv"
	"strings"

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

// Role is the claim namespace for planner agents.
const Role = "planner"

const (
	// retryMarker comments persist how often a specification has been
	// refined, so the budget survives planner restarts.
	retryMarker = "PLANNER_RETRY:"
	// maxRefinements caps refinement rounds per issue before the item is
	// escalated to a human.
	maxRefinements = 3

	escalationMarker = "ESCALATION:planner"
)

// Planner is one planning agent instance.
type Planner struct {
	cfg     *config.Config
	forge   forge.Client
	invoker llm.Invoker
	clk     clock.Clock
	log     *progress.Logger
	lock    *lock.Manager
	agentID string
}

// New creates a planner claiming under agentID; an empty agentID mints a
// fresh identity.
func New(cfg *config.Config, f forge.Client, inv llm.Invoker, clk clock.Clock, log *progress.Logger, agentID string) *Planner {
	if agentID == "" {
		agentID = domain.NewAgentID(Role)
	}
	return &Planner{
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
}

// AgentID returns this planner's claim identity.
func (p *Planner) AgentID() string { return p.agentID }

// PlanStory turns a user story into a ready specification issue and
// returns its number.
func (p *Planner) PlanStory(ctx context.Context, story string) (int, error) {
	res, err := p.invoker.Invoke(ctx, prompt.SpecFromStory(story), llm.Options{})
	if err != nil {
		return 0, fmt.Errorf("generate specification: %w", err)
	}
	spec := strings.TrimSpace(res.Text)
	if spec == "" {
		return 0, fmt.Errorf("generate specification: empty response")
	}
	num, err := p.forge.CreateIssue(issueTitle(story), spec, []string{workflow.Ready.Label()})
	if err != nil {
		return 0, fmt.Errorf("create issue: %w", err)
	}
	p.log.Printf("planned story into issue #%d", num)
	return num, nil
}

// Run polls for stranded items until ctx is cancelled.
func (p *Planner) Run(ctx context.Context) error {
	p.log.Printf("planner %s polling %s every %s", p.agentID, p.cfg.Repo, p.cfg.PollEvery())
	for {
		if err := p.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.log.Errorf("poll cycle: %v", err)
		}
		p.clk.Sleep(ctx, p.cfg.PollEvery())
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// RunOnce sweeps the states the other agents abandon items in. Escalated
// and check-failed items are deliberately left alone: a human put eyes on
// them, and a human flips them back to ready.
func (p *Planner) RunOnce(ctx context.Context) error {
	for _, state := range []workflow.State{workflow.Failed, workflow.NeedsClarification} {
		issues, err := p.forge.ListIssues([]string{state.Label()})
		if err != nil {
			return fmt.Errorf("list %s issues: %w", state, err)
		}
		for i := range issues {
			issue := issues[i]
			if err := p.reviveIssue(ctx, &issue, state); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				p.log.Errorf("revive #%d: %v", issue.Number, err)
			}
		}
	}
	return nil
}

// reviveIssue refines a stranded issue's specification and moves it back
// to ready, or escalates it once the refinement budget is spent.
func (p *Planner) reviveIssue(ctx context.Context, issue *domain.WorkItem, from workflow.State) error {
	comments, err := p.forge.Comments(issue.Number, 100)
	if err != nil {
		return fmt.Errorf("read comments: %w", err)
	}
	retries := retryCount(comments)
	if retries >= maxRefinements {
		return p.escalate(ctx, issue, from, comments, retries)
	}

	feedback := latestFeedback(comments)
	if feedback == "" {
		feedback = fmt.Sprintf("The item ended in state %q without detail. Make the specification more precise and self-contained.", from)
	}
	p.log.Item(issue.Number, "refine: "+issue.Title)

	// Refine before claiming: nobody else touches items in a stranded
	// state, and an acquire that loses the race just discards the draft.
	res, err := p.invoker.Invoke(ctx, prompt.SpecRefinement(issue.Body, feedback), llm.Options{})
	if err != nil {
		return fmt.Errorf("refine specification: %w", err)
	}
	revised := strings.TrimSpace(res.Text)
	if revised == "" {
		return fmt.Errorf("refine specification: empty response")
	}
	if err := p.forge.UpdateIssueBody(issue.Number, revised); err != nil {
		return fmt.Errorf("update body: %w", err)
	}
	if err := p.forge.Comment(issue.Number, issue.Kind, fmt.Sprintf("%s%d", retryMarker, retries+1)); err != nil {
		p.log.Errorf("record retry marker on #%d: %v", issue.Number, err)
	}

	outcome, err := p.lock.TryAcquire(ctx, issue, from, workflow.Ready)
	if err != nil {
		return err
	}
	if outcome != lock.Acquired {
		debug.Logf("planner: #%d not reopened: %s", issue.Number, outcome)
	}
	return nil
}

// escalate hands the issue to a human. Failed items have a direct edge to
// escalated; clarification items do not, so they get the marker comment
// and stay put.
func (p *Planner) escalate(ctx context.Context, issue *domain.WorkItem, from workflow.State, comments []domain.Comment, retries int) error {
	marked := false
	for _, c := range comments {
		if strings.HasPrefix(strings.TrimSpace(c.Body), escalationMarker) {
			marked = true
			break
		}
	}
	if !marked {
		note := fmt.Sprintf("%s:refinement-budget-exhausted after %d rounds", escalationMarker, retries)
		if err := p.forge.Comment(issue.Number, issue.Kind, note); err != nil {
			return err
		}
	}
	if !workflow.CanTransition(from, workflow.Escalated) {
		p.log.Printf("#%d: refinement budget exhausted, awaiting human input", issue.Number)
		return nil
	}
	outcome, err := p.lock.TryAcquire(ctx, issue, from, workflow.Escalated)
	if err != nil {
		return err
	}
	if outcome == lock.Acquired {
		p.log.Printf("#%d: escalated after %d refinement rounds", issue.Number, retries)
	}
	return nil
}

// issueTitle derives an issue title from the story's first line.
func issueTitle(story string) string {
	line := strings.TrimSpace(story)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	const maxTitle = 80
	if len(line) > maxTitle {
		line = line[:maxTitle-3] + "..."
	}
	return line
}

// retryCount returns the highest persisted refinement-marker value.
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

// latestFeedback picks the newest substantive comment: clarification
// payloads and failure notes, skipping protocol traffic.
func latestFeedback(comments []domain.Comment) string {
	for i := len(comments) - 1; i >= 0; i-- {
		body := strings.TrimSpace(comments[i].Body)
		if body == "" ||
			strings.HasPrefix(body, "ACK:") ||
			strings.HasPrefix(body, retryMarker) ||
			strings.HasPrefix(body, "WORKER_RETRY:") ||
			strings.HasPrefix(body, "ESCALATION:") {
			continue
		}
		return body
	}
	return ""
}
