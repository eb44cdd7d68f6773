package planner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workhive/workhive/internal/clock"
	"github.com/workhive/workhive/internal/config"
	"github.com/workhive/workhive/internal/domain"
	"github.com/workhive/workhive/internal/forge"
	"github.com/workhive/workhive/internal/llm"
	"github.com/workhive/workhive/internal/progress"
	"github.com/workhive/workhive/internal/workflow"
)

type fakeInvoker struct {
	response string
	prompts  []string
}

func (f *fakeInvoker) Invoke(_ context.Context, prompt string, _ llm.Options) (*llm.Result, error) {
	f.prompts = append(f.prompts, prompt)
	return &llm.Result{Text: f.response}, nil
}

type fixture struct {
	planner *Planner
	forge   *forge.Fake
	invoker *fakeInvoker
}

func newFixture(t *testing.T, response string) *fixture {
	t.Helper()
	clk := clock.NewFake(time.UnixMilli(1700000000000))
	f := forge.NewFake(clk)
	inv := &fakeInvoker{response: response}
	cfg := config.Default()
	cfg.Repo = "acme/widgets"
	return &fixture{planner: New(cfg, f, inv, clk, progress.Discard(), ""), forge: f, invoker: inv}
}

func TestNewKeepsSuppliedAgentID(t *testing.T) {
	clk := clock.NewFake(time.UnixMilli(1700000000000))
	p := New(config.Default(), forge.NewFake(clk), &fakeInvoker{}, clk, progress.Discard(), "planner-cafe1234")
	assert.Equal(t, "planner-cafe1234", p.AgentID())
}

func TestPlanStoryCreatesReadyIssue(t *testing.T) {
	fx := newFixture(t, "## Overview\n\nBuild a CSV parser with quoted field support.")

	num, err := fx.planner.PlanStory(context.Background(),
		"As a user I want to import CSV files\nso that I can load my data.")
	require.NoError(t, err)

	issue, err := fx.forge.Issue(num)
	require.NoError(t, err)
	assert.Equal(t, "As a user I want to import CSV files", issue.Title)
	assert.Contains(t, issue.Body, "quoted field support")
	assert.Contains(t, issue.Labels, workflow.Ready.Label())
}

func TestFailedIssueIsRefinedBackToReady(t *testing.T) {
	fx := newFixture(t, "Revised specification with concrete acceptance criteria.")
	num := fx.forge.Seed(domain.WorkItem{
		Kind:   domain.KindIssue,
		Title:  "add csv parser",
		Body:   "Parse CSV somehow.",
		Labels: []string{workflow.Failed.Label()},
	})
	require.NoError(t, fx.forge.Comment(num, domain.KindIssue,
		"Implementation failed after 3/3 attempts.\n\nLast failure:\n```\nassert failed\n```"))

	require.NoError(t, fx.planner.RunOnce(context.Background()))

	issue, err := fx.forge.Issue(num)
	require.NoError(t, err)
	assert.Contains(t, issue.Labels, workflow.Ready.Label())
	assert.Equal(t, "Revised specification with concrete acceptance criteria.", issue.Body)
	assert.True(t, fx.forge.ContainsComment(num, retryMarker+"1"))

	// The failure detail reaches the refinement prompt.
	require.Len(t, fx.invoker.prompts, 1)
	assert.Contains(t, fx.invoker.prompts[0], "assert failed")
	assert.Contains(t, fx.invoker.prompts[0], "Parse CSV somehow.")
}

func TestNeedsClarificationIsRefinedBackToReady(t *testing.T) {
	fx := newFixture(t, "Revised specification.")
	num := fx.forge.Seed(domain.WorkItem{
		Kind:   domain.KindIssue,
		Title:  "add csv parser",
		Body:   "Parse CSV somehow.",
		Labels: []string{workflow.NeedsClarification.Label()},
	})
	require.NoError(t, fx.forge.Comment(num, domain.KindIssue,
		"## Clarification needed for #1\n\nWhich delimiter variants must be supported?"))

	require.NoError(t, fx.planner.RunOnce(context.Background()))

	issue, err := fx.forge.Issue(num)
	require.NoError(t, err)
	assert.Contains(t, issue.Labels, workflow.Ready.Label())
	assert.Contains(t, fx.invoker.prompts[0], "Which delimiter variants")
}

func TestBudgetExhaustionEscalatesFailedIssue(t *testing.T) {
	fx := newFixture(t, "Revised specification.")
	num := fx.forge.Seed(domain.WorkItem{
		Kind:   domain.KindIssue,
		Title:  "add csv parser",
		Body:   "Parse CSV somehow.",
		Labels: []string{workflow.Failed.Label()},
	})
	require.NoError(t, fx.forge.Comment(num, domain.KindIssue, retryMarker+"3"))

	require.NoError(t, fx.planner.RunOnce(context.Background()))

	issue, err := fx.forge.Issue(num)
	require.NoError(t, err)
	assert.Contains(t, issue.Labels, workflow.Escalated.Label())
	assert.True(t, fx.forge.ContainsComment(num, escalationMarker+":refinement-budget-exhausted"))
	// No further refinement happened.
	assert.Empty(t, fx.invoker.prompts)
}

func TestExhaustedClarificationStaysPutWithMarker(t *testing.T) {
	fx := newFixture(t, "Revised specification.")
	num := fx.forge.Seed(domain.WorkItem{
		Kind:   domain.KindIssue,
		Title:  "add csv parser",
		Body:   "Parse CSV somehow.",
		Labels: []string{workflow.NeedsClarification.Label()},
	})
	require.NoError(t, fx.forge.Comment(num, domain.KindIssue, retryMarker+"3"))

	require.NoError(t, fx.planner.RunOnce(context.Background()))

	issue, err := fx.forge.Issue(num)
	require.NoError(t, err)
	assert.Contains(t, issue.Labels, workflow.NeedsClarification.Label())
	assert.True(t, fx.forge.ContainsComment(num, escalationMarker+":refinement-budget-exhausted"))
}

func TestEscalationMarkerIsNotRepeated(t *testing.T) {
	fx := newFixture(t, "Revised specification.")
	num := fx.forge.Seed(domain.WorkItem{
		Kind:   domain.KindIssue,
		Title:  "add csv parser",
		Body:   "Parse CSV somehow.",
		Labels: []string{workflow.NeedsClarification.Label()},
	})
	require.NoError(t, fx.forge.Comment(num, domain.KindIssue, retryMarker+"3"))

	require.NoError(t, fx.planner.RunOnce(context.Background()))
	require.NoError(t, fx.planner.RunOnce(context.Background()))

	markers := 0
	for _, body := range fx.forge.CommentsOf(num) {
		if len(body) >= len(escalationMarker) && body[:len(escalationMarker)] == escalationMarker {
			markers++
		}
	}
	assert.Equal(t, 1, markers)
}

func TestIssueTitle(t *testing.T) {
	assert.Equal(t, "Short story", issueTitle("Short story"))
	assert.Equal(t, "First line", issueTitle("  First line \nsecond line"))
	long := "This title is deliberately made much longer than eighty characters so that it gets truncated somewhere"
	title := issueTitle(long)
	assert.Len(t, title, 80)
	assert.Equal(t, "...", title[77:])
}

func TestLatestFeedbackSkipsProtocolTraffic(t *testing.T) {
	comments := []domain.Comment{
		{Body: "The real failure detail."},
		{Body: "ACK:worker:worker-a:1700000000000"},
		{Body: "WORKER_RETRY:2"},
		{Body: "PLANNER_RETRY:1"},
		{Body: "ESCALATION:worker:max-attempts-exhausted"},
	}
	assert.Equal(t, "The real failure detail.", latestFeedback(comments))
	assert.Empty(t, latestFeedback(nil))
}
