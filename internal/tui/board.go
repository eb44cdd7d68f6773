package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/workhive/workhive/internal/domain"
	"github.com/workhive/workhive/internal/forge"
	"github.com/workhive/workhive/internal/workflow"
)

// boardStates is the display order of the board columns.
var boardStates = []workflow.State{
	workflow.Ready,
	workflow.Implementing,
	workflow.Testing,
	workflow.AwaitingCheck,
	workflow.Reviewing,
	workflow.InReview,
	workflow.ChangesRequested,
	workflow.Approved,
	workflow.Failed,
	workflow.CheckFailed,
	workflow.NeedsClarification,
	workflow.Escalated,
}

// Board is a snapshot of every tracked item grouped by workflow state.
type Board struct {
	Items map[workflow.State][]domain.WorkItem
}

// fetchBoard reads all open items and buckets them by status label. Items
// without a status label are not part of the workflow and are skipped.
func fetchBoard(f forge.Client) (*Board, error) {
	b := &Board{Items: make(map[workflow.State][]domain.WorkItem)}
	issues, err := f.ListIssues(nil)
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	prs, err := f.ListPRs(nil)
	if err != nil {
		return nil, fmt.Errorf("list pull requests: %w", err)
	}
	for _, item := range append(issues, prs...) {
		if s := workflow.StateOf(&item); s != workflow.Unknown {
			b.Items[s] = append(b.Items[s], item)
		}
	}
	return b, nil
}

// Total returns the number of items on the board.
func (b *Board) Total() int {
	n := 0
	for _, items := range b.Items {
		n += len(items)
	}
	return n
}

// render draws the board, width-constrained, one column block per state.
// Empty states are elided so a quiet board stays short.
func (b *Board) render(width int) string {
	var out strings.Builder
	if b.Total() == 0 {
		out.WriteString(emptyStyle.Render("No tracked items. Plan a story with: workhive planner --story \"...\""))
		out.WriteString("\n")
		return out.String()
	}
	for _, state := range boardStates {
		items := b.Items[state]
		if len(items) == 0 {
			continue
		}
		out.WriteString(columnStyle.Render(fmt.Sprintf("%s (%d)", state, len(items))))
		out.WriteString("\n")
		for _, item := range items {
			line := fmt.Sprintf("  %s %s %s",
				numberStyle.Render(fmt.Sprintf("#%-4d", item.Number)),
				labelStyle.Render(item.Kind.String()),
				valueStyle.Render(truncate(item.Title, width-12)))
			out.WriteString(line)
			out.WriteString("\n")
		}
	}
	return out.String()
}

func truncate(s string, limit int) string {
	if limit < 4 || lipgloss.Width(s) <= limit {
		return s
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-3]) + "..."
}
