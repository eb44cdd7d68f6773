package tui

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workhive/workhive/internal/clock"
	"github.com/workhive/workhive/internal/config"
	"github.com/workhive/workhive/internal/domain"
	"github.com/workhive/workhive/internal/forge"
	"github.com/workhive/workhive/internal/workflow"
)

func seedBoard(t *testing.T) *forge.Fake {
	t.Helper()
	f := forge.NewFake(clock.NewFake(time.UnixMilli(1700000000000)))
	f.Seed(domain.WorkItem{
		Kind: domain.KindIssue, Title: "add csv parser",
		Labels: []string{workflow.Ready.Label()},
	})
	f.Seed(domain.WorkItem{
		Kind: domain.KindIssue, Title: "add json export",
		Labels: []string{workflow.Implementing.Label()},
	})
	f.Seed(domain.WorkItem{
		Kind: domain.KindIssue, Title: "untracked chore",
	})
	_, err := f.CreatePR("add csv parser", "Closes #1", "auto/issue-1", "main",
		[]string{workflow.Reviewing.Label()})
	require.NoError(t, err)
	return f
}

func TestFetchBoardGroupsByState(t *testing.T) {
	board, err := fetchBoard(seedBoard(t))
	require.NoError(t, err)

	assert.Equal(t, 3, board.Total())
	assert.Len(t, board.Items[workflow.Ready], 1)
	assert.Len(t, board.Items[workflow.Implementing], 1)
	assert.Len(t, board.Items[workflow.Reviewing], 1)
	// Items without a status label are not part of the workflow.
	assert.Empty(t, board.Items[workflow.Unknown])
}

func TestBoardRender(t *testing.T) {
	board, err := fetchBoard(seedBoard(t))
	require.NoError(t, err)

	out := board.render(100)
	assert.Contains(t, out, "status:ready (1)")
	assert.Contains(t, out, "add csv parser")
	assert.Contains(t, out, "add json export")
	assert.NotContains(t, out, "untracked chore")

	empty := &Board{Items: map[workflow.State][]domain.WorkItem{}}
	assert.Contains(t, empty.render(100), "No tracked items")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 20))
	assert.Equal(t, "exactly ten", truncate("exactly ten", 11))
	assert.Equal(t, "long ti...", truncate("long title here", 10))
	assert.Equal(t, "xyz", truncate("xyz", 2))
}

func TestWatchModelUpdate(t *testing.T) {
	cfg := config.Default()
	cfg.Repo = "acme/widgets"
	m := newWatchModel(cfg, seedBoard(t))

	updated, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m = updated.(watchModel)
	assert.Equal(t, 120, m.width)

	board, err := fetchBoard(m.forge)
	require.NoError(t, err)
	updated, cmd := m.Update(boardMsg{board: board, at: time.Now()})
	m = updated.(watchModel)
	assert.False(t, m.loading)
	assert.NotNil(t, cmd)
	require.NotNil(t, m.board)
	assert.Equal(t, 3, m.board.Total())

	view := m.View()
	assert.Contains(t, view, "WORKHIVE acme/widgets")
	assert.Contains(t, view, "add csv parser")
	assert.Contains(t, view, "q: quit")

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	assert.NotNil(t, cmd)
}

func TestRenderItemFiltersProtocolComments(t *testing.T) {
	item := &domain.WorkItem{
		Number: 4,
		Title:  "add csv parser",
		Body:   "# Overview\n\nParse CSV records.",
		Labels: []string{workflow.Ready.Label()},
	}
	comments := []domain.Comment{
		{Body: "ACK:worker:worker-a:1700000000000", CreatedAt: time.UnixMilli(1700000000000)},
		{Body: "Validation passed on attempt 2 of 3.", CreatedAt: time.UnixMilli(1700000100000)},
	}

	out, err := renderItem(item, comments)
	require.NoError(t, err)
	assert.Contains(t, out, "#4 add csv parser")
	assert.Contains(t, out, "status:ready")
	assert.Contains(t, out, "Validation passed")
	assert.NotContains(t, out, "ACK:worker")
}
