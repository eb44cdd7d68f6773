package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"

	"github.com/workhive/workhive/internal/config"
	"github.com/workhive/workhive/internal/forge"
)

// watchRefreshEvery is how often the live board refetches.
const watchRefreshEvery = 10 * time.Second

// watchModel is the bubbletea model for the live board view.
type watchModel struct {
	cfg     *config.Config
	forge   forge.Client
	board   *Board
	err     error
	spinner spinner.Model
	width   int
	height  int
	fetched time.Time
	loading bool
}

func newWatchModel(cfg *config.Config, f forge.Client) watchModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return watchModel{cfg: cfg, forge: f, spinner: s, loading: true}
}

// boardMsg carries a refreshed board snapshot.
type boardMsg struct {
	board *Board
	err   error
	at    time.Time
}

// refreshTickMsg schedules the next refetch.
type refreshTickMsg struct{}
