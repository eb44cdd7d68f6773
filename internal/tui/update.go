package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

func fetchBoardCmd(m watchModel) tea.Cmd {
	return func() tea.Msg {
		board, err := fetchBoard(m.forge)
		return boardMsg{board: board, err: err, at: time.Now()}
	}
}

func refreshTickCmd() tea.Cmd {
	return tea.Tick(watchRefreshEvery, func(time.Time) tea.Msg {
		return refreshTickMsg{}
	})
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, fetchBoardCmd(m), tea.WindowSize())
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			m.loading = true
			return m, fetchBoardCmd(m)
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case boardMsg:
		m.loading = false
		m.err = msg.err
		if msg.err == nil {
			m.board = msg.board
			m.fetched = msg.at
		}
		return m, refreshTickCmd()

	case refreshTickMsg:
		m.loading = true
		return m, fetchBoardCmd(m)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}
