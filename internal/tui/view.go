package tui

import (
	"fmt"
	"strings"
)

func (m watchModel) View() string {
	if m.width == 0 {
		return "Initializing..."
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("WORKHIVE " + m.cfg.Repo))
	b.WriteString("\n")

	switch {
	case m.err != nil:
		b.WriteString(errStyle.Render(fmt.Sprintf("board refresh failed: %v", m.err)))
		b.WriteString("\n")
	case m.board == nil:
		b.WriteString(m.spinner.View() + " loading board...")
		b.WriteString("\n")
	default:
		content := m.board.render(m.width - 6)
		b.WriteString(boardBoxStyle.Width(m.width - 2).Render(strings.TrimRight(content, "\n")))
		b.WriteString("\n")
	}

	status := fmt.Sprintf("refreshed %s", m.fetched.Format("15:04:05"))
	if m.fetched.IsZero() {
		status = "never refreshed"
	}
	if m.loading {
		status = m.spinner.View() + " refreshing"
	}
	b.WriteString(helpStyle.Render(fmt.Sprintf("%s • r: refresh • q: quit", status)))
	return b.String()
}
