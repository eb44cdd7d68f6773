package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/workhive/workhive/internal/config"
	"github.com/workhive/workhive/internal/forge"
)

var flagWatch bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the workflow board",
	Long: `Show every tracked issue and pull request grouped by workflow state.

With --watch, keeps the board on screen and refreshes it periodically.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := config.Load(flagRepo, flagConfig)
		if err != nil {
			return err
		}
		f := forge.NewGH(cfg.Repo, cfg.GhCLI)
		if flagWatch {
			p := tea.NewProgram(newWatchModel(cfg, f), tea.WithAltScreen())
			_, err := p.Run()
			return err
		}
		board, err := fetchBoard(f)
		if err != nil {
			return err
		}
		fmt.Println(titleStyle.Render("WORKHIVE " + cfg.Repo))
		fmt.Print(board.render(100))
		return nil
	},
}
