// Package tui implements the workhive CLI: the agent daemons and the
// terminal views over the shared issue board.
package tui

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version information set from main.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// SetVersionInfo sets the version information for the CLI.
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (%s, %s)", version, commit, date)
}

var rootCmd = &cobra.Command{
	Use:   "workhive",
	Short: "Label-coordinated multi-agent development on a shared issue tracker",
	Long: `Workhive runs autonomous worker, reviewer, and planner agents against one
GitHub repository. Agents coordinate purely through issue labels and comments:
a comment-based claim protocol decides who works on what, and status labels
carry each item through implementation, review, and merge.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(reviewerCmd)
	rootCmd.AddCommand(plannerCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(configCmd)
}
