package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/workhive/workhive/internal/config"
	"github.com/workhive/workhive/internal/domain"
	"github.com/workhive/workhive/internal/forge"
	"github.com/workhive/workhive/internal/workflow"
)

var showCmd = &cobra.Command{
	Use:   "show <number>",
	Short: "Show one item with its specification and recent activity",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		number, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid item number %q", args[0])
		}
		cfg, err := config.Load(flagRepo, flagConfig)
		if err != nil {
			return err
		}
		f := forge.NewGH(cfg.Repo, cfg.GhCLI)
		item, err := f.Issue(number)
		if err != nil {
			return err
		}
		comments, err := f.Comments(number, 20)
		if err != nil {
			return err
		}
		out, err := renderItem(item, comments)
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	},
}

// renderItem renders the item header, its markdown body, and the
// non-protocol comment tail.
func renderItem(item *domain.WorkItem, comments []domain.Comment) (string, error) {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("#%d %s", item.Number, item.Title)))
	b.WriteString("\n")
	b.WriteString(labelStyle.Render("state: "))
	b.WriteString(valueStyle.Render(workflow.StateOf(item).String()))
	b.WriteString("\n\n")

	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return "", fmt.Errorf("create renderer: %w", err)
	}
	body, err := renderer.Render(item.Body)
	if err != nil {
		return "", fmt.Errorf("render body: %w", err)
	}
	b.WriteString(body)

	activity := substantiveComments(comments)
	if len(activity) > 0 {
		b.WriteString(columnStyle.Render("Recent activity"))
		b.WriteString("\n")
		for _, c := range activity {
			line := c.Body
			if i := strings.IndexByte(line, '\n'); i >= 0 {
				line = line[:i] + " ..."
			}
			fmt.Fprintf(&b, "  %s %s\n",
				labelStyle.Render(c.CreatedAt.Format("01-02 15:04")),
				valueStyle.Render(truncate(line, 90)))
		}
	}
	return b.String(), nil
}

// substantiveComments drops claim-protocol traffic from the activity tail.
func substantiveComments(comments []domain.Comment) []domain.Comment {
	var out []domain.Comment
	for _, c := range comments {
		body := strings.TrimSpace(c.Body)
		if strings.HasPrefix(body, "ACK:") {
			continue
		}
		out = append(out, c)
	}
	return out
}
