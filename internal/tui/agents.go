package tui

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/workhive/workhive/internal/clock"
	"github.com/workhive/workhive/internal/config"
	"github.com/workhive/workhive/internal/domain"
	"github.com/workhive/workhive/internal/forge"
	"github.com/workhive/workhive/internal/llm"
	"github.com/workhive/workhive/internal/llm/claude"
	"github.com/workhive/workhive/internal/llm/codex"
	"github.com/workhive/workhive/internal/llm/executor"
	"github.com/workhive/workhive/internal/planner"
	"github.com/workhive/workhive/internal/progress"
	"github.com/workhive/workhive/internal/reviewer"
	"github.com/workhive/workhive/internal/worker"
)

var (
	flagRepo   string
	flagConfig string
	flagStory  string
)

func init() {
	for _, c := range []*cobra.Command{workerCmd, reviewerCmd, plannerCmd, statusCmd, showCmd, configCmd} {
		c.Flags().StringVarP(&flagRepo, "repo", "r", "", "target repository as owner/name")
		c.Flags().StringVarP(&flagConfig, "config", "c", "", "config file path")
	}
	plannerCmd.Flags().StringVar(&flagStory, "story", "", "plan a single user story into an issue and exit")
	statusCmd.Flags().BoolVarP(&flagWatch, "watch", "w", false, "live board view")
}

// deps bundles everything an agent daemon needs.
type deps struct {
	cfg     *config.Config
	forge   forge.Client
	invoker llm.Invoker
	log     *progress.Logger
	agentID string
}

func buildDeps(role string) (*deps, error) {
	cfg, err := config.Load(flagRepo, flagConfig)
	if err != nil {
		return nil, err
	}
	inv, err := executor.New(executor.Config{
		Name:   cfg.LLMBackend,
		Claude: claude.Config{Bin: cfg.ClaudeCLI},
		Codex:  codex.Config{Bin: cfg.CodexCLI},
	})
	if err != nil {
		return nil, err
	}
	agentID := domain.NewAgentID(role)
	log, err := progress.New(progress.Config{
		LogsDir: cfg.LogsDir,
		Role:    role,
		AgentID: agentID,
		Writer:  os.Stdout,
	})
	if err != nil {
		return nil, err
	}
	return &deps{
		cfg:     cfg,
		forge:   forge.NewGH(cfg.Repo, cfg.GhCLI),
		invoker: inv,
		log:     log,
		agentID: agentID,
	}, nil
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run a worker agent",
	Long: `Run a worker agent daemon. Workers claim ready issues, implement them
test-first on an auto/issue-N branch, open a pull request, keep CI green, and
rework pull requests the reviewer bounced.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		d, err := buildDeps(worker.Role)
		if err != nil {
			return err
		}
		defer d.log.Close()
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		w := worker.New(d.cfg, d.forge, d.invoker, clock.Real{}, d.log, d.agentID)
		return w.Run(ctx)
	},
}

var reviewerCmd = &cobra.Command{
	Use:   "reviewer",
	Short: "Run a reviewer agent",
	Long: `Run a reviewer agent daemon. Reviewers claim pull requests that passed
implementation, produce a structured review, and approve or request changes.
Small findings are deferred and batched into cleanup issues.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		d, err := buildDeps(reviewer.Role)
		if err != nil {
			return err
		}
		defer d.log.Close()
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		r := reviewer.New(d.cfg, d.forge, d.invoker, clock.Real{}, d.log, afero.NewOsFs(), d.agentID)
		return r.Run(ctx)
	},
}

var plannerCmd = &cobra.Command{
	Use:   "planner",
	Short: "Run a planner agent, or plan one story with --story",
	Long: `Run a planner agent daemon. Planners watch for issues the other agents gave
up on, refine their specifications with the accumulated feedback, and put them
back into circulation.

With --story, the planner turns the given user story into a ready
specification issue and exits.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		d, err := buildDeps(planner.Role)
		if err != nil {
			return err
		}
		defer d.log.Close()
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		p := planner.New(d.cfg, d.forge, d.invoker, clock.Real{}, d.log, d.agentID)
		if flagStory != "" {
			num, err := p.PlanStory(ctx, flagStory)
			if err != nil {
				return err
			}
			fmt.Printf("Created issue #%d\n", num)
			return nil
		}
		return p.Run(ctx)
	},
}
