package tui

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/workhive/workhive/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long: `Print the configuration the agents would run with, after applying
defaults, the config file, and environment overrides.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := config.Load(flagRepo, flagConfig)
		if err != nil {
			return err
		}
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("marshal config: %w", err)
		}
		fmt.Print(string(out))
		return nil
	},
}
