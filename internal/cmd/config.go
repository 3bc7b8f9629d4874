package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vibecode/playbook/internal/agent"
	"github.com/vibecode/playbook/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the resolved configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Get()
		out := cmd.OutOrStdout()

		fmt.Fprintf(out, "config file:  %s\n", config.ConfigFile())
		fmt.Fprintf(out, "agent type:   %s\n", cfg.Agent.Type)
		if cfg.Agent.Command != "" {
			fmt.Fprintf(out, "agent path:   %s (configured)\n", cfg.Agent.Command)
		}

		agentType, err := agent.ParseType(cfg.Agent.Type)
		if err != nil {
			return err
		}
		resolved := agent.ResolveExecutable(agentType, cfg.Agent.Command)
		if resolved == "" {
			resolved = "(not found)"
		}
		fmt.Fprintf(out, "resolved:     %s\n", resolved)
		fmt.Fprintf(out, "history dir:  %s\n", cfg.HistoryDir())
		fmt.Fprintf(out, "activity:     %s\n", config.ActivityFile())
		fmt.Fprintf(out, "log level:    %s\n", cfg.Logging.Level)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
