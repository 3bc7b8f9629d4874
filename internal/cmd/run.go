package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/vibecode/playbook/internal/activity"
	"github.com/vibecode/playbook/internal/agent"
	"github.com/vibecode/playbook/internal/config"
	"github.com/vibecode/playbook/internal/engine"
	"github.com/vibecode/playbook/internal/errors"
	"github.com/vibecode/playbook/internal/history"
	"github.com/vibecode/playbook/internal/logging"
)

var (
	runSessionID   string
	runSessionName string
	runGroupName   string
	runDryRun      bool
	runWait        bool
	runJSON        bool
	runDebug       bool
	runVerbose     bool
)

var runCmd = &cobra.Command{
	Use:   "run <playbook.yaml> [folder]",
	Short: "Execute a playbook against a task folder",
	Long: `Run loads a playbook definition, registers run activity for the
session, and drains unchecked tasks document by document through the
configured agent. Progress is streamed as events; pass --json for one
JSON object per line.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPlaybook(cmd, args, runDryRun)
	},
}

var previewCmd = &cobra.Command{
	Use:   "preview <playbook.yaml> [folder]",
	Short: "Preview the tasks a run would process, without invoking the agent",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPlaybook(cmd, args, true)
	},
}

func init() {
	for _, c := range []*cobra.Command{runCmd, previewCmd} {
		c.Flags().StringVar(&runSessionID, "session", "", "session id owning this run (default: derived from folder)")
		c.Flags().StringVar(&runSessionName, "session-name", "", "human-readable session name")
		c.Flags().StringVar(&runGroupName, "group", "", "owning group's display name")
		c.Flags().BoolVar(&runWait, "wait", false, "wait for a busy session instead of failing")
		c.Flags().BoolVar(&runJSON, "json", false, "emit events as JSON lines")
		c.Flags().BoolVar(&runDebug, "debug", false, "emit debug events")
		c.Flags().BoolVar(&runVerbose, "verbose", false, "emit expanded prompts")
	}
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "preview tasks without invoking the agent")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(previewCmd)
}

func runPlaybook(cmd *cobra.Command, args []string, dryRun bool) error {
	cfg := config.Get()

	pb, err := engine.LoadPlaybook(args[0])
	if err != nil {
		return err
	}

	folder := "."
	if len(args) > 1 {
		folder = args[1]
	}
	folder, err = filepath.Abs(folder)
	if err != nil {
		return fmt.Errorf("resolve folder: %w", err)
	}

	sessionID := runSessionID
	if sessionID == "" {
		sessionID = filepath.Base(folder)
	}

	logger, err := logging.NewLogger(cfg.LogDir(), cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer logger.Close()

	registry := activity.NewRegistry(config.ActivityFile())
	if err := waitForSession(registry, sessionID, cfg); err != nil {
		return err
	}

	agentType, err := agent.ParseType(cfg.Agent.Type)
	if err != nil {
		return err
	}
	runner := agent.NewRunner(agentType,
		agent.WithCustomPath(cfg.Agent.Command),
		agent.WithModel(cfg.Agent.Model),
		agent.WithLogger(logger),
	)
	if !dryRun && !runner.Available() {
		return fmt.Errorf("%w: %s", errors.ErrAgentUnavailable, agentType.DisplayName())
	}

	engOpts := []engine.EngineOption{
		engine.WithLogger(logger),
		engine.WithDebug(runDebug || cfg.Run.Debug),
		engine.WithVerbose(runVerbose || cfg.Run.Verbose),
	}
	if cfg.History.Enabled {
		engOpts = append(engOpts, engine.WithHistory(history.NewFileStore(cfg.HistoryDir())))
	}
	eng := engine.New(registry, runner, engOpts...)

	cwd, _ := os.Getwd()
	stream := eng.Run(cmd.Context(), engine.RunOptions{
		Playbook: *pb,
		Session: engine.Session{
			ID:        sessionID,
			Name:      runSessionName,
			Workdir:   cwd,
			GroupName: runGroupName,
		},
		Folder: folder,
		DryRun: dryRun,
	})

	return renderStream(cmd.OutOrStdout(), stream, runJSON)
}

// waitForSession polls the activity registry until the session is free,
// bounded by the configured wait timeout. Without --wait a busy session
// fails immediately.
func waitForSession(registry *activity.Registry, sessionID string, cfg *config.Config) error {
	busy, rec, err := registry.IsBusy(sessionID)
	if err != nil {
		return err
	}
	if !busy {
		return nil
	}
	if !runWait || cfg.Run.WaitTimeout() <= 0 {
		return fmt.Errorf("%w: playbook %q (pid %d)", errors.ErrRunActive, rec.PlaybookName, rec.PID)
	}

	deadline := time.Now().Add(cfg.Run.WaitTimeout())
	for time.Now().Before(deadline) {
		time.Sleep(cfg.Run.PollInterval())
		busy, _, err = registry.IsBusy(sessionID)
		if err != nil {
			return err
		}
		if !busy {
			return nil
		}
	}
	return fmt.Errorf("%w: still busy after %s", errors.ErrRunActive, cfg.Run.WaitTimeout())
}
