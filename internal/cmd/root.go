package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vibecode/playbook/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "playbook",
	Short: "Batch-drive an AI coding assistant through task checklists",
	Long: `Playbook drives an external AI coding assistant (Claude Code or
OpenCode) through checklists of tasks held in markdown documents,
looping until every task is done, while streaming structured progress
events and guarding against two processes using the same session.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/playbook/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/playbook")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("PLAYBOOK")
	// Replace dots with underscores for nested keys in env vars
	// e.g., PLAYBOOK_AGENT_TYPE for agent.type
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
