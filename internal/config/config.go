// Package config loads playbook configuration via viper, layering a
// YAML config file under the user's config directory with PLAYBOOK_*
// environment overrides.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete playbook configuration.
type Config struct {
	Agent   AgentConfig   `mapstructure:"agent"`
	Run     RunConfig     `mapstructure:"run"`
	History HistoryConfig `mapstructure:"history"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// AgentConfig selects and configures the external coding assistant.
type AgentConfig struct {
	// Type selects the agent family: "claude" or "opencode"
	Type string `mapstructure:"type"`
	// Command is a user-configured path to the agent executable.
	// When empty, the executable is resolved from the search path.
	Command string `mapstructure:"command"`
	// Model overrides the agent's default model, when supported
	Model string `mapstructure:"model"`
}

// RunConfig controls run behavior around the engine.
type RunConfig struct {
	// WaitTimeoutSeconds bounds the wait-and-retry loop when the session
	// is busy (0 = fail immediately)
	WaitTimeoutSeconds int `mapstructure:"wait_timeout_seconds"`
	// PollIntervalMs is the busy-poll interval during the wait loop
	PollIntervalMs int `mapstructure:"poll_interval_ms"`
	// Debug emits debug events on the progress stream
	Debug bool `mapstructure:"debug"`
	// Verbose emits expanded prompts on the progress stream
	Verbose bool `mapstructure:"verbose"`
}

// WaitTimeout returns the busy-wait timeout as a time.Duration (0 means disabled).
func (c *RunConfig) WaitTimeout() time.Duration {
	return time.Duration(c.WaitTimeoutSeconds) * time.Second
}

// PollInterval returns the busy-poll interval as a time.Duration.
func (c *RunConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// HistoryConfig controls persistence of run history records.
type HistoryConfig struct {
	// Enabled controls whether history records are written at all
	Enabled bool `mapstructure:"enabled"`
	// Dir overrides the history directory (default: <config dir>/history)
	Dir string `mapstructure:"dir"`
}

// LoggingConfig controls the structured debug log.
type LoggingConfig struct {
	// Enabled controls whether a log file is written
	Enabled bool `mapstructure:"enabled"`
	// Level is the minimum log level: DEBUG, INFO, WARN, ERROR
	Level string `mapstructure:"level"`
	// Dir overrides the log directory (default: <config dir>/logs)
	Dir string `mapstructure:"dir"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Agent: AgentConfig{
			Type: "claude",
		},
		Run: RunConfig{
			WaitTimeoutSeconds: 0,
			PollIntervalMs:     500,
		},
		History: HistoryConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Enabled: true,
			Level:   "info",
		},
	}
}

// SetDefaults registers default values with viper.
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("agent.type", defaults.Agent.Type)
	viper.SetDefault("agent.command", defaults.Agent.Command)
	viper.SetDefault("agent.model", defaults.Agent.Model)

	viper.SetDefault("run.wait_timeout_seconds", defaults.Run.WaitTimeoutSeconds)
	viper.SetDefault("run.poll_interval_ms", defaults.Run.PollIntervalMs)
	viper.SetDefault("run.debug", defaults.Run.Debug)
	viper.SetDefault("run.verbose", defaults.Run.Verbose)

	viper.SetDefault("history.enabled", defaults.History.Enabled)
	viper.SetDefault("history.dir", defaults.History.Dir)

	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
}

// Load reads the configuration from viper into a Config struct.
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Get returns the current configuration, falling back to defaults if
// unmarshaling fails.
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory.
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "playbook")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".playbook"
	}
	return filepath.Join(home, ".config", "playbook")
}

// ConfigFile returns the path to the config file.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// HistoryDir returns the directory where history records are written.
func (c *Config) HistoryDir() string {
	if c.History.Dir != "" {
		return c.History.Dir
	}
	return filepath.Join(ConfigDir(), "history")
}

// LogDir returns the directory where the debug log is written, or ""
// when file logging is disabled.
func (c *Config) LogDir() string {
	if !c.Logging.Enabled {
		return ""
	}
	if c.Logging.Dir != "" {
		return c.Logging.Dir
	}
	return filepath.Join(ConfigDir(), "logs")
}

// ActivityFile returns the path of the activity registry file. It is a
// separate file from all other persisted state so registry availability
// never couples to the rest of the storage subsystem.
func ActivityFile() string {
	return filepath.Join(ConfigDir(), "activity.json")
}
