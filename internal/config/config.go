// Package config handles relay configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment overrides, e.g. RELAY_LLM_MODEL.
const EnvPrefix = "RELAY"

// Config holds all relay configuration.
type Config struct {
	LLM      LLMConfig      `mapstructure:"llm" yaml:"llm"`
	History  HistoryConfig  `mapstructure:"history" yaml:"history"`
	Personas PersonasConfig `mapstructure:"personas" yaml:"personas"`
	Tools    ToolsConfig    `mapstructure:"tools" yaml:"tools"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
	UI       UIConfig       `mapstructure:"ui" yaml:"ui"`
}

// LLMConfig selects and configures the model adapter.
type LLMConfig struct {
	Provider       string  `mapstructure:"provider" yaml:"provider"`
	Endpoint       string  `mapstructure:"endpoint" yaml:"endpoint"`
	Model          string  `mapstructure:"model" yaml:"model"`
	APIKey         string  `mapstructure:"api_key" yaml:"api_key"`
	Temperature    float64 `mapstructure:"temperature" yaml:"temperature"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

// Timeout returns the HTTP client timeout. Zero means none.
func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// HistoryConfig bounds the conversation history.
type HistoryConfig struct {
	MaxLength                int    `mapstructure:"max_length" yaml:"max_length"`
	PruningStrategy          string `mapstructure:"pruning_strategy" yaml:"pruning_strategy"`
	PrioritizeSystemMessages bool   `mapstructure:"prioritize_system_messages" yaml:"prioritize_system_messages"`
	SnapshotPath             string `mapstructure:"snapshot_path" yaml:"snapshot_path"`
}

// PersonasConfig points at the persona catalog.
type PersonasConfig struct {
	Path    string `mapstructure:"path" yaml:"path"`
	Default string `mapstructure:"default" yaml:"default"`
}

// ToolsConfig configures the builtin tools and the confirmation gate.
type ToolsConfig struct {
	WorkDir               string `mapstructure:"work_dir" yaml:"work_dir"`
	Shell                 string `mapstructure:"shell" yaml:"shell"`
	CommandTimeoutSeconds int    `mapstructure:"command_timeout_seconds" yaml:"command_timeout_seconds"`
	AllowDryRun           bool   `mapstructure:"allow_dry_run" yaml:"allow_dry_run"`
	MaxToolIterations     int    `mapstructure:"max_tool_iterations" yaml:"max_tool_iterations"`
}

// CommandTimeout returns the executeCommand timeout.
func (c ToolsConfig) CommandTimeout() time.Duration {
	return time.Duration(c.CommandTimeoutSeconds) * time.Second
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	File        string `mapstructure:"file" yaml:"file"`
	Development bool   `mapstructure:"development" yaml:"development"`
}

// UIConfig configures the console.
type UIConfig struct {
	Plain          bool `mapstructure:"plain" yaml:"plain"`
	Markdown       bool `mapstructure:"markdown" yaml:"markdown"`
	MaxInputLength int  `mapstructure:"max_input_length" yaml:"max_input_length"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:       "ollama",
			Endpoint:       "http://localhost:11434",
			Model:          "qwen2.5:7b",
			Temperature:    0.2,
			TimeoutSeconds: 0,
		},
		History: HistoryConfig{
			MaxLength:                100,
			PruningStrategy:          "recent",
			PrioritizeSystemMessages: true,
		},
		Personas: PersonasConfig{
			Default: "",
		},
		Tools: ToolsConfig{
			WorkDir:               ".",
			CommandTimeoutSeconds: 30,
			AllowDryRun:           true,
			MaxToolIterations:     10,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		UI: UIConfig{
			Markdown:       true,
			MaxInputLength: 20000,
		},
	}
}

// ConfigDir returns the per-user configuration directory, ~/.relay.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".relay"), nil
}

// DefaultPaths returns the config files LoadFromPaths searches when none are
// given, in order of precedence.
func DefaultPaths() []string {
	paths := []string{"relay.local.yaml", "relay.yaml"}
	if dir, err := ConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "config.yaml"))
	}
	return paths
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := DefaultConfig()
	v.SetDefault("llm.provider", d.LLM.Provider)
	v.SetDefault("llm.endpoint", d.LLM.Endpoint)
	v.SetDefault("llm.model", d.LLM.Model)
	v.SetDefault("llm.api_key", d.LLM.APIKey)
	v.SetDefault("llm.temperature", d.LLM.Temperature)
	v.SetDefault("llm.timeout_seconds", d.LLM.TimeoutSeconds)
	v.SetDefault("history.max_length", d.History.MaxLength)
	v.SetDefault("history.pruning_strategy", d.History.PruningStrategy)
	v.SetDefault("history.prioritize_system_messages", d.History.PrioritizeSystemMessages)
	v.SetDefault("history.snapshot_path", d.History.SnapshotPath)
	v.SetDefault("personas.path", d.Personas.Path)
	v.SetDefault("personas.default", d.Personas.Default)
	v.SetDefault("tools.work_dir", d.Tools.WorkDir)
	v.SetDefault("tools.shell", d.Tools.Shell)
	v.SetDefault("tools.command_timeout_seconds", d.Tools.CommandTimeoutSeconds)
	v.SetDefault("tools.allow_dry_run", d.Tools.AllowDryRun)
	v.SetDefault("tools.max_tool_iterations", d.Tools.MaxToolIterations)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.file", d.Logging.File)
	v.SetDefault("logging.development", d.Logging.Development)
	v.SetDefault("ui.plain", d.UI.Plain)
	v.SetDefault("ui.markdown", d.UI.Markdown)
	v.SetDefault("ui.max_input_length", d.UI.MaxInputLength)
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Load reads configuration from path, layered over defaults and RELAY_*
// environment variables.
func Load(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return decode(v)
}

// LoadFromPaths loads the first config file that exists. With no file it
// returns defaults plus environment overrides.
func LoadFromPaths(paths ...string) (*Config, error) {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return Load(p)
		}
	}
	return decode(newViper())
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	var errs []error

	switch c.LLM.Provider {
	case "ollama", "openai", "gemini":
	default:
		errs = append(errs, fmt.Errorf("llm.provider %q must be one of ollama, openai, gemini", c.LLM.Provider))
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, fmt.Errorf("llm.temperature %v must be within [0, 2]", c.LLM.Temperature))
	}
	if c.LLM.TimeoutSeconds < 0 {
		errs = append(errs, errors.New("llm.timeout_seconds must not be negative"))
	}
	if c.History.MaxLength <= 0 {
		errs = append(errs, fmt.Errorf("history.max_length %d must be positive", c.History.MaxLength))
	}
	switch c.History.PruningStrategy {
	case "recent", "none":
	default:
		errs = append(errs, fmt.Errorf("history.pruning_strategy %q must be recent or none", c.History.PruningStrategy))
	}
	if c.Tools.CommandTimeoutSeconds <= 0 {
		errs = append(errs, errors.New("tools.command_timeout_seconds must be positive"))
	}
	if c.Tools.MaxToolIterations <= 0 {
		errs = append(errs, errors.New("tools.max_tool_iterations must be positive"))
	}
	if c.UI.MaxInputLength <= 0 {
		errs = append(errs, errors.New("ui.max_input_length must be positive"))
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level %q must be debug, info, warn or error", c.Logging.Level))
	}

	return errors.Join(errs...)
}

// Save writes the configuration to path as YAML.
func (c *Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() *Config {
	out := *c
	if out.LLM.APIKey != "" {
		out.LLM.APIKey = "********"
	}
	return &out
}
