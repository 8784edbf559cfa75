package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rtsh13/relay/internal/config"
)

const initConfigPath = "relay.yaml"

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or create configuration",
	Long:  "View the effective configuration or create a default relay.yaml.",
	RunE:  runConfig,
}

var (
	configInit bool
	configShow bool
)

func init() {
	configCmd.Flags().BoolVar(&configInit, "init", false, "Create default config file")
	configCmd.Flags().BoolVar(&configShow, "show", true, "Show current configuration")
}

func runConfig(cmd *cobra.Command, args []string) error {
	if configInit {
		return initConfig()
	}
	if configShow {
		return showConfig()
	}
	return nil
}

func initConfig() error {
	if _, err := os.Stat(initConfigPath); err == nil {
		fmt.Println(lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B")).
			Render(initConfigPath + " already exists. Use --show to view it."))
		return nil
	}

	if err := config.DefaultConfig().Save(initConfigPath); err != nil {
		return fmt.Errorf("create config: %w", err)
	}

	fmt.Println(lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).
		Render("Created " + initConfigPath + " with default settings."))
	fmt.Println("\nEdit this file to configure:")
	fmt.Println("  - model provider, endpoint and model")
	fmt.Println("  - history bound and snapshot file")
	fmt.Println("  - persona catalog and default persona")
	fmt.Println("  - tool working directory and timeouts")
	return nil
}

func showConfig() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	fmt.Println(lipgloss.NewStyle().Foreground(lipgloss.Color("#06B6D4")).Bold(true).
		Render("Current Configuration:\n"))

	data, err := yaml.Marshal(cfg.Redacted())
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	fmt.Println(string(data))

	fmt.Println(lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF")).
		Render("Config file locations (in order of precedence):"))
	for i, p := range config.DefaultPaths() {
		fmt.Printf("  %d. %s\n", i+1, p)
	}
	fmt.Printf("  Environment overrides use the %s_ prefix, e.g. %s_LLM_MODEL.\n", config.EnvPrefix, config.EnvPrefix)
	return nil
}
