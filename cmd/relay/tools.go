package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/rtsh13/relay/internal/tools"
	"github.com/rtsh13/relay/internal/types"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List available tools",
	Long: `List the builtin tools a model can request.

Every request is shown for confirmation before it runs.

Examples:
  relay tools           # List all tools
  relay tools --verbose # Show parameters`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		registry, err := tools.NewBuiltinRegistry(tools.Options{
			WorkDir:        cfg.Tools.WorkDir,
			Shell:          cfg.Tools.Shell,
			CommandTimeout: cfg.Tools.CommandTimeout(),
		})
		if err != nil {
			return fmt.Errorf("load tools: %w", err)
		}
		printTools(registry.ListTools())
		return nil
	},
}

func printTools(infos []types.ToolInfo) {
	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#7C3AED")).
		Bold(true)

	toolStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#F59E0B")).
		Bold(true)

	descStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#9CA3AF"))

	paramStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#06B6D4"))

	fmt.Println(headerStyle.Render("Available Tools"))
	fmt.Println()

	for _, info := range infos {
		fmt.Printf("  %s %s\n", toolStyle.Render(info.Name), descStyle.Render("(risk: "+string(info.Risk)+")"))
		fmt.Printf("    %s\n", descStyle.Render(info.Description))

		if verbose && len(info.Parameters) > 0 {
			fmt.Println("    Parameters:")
			for _, p := range info.Parameters {
				req := ""
				if p.Required {
					req = " (required)"
				}
				fmt.Printf("      %s %s%s\n", paramStyle.Render(p.Name), descStyle.Render(p.Type), req)
				if p.Description != "" {
					fmt.Printf("        %s\n", descStyle.Render(p.Description))
				}
			}
		}
		fmt.Println()
	}

	fmt.Println(descStyle.Render(fmt.Sprintf("  Total: %d tools available", len(infos))))
	if !verbose {
		fmt.Println(descStyle.Render("  Use --verbose for parameter details"))
	}
}
