package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var personasCmd = &cobra.Command{
	Use:   "personas",
	Short: "List available personas",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		catalog, err := loadCatalog(cfg)
		if err != nil {
			return fmt.Errorf("load personas: %w", err)
		}

		headerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#7C3AED")).Bold(true)
		idStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B")).Bold(true)
		descStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF"))

		fmt.Println(headerStyle.Render("Personas"))
		fmt.Println()

		def := catalog.Default()
		if cfg.Personas.Default != "" {
			if id, err := catalog.Resolve(cfg.Personas.Default); err == nil {
				def = id
			}
		}
		for _, p := range catalog.List() {
			marker := " "
			if p.ID == def {
				marker = "*"
			}
			fmt.Printf("  %s %s  %s\n", marker, idStyle.Render(string(p.ID)), p.DisplayName())
			if p.Description != "" {
				fmt.Printf("      %s\n", descStyle.Render(p.Description))
			}
		}
		fmt.Println()
		fmt.Println(descStyle.Render("  * default. Switch during a session with /persona <id>."))
		return nil
	},
}
