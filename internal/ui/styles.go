package ui

import (
	"github.com/charmbracelet/lipgloss"
)

// Theme defines the visual style of the console.
type Theme struct {
	// Brand colors
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Accent    lipgloss.Color

	// Semantic colors
	Success lipgloss.Color
	Warning lipgloss.Color
	Error   lipgloss.Color
	Muted   lipgloss.Color

	// Text colors
	Text     lipgloss.Color
	TextDim  lipgloss.Color
	TextBold lipgloss.Color
}

// DefaultTheme returns the default color theme.
func DefaultTheme() Theme {
	return Theme{
		Primary:   lipgloss.Color("#7C3AED"), // Purple
		Secondary: lipgloss.Color("#06B6D4"), // Cyan
		Accent:    lipgloss.Color("#F59E0B"), // Amber

		Success: lipgloss.Color("#10B981"), // Emerald
		Warning: lipgloss.Color("#F59E0B"), // Amber
		Error:   lipgloss.Color("#EF4444"), // Red
		Muted:   lipgloss.Color("#6B7280"), // Gray

		Text:     lipgloss.Color("#F9FAFB"), // Near white
		TextDim:  lipgloss.Color("#9CA3AF"), // Gray
		TextBold: lipgloss.Color("#FFFFFF"), // White
	}
}

// Styles contains all the styled components for the UI.
type Styles struct {
	// Header/Banner
	Banner      lipgloss.Style
	BannerTitle lipgloss.Style

	// Input area
	Prompt        lipgloss.Style
	PersonaPrefix lipgloss.Style

	// Messages
	AssistantMessage lipgloss.Style
	Notice           lipgloss.Style
	ErrorPrefix      lipgloss.Style
	ErrorText        lipgloss.Style

	// Confirmation gate
	ICERCBox   lipgloss.Style
	ICERCTitle lipgloss.Style
	ICERCLabel lipgloss.Style
	ICERCValue lipgloss.Style
	RiskLow    lipgloss.Style
	RiskMedium lipgloss.Style
	RiskHigh   lipgloss.Style

	// Selector
	OptionActive   lipgloss.Style
	OptionInactive lipgloss.Style

	// Tool results
	ToolBox      lipgloss.Style
	ToolName     lipgloss.Style
	ToolOutput   lipgloss.Style
	ToolSuccess  lipgloss.Style
	ToolError    lipgloss.Style
	ToolDeclined lipgloss.Style

	// Help
	HelpKey   lipgloss.Style
	HelpValue lipgloss.Style
	HelpBar   lipgloss.Style
}

// NewStyles creates styled components from a theme. Styles are bound to r so
// color output follows the terminal the console writes to.
func NewStyles(r *lipgloss.Renderer, t Theme) Styles {
	return Styles{
		Banner: r.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(t.Primary).
			Padding(0, 2),

		BannerTitle: r.NewStyle().
			Foreground(t.Primary).
			Bold(true),

		Prompt: r.NewStyle().
			Foreground(t.Secondary).
			Bold(true),

		PersonaPrefix: r.NewStyle().
			Foreground(t.Primary).
			Bold(true),

		AssistantMessage: r.NewStyle().
			Foreground(t.Text),

		Notice: r.NewStyle().
			Foreground(t.Muted).
			Italic(true),

		ErrorPrefix: r.NewStyle().
			Foreground(t.Error).
			Bold(true),

		ErrorText: r.NewStyle().
			Foreground(t.TextDim),

		ICERCBox: r.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(t.Accent).
			Padding(0, 1).
			MarginTop(1),

		ICERCTitle: r.NewStyle().
			Foreground(t.Accent).
			Bold(true),

		ICERCLabel: r.NewStyle().
			Foreground(t.Secondary).
			Bold(true).
			Width(18),

		ICERCValue: r.NewStyle().
			Foreground(t.Text),

		RiskLow: r.NewStyle().
			Foreground(t.Success).
			Bold(true),

		RiskMedium: r.NewStyle().
			Foreground(t.Warning).
			Bold(true),

		RiskHigh: r.NewStyle().
			Foreground(t.Error).
			Bold(true),

		OptionActive: r.NewStyle().
			Foreground(t.TextBold).
			Background(t.Primary).
			Bold(true).
			Padding(0, 1),

		OptionInactive: r.NewStyle().
			Foreground(t.TextDim).
			Padding(0, 1),

		ToolBox: r.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(t.Muted).
			Padding(0, 1),

		ToolName: r.NewStyle().
			Foreground(t.Accent).
			Bold(true),

		ToolOutput: r.NewStyle().
			Foreground(t.TextDim),

		ToolSuccess: r.NewStyle().
			Foreground(t.Success).
			Bold(true),

		ToolError: r.NewStyle().
			Foreground(t.Error).
			Bold(true),

		ToolDeclined: r.NewStyle().
			Foreground(t.Warning).
			Bold(true),

		HelpKey: r.NewStyle().
			Foreground(t.Muted),

		HelpValue: r.NewStyle().
			Foreground(t.TextDim),

		HelpBar: r.NewStyle().
			Foreground(t.Muted),
	}
}

// DefaultStyles returns styles with the default theme on the default renderer.
func DefaultStyles() Styles {
	return NewStyles(lipgloss.DefaultRenderer(), DefaultTheme())
}

// Banner returns the startup banner.
func Banner() string {
	return `
  ┏━┓┏━╸╻  ┏━┓╻ ╻
  ┣┳┛┣╸ ┃  ┣━┫┗┳┛
  ╹┗╸┗━╸┗━╸╹ ╹ ╹
  operator-gated model console`
}
