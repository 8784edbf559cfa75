// Package ui renders the conversation to the terminal and reads operator
// input, either line by line or through Bubble Tea prompts.
package ui

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/rtsh13/relay/internal/types"
)

const (
	defaultWidth     = 100
	maxEchoedOutput  = 1500
	noPersonaDisplay = "relay"
)

// ConsoleOptions configures a Console.
type ConsoleOptions struct {
	// Markdown renders assistant text through glamour.
	Markdown bool
	// Width is the wrap width. Zero selects a default.
	Width int
	// Styled selects the dark glamour style instead of plain text output.
	Styled bool
}

// Console writes the conversation to out.
type Console struct {
	mu       sync.Mutex
	out      io.Writer
	styles   Styles
	markdown *glamour.TermRenderer
	persona  string
}

// NewConsole creates a console writing to out.
func NewConsole(out io.Writer, opts ConsoleOptions) *Console {
	width := opts.Width
	if width <= 0 {
		width = defaultWidth
	}

	c := &Console{
		out:     out,
		styles:  NewStyles(lipgloss.NewRenderer(out), DefaultTheme()),
		persona: noPersonaDisplay,
	}

	if opts.Markdown {
		style := glamour.WithStandardStyle("notty")
		if opts.Styled {
			style = glamour.WithAutoStyle()
		}
		if r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width)); err == nil {
			c.markdown = r
		}
	}
	return c
}

// Styles returns the console's styles.
func (c *Console) Styles() Styles {
	return c.styles
}

func (c *Console) println(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, s)
}

// Banner prints the startup banner with a one-line status underneath.
func (c *Console) Banner(status string) {
	c.println(c.styles.BannerTitle.Render(Banner()))
	if status != "" {
		c.println(c.styles.Notice.Render("  " + status))
	}
	c.println("")
}

// SetPersona changes the prefix shown before assistant messages.
func (c *Console) SetPersona(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if name == "" {
		name = noPersonaDisplay
	}
	c.persona = name
}

// Persona returns the current display prefix.
func (c *Console) Persona() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.persona
}

// Assistant prints a model reply under the persona prefix.
func (c *Console) Assistant(text string) {
	body := strings.TrimSpace(text)
	if c.markdown != nil {
		if rendered, err := c.markdown.Render(body); err == nil {
			body = strings.Trim(rendered, "\n")
		}
	}
	prefix := c.styles.PersonaPrefix.Render(c.Persona() + ">")
	c.println(prefix + "\n" + c.styles.AssistantMessage.Render(body) + "\n")
}

// Notice prints an informational line.
func (c *Console) Notice(msg string) {
	c.println(c.styles.Notice.Render(msg))
}

// Error prints a classified error.
func (c *Console) Error(prefix, msg string) {
	c.println(c.styles.ErrorPrefix.Render(prefix+":") + " " + c.styles.ErrorText.Render(msg))
}

// ShowICERC renders the confirmation block for req.
func (c *Console) ShowICERC(req types.ToolRequest) {
	c.println(RenderICERC(c.styles, req))
}

// RenderICERC formats the Intent / Command / Expected outcome / Risk block.
func RenderICERC(s Styles, req types.ToolRequest) string {
	row := func(label, value string) string {
		return lipgloss.JoinHorizontal(lipgloss.Top, s.ICERCLabel.Render(label), s.ICERCValue.Render(value))
	}

	risk := string(req.ICERC.Risk.Level)
	riskLine := riskStyle(s, req.ICERC.Risk.Level).Render(strings.ToUpper(risk))
	if req.ICERC.Risk.Scope != "" {
		riskLine += s.ICERCValue.Render("  scope: " + req.ICERC.Risk.Scope)
	}

	rows := []string{
		s.ICERCTitle.Render(fmt.Sprintf("Tool request: %s", req.ToolName)),
		"",
		row("Intent", req.ICERC.Intent),
		row("Command", req.ICERC.Command),
		row("Expected outcome", req.ICERC.ExpectedOutcome),
		lipgloss.JoinHorizontal(lipgloss.Top, s.ICERCLabel.Render("Risk"), riskLine),
	}
	if req.ICERC.Risk.Details != "" {
		rows = append(rows, row("", req.ICERC.Risk.Details))
	}
	if len(req.Parameters) > 0 {
		rows = append(rows, row("Parameters", formatParams(req.Parameters)))
	}
	rows = append(rows, row("Request id", req.RequestID))

	return s.ICERCBox.Render(strings.Join(rows, "\n"))
}

func riskStyle(s Styles, level types.RiskLevel) lipgloss.Style {
	switch level {
	case types.RiskLow:
		return s.RiskLow
	case types.RiskMedium:
		return s.RiskMedium
	default:
		return s.RiskHigh
	}
}

func formatParams(params map[string]any) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%s = %v", k, params[k]))
	}
	return strings.Join(lines, "\n")
}

// ToolResult echoes a tool result. Used when debug mode is on.
func (c *Console) ToolResult(result types.ToolResult) {
	var status string
	switch result.Status {
	case types.StatusSuccess:
		status = c.styles.ToolSuccess.Render("success")
	case types.StatusDeclined:
		status = c.styles.ToolDeclined.Render("declined")
	default:
		status = c.styles.ToolError.Render("error")
	}

	var b strings.Builder
	b.WriteString(c.styles.ToolName.Render(result.ToolName))
	b.WriteString(" ")
	b.WriteString(status)
	if result.Error != "" {
		b.WriteString("\n")
		b.WriteString(c.styles.ToolError.Render(result.Error))
	}
	if result.Data != nil {
		out := fmt.Sprintf("%v", result.Data)
		if len(out) > maxEchoedOutput {
			out = out[:maxEchoedOutput] + "..."
		}
		b.WriteString("\n")
		b.WriteString(c.styles.ToolOutput.Render(out))
	}
	c.println(c.styles.ToolBox.Render(b.String()))
}

// HelpEntry is one row of the command help.
type HelpEntry struct {
	Command     string
	Description string
}

// Help prints the special command table.
func (c *Console) Help(entries []HelpEntry) {
	width := 0
	for _, e := range entries {
		if len(e.Command) > width {
			width = len(e.Command)
		}
	}
	var b strings.Builder
	for _, e := range entries {
		b.WriteString(c.styles.HelpKey.Render(fmt.Sprintf("  %-*s", width, e.Command)))
		b.WriteString("  ")
		b.WriteString(c.styles.HelpValue.Render(e.Description))
		b.WriteString("\n")
	}
	c.println(strings.TrimRight(b.String(), "\n"))
}
