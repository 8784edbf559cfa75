package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/rtsh13/relay/internal/teps"
	"github.com/rtsh13/relay/internal/types"
)

// Input reads prompts and confirmation answers from the operator.
type Input interface {
	ReadInput(ctx context.Context, prompt string) (string, error)
	Confirm(ctx context.Context, req types.ToolRequest) (teps.Decision, error)
}

// NewInput picks the Bubble Tea prompter when in is an interactive terminal
// and plain is false, and the line prompter otherwise.
func NewInput(in io.Reader, out io.Writer, styles Styles, plain bool) Input {
	if !plain && IsTerminal(in) {
		return NewTeaInput(in, out, styles)
	}
	return NewLineInput(in, out, styles)
}

// IsTerminal reports whether stream is a file attached to a terminal.
func IsTerminal(stream any) bool {
	f, ok := stream.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// TeaInput runs a short-lived Bubble Tea program for every prompt.
type TeaInput struct {
	in     io.Reader
	out    io.Writer
	styles Styles
}

// NewTeaInput creates a Bubble Tea prompter.
func NewTeaInput(in io.Reader, out io.Writer, styles Styles) *TeaInput {
	return &TeaInput{in: in, out: out, styles: styles}
}

func (t *TeaInput) run(ctx context.Context, m tea.Model) (tea.Model, error) {
	p := tea.NewProgram(m,
		tea.WithInput(t.in),
		tea.WithOutput(t.out),
		tea.WithContext(ctx),
	)
	final, err := p.Run()
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, tea.ErrProgramKilled) {
			return nil, ErrInterrupted
		}
		return nil, fmt.Errorf("run prompt: %w", err)
	}
	return final, nil
}

// ReadInput shows a multi-line editor. Enter submits; Alt+Enter or Ctrl+J
// inserts a newline; Ctrl+D on an empty editor ends input.
func (t *TeaInput) ReadInput(ctx context.Context, prompt string) (string, error) {
	final, err := t.run(ctx, newInputModel(t.styles, prompt))
	if err != nil {
		return "", err
	}
	m := final.(inputModel)
	switch {
	case m.interrupted:
		return "", ErrInterrupted
	case m.eof:
		return "", io.EOF
	}
	return m.value, nil
}

// Confirm shows the accept / decline / dry-run selector.
func (t *TeaInput) Confirm(ctx context.Context, req types.ToolRequest) (teps.Decision, error) {
	final, err := t.run(ctx, newConfirmModel(t.styles, req.ToolName))
	if err != nil {
		if errors.Is(err, ErrInterrupted) {
			return teps.Decline, nil
		}
		return teps.Decline, err
	}
	return final.(confirmModel).chosen, nil
}

// inputModel is the Bubble Tea model behind ReadInput.
type inputModel struct {
	textarea    textarea.Model
	styles      Styles
	prompt      string
	value       string
	done        bool
	interrupted bool
	eof         bool
}

func newInputModel(styles Styles, prompt string) inputModel {
	ta := textarea.New()
	ta.Placeholder = "Ask something, or /help for commands"
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.SetHeight(3)
	ta.SetWidth(defaultWidth - 4)
	ta.KeyMap.InsertNewline = key.NewBinding(key.WithKeys("alt+enter", "ctrl+j"))
	ta.Focus()

	return inputModel{textarea: ta, styles: styles, prompt: prompt}
}

func (m inputModel) Init() tea.Cmd {
	return textarea.Blink
}

func (m inputModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			m.interrupted = true
			return m, tea.Quit
		case tea.KeyCtrlD:
			if m.textarea.Value() == "" {
				m.eof = true
				return m, tea.Quit
			}
		case tea.KeyEnter:
			if !msg.Alt {
				m.value = m.textarea.Value()
				m.done = true
				return m, tea.Quit
			}
		}
	case tea.WindowSizeMsg:
		if msg.Width > 8 {
			m.textarea.SetWidth(msg.Width - 4)
		}
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

func (m inputModel) View() string {
	label := m.styles.Prompt.Render(m.prompt)
	if m.done {
		return label + " " + m.value + "\n"
	}
	if m.interrupted || m.eof {
		return label + "\n"
	}

	help := []string{
		m.styles.HelpKey.Render("enter") + m.styles.HelpValue.Render(" send"),
		m.styles.HelpKey.Render("alt+enter") + m.styles.HelpValue.Render(" newline"),
		m.styles.HelpKey.Render("ctrl+d") + m.styles.HelpValue.Render(" quit"),
	}
	return label + "\n" + m.textarea.View() + "\n" + m.styles.HelpBar.Render(strings.Join(help, "  |  ")) + "\n"
}

var confirmOptions = []struct {
	decision teps.Decision
	label    string
}{
	{teps.Accept, "Yes, run it"},
	{teps.Decline, "No"},
	{teps.DryRun, "Dry run"},
}

// confirmModel is the Bubble Tea model behind Confirm. The cursor starts on
// "No".
type confirmModel struct {
	styles Styles
	tool   string
	cursor int
	chosen teps.Decision
	done   bool
}

func newConfirmModel(styles Styles, tool string) confirmModel {
	return confirmModel{styles: styles, tool: tool, cursor: 1, chosen: teps.Decline}
}

func (m confirmModel) Init() tea.Cmd {
	return nil
}

func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch keyMsg.String() {
	case "left", "h", "shift+tab":
		m.cursor = (m.cursor + len(confirmOptions) - 1) % len(confirmOptions)
	case "right", "l", "tab":
		m.cursor = (m.cursor + 1) % len(confirmOptions)
	case "y", "Y":
		return m.choose(teps.Accept)
	case "n", "N", "esc", "ctrl+c":
		return m.choose(teps.Decline)
	case "d", "D":
		return m.choose(teps.DryRun)
	case "enter":
		return m.choose(confirmOptions[m.cursor].decision)
	}
	return m, nil
}

func (m confirmModel) choose(d teps.Decision) (tea.Model, tea.Cmd) {
	m.chosen = d
	m.done = true
	return m, tea.Quit
}

func (m confirmModel) View() string {
	title := m.styles.Prompt.Render(fmt.Sprintf("Run %s?", m.tool))
	if m.done {
		return title + " " + m.chosen.String() + "\n"
	}

	opts := make([]string, len(confirmOptions))
	for i, o := range confirmOptions {
		if i == m.cursor {
			opts[i] = m.styles.OptionActive.Render(o.label)
		} else {
			opts[i] = m.styles.OptionInactive.Render(o.label)
		}
	}
	help := m.styles.HelpBar.Render("y/n/d or ←/→ and enter")
	return title + "  " + strings.Join(opts, " ") + "\n" + help + "\n"
}
