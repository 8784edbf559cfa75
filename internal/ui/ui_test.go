package ui

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rtsh13/relay/internal/teps"
	"github.com/rtsh13/relay/internal/types"
)

func sampleRequest() types.ToolRequest {
	return types.ToolRequest{
		RequestID:  "req-1",
		ToolName:   "writeFile",
		Parameters: map[string]any{"path": "notes.txt", "content": "hi"},
		ICERC: types.ICERC{
			Intent:          "save the notes",
			Command:         "writeFile notes.txt",
			ExpectedOutcome: "notes.txt exists",
			Risk:            types.Risk{Level: types.RiskMedium, Scope: "notes.txt", Details: "overwrites the file"},
		},
	}
}

func TestBanner(t *testing.T) {
	if !strings.Contains(Banner(), "operator-gated") {
		t.Error("Banner should contain the tagline")
	}
}

func TestConsole_ShowICERC(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, ConsoleOptions{})

	c.ShowICERC(sampleRequest())

	out := buf.String()
	for _, want := range []string{"Tool request: writeFile", "save the notes", "writeFile notes.txt", "notes.txt exists", "MEDIUM", "scope: notes.txt", "overwrites the file", "path = notes.txt", "req-1"} {
		assert.Contains(t, out, want)
	}
}

func TestConsole_PersonaPrefix(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, ConsoleOptions{})

	c.Assistant("hello")
	assert.Contains(t, buf.String(), "relay>")

	buf.Reset()
	c.SetPersona("forge")
	c.Assistant("hello")
	assert.Contains(t, buf.String(), "forge>")
	assert.Contains(t, buf.String(), "hello")
}

func TestConsole_MarkdownAssistant(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, ConsoleOptions{Markdown: true, Width: 60})

	c.Assistant("# Plan\n\n- **first** step")
	out := buf.String()
	assert.Contains(t, out, "Plan")
	assert.Contains(t, out, "first")
	assert.NotContains(t, out, "**first**")
}

func TestConsole_ToolResultAndErrors(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, ConsoleOptions{})

	c.ToolResult(types.ToolResult{ToolName: "readFile", Status: types.StatusDeclined, Data: "no action"})
	c.Error("Model error", "connection refused")
	c.Help([]HelpEntry{{"/quit", "leave"}, {"/persona <id>", "switch persona"}})

	out := buf.String()
	for _, want := range []string{"readFile", "declined", "no action", "Model error:", "connection refused", "/persona <id>", "switch persona"} {
		assert.Contains(t, out, want)
	}
}

func TestLineInput_ReadInput(t *testing.T) {
	in := strings.NewReader("hello\n\"\"\"\nline one\nline two\n\"\"\"\nlast")
	l := NewLineInput(in, io.Discard, DefaultStyles())
	ctx := context.Background()

	got, err := l.ReadInput(ctx, ">")
	require.NoError(t, err)
	assert.Equal(t, "hello", got)

	got, err = l.ReadInput(ctx, ">")
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two", got)

	got, err = l.ReadInput(ctx, ">")
	require.NoError(t, err)
	assert.Equal(t, "last", got)

	_, err = l.ReadInput(ctx, ">")
	assert.ErrorIs(t, err, io.EOF)
}

func TestLineInput_CancelledContext(t *testing.T) {
	l := NewLineInput(strings.NewReader("hi\n"), io.Discard, DefaultStyles())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := l.ReadInput(ctx, ">")
	assert.True(t, errors.Is(err, ErrInterrupted))
}

func TestLineInput_Confirm(t *testing.T) {
	var out bytes.Buffer
	l := NewLineInput(strings.NewReader("maybe\nD\ny\nno\n"), &out, DefaultStyles())
	ctx := context.Background()
	req := sampleRequest()

	d, err := l.Confirm(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, teps.DryRun, d)
	assert.Contains(t, out.String(), "Please answer y, n or d.")

	d, err = l.Confirm(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, teps.Accept, d)

	d, err = l.Confirm(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, teps.Decline, d)

	_, err = l.Confirm(ctx, req)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestNewInput_FallsBackToLineMode(t *testing.T) {
	in := NewInput(strings.NewReader(""), io.Discard, DefaultStyles(), false)
	_, ok := in.(*LineInput)
	assert.True(t, ok, "a non-terminal reader must use line mode")
}

func typeRunes(m tea.Model, s string) tea.Model {
	for _, r := range s {
		m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return m
}

func TestInputModel(t *testing.T) {
	var m tea.Model = newInputModel(DefaultStyles(), "forge>")

	m = typeRunes(m, "first")
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter, Alt: true})
	m = typeRunes(m, "second")
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	im := m.(inputModel)
	assert.True(t, im.done)
	assert.Equal(t, "first\nsecond", im.value)
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestInputModel_CtrlKeys(t *testing.T) {
	m, _ := newInputModel(DefaultStyles(), ">").Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	assert.True(t, m.(inputModel).interrupted)

	m, _ = newInputModel(DefaultStyles(), ">").Update(tea.KeyMsg{Type: tea.KeyCtrlD})
	assert.True(t, m.(inputModel).eof)

	var typed tea.Model = newInputModel(DefaultStyles(), ">")
	typed = typeRunes(typed, "x")
	typed, _ = typed.Update(tea.KeyMsg{Type: tea.KeyCtrlD})
	assert.False(t, typed.(inputModel).eof, "ctrl+d only ends input on an empty editor")
}

func TestConfirmModel(t *testing.T) {
	tests := []struct {
		name string
		keys []tea.KeyMsg
		want teps.Decision
	}{
		{"shortcut yes", []tea.KeyMsg{{Type: tea.KeyRunes, Runes: []rune{'y'}}}, teps.Accept},
		{"shortcut dry run", []tea.KeyMsg{{Type: tea.KeyRunes, Runes: []rune{'d'}}}, teps.DryRun},
		{"enter defaults to no", []tea.KeyMsg{{Type: tea.KeyEnter}}, teps.Decline},
		{"left then enter", []tea.KeyMsg{{Type: tea.KeyLeft}, {Type: tea.KeyEnter}}, teps.Accept},
		{"right then enter", []tea.KeyMsg{{Type: tea.KeyRight}, {Type: tea.KeyEnter}}, teps.DryRun},
		{"ctrl+c declines", []tea.KeyMsg{{Type: tea.KeyCtrlC}}, teps.Decline},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m tea.Model = newConfirmModel(DefaultStyles(), "writeFile")
			for _, k := range tt.keys {
				m, _ = m.Update(k)
			}
			cm := m.(confirmModel)
			assert.True(t, cm.done)
			assert.Equal(t, tt.want, cm.chosen)
		})
	}
}
