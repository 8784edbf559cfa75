package orchestrator

import (
	"fmt"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/rtsh13/relay/internal/types"
	"github.com/rtsh13/relay/internal/ui"
)

var helpEntries = []ui.HelpEntry{
	{Command: "/help", Description: "Show this help"},
	{Command: "/quit, /exit", Description: "End the session"},
	{Command: "/clear", Description: "Clear the conversation, keeping system messages"},
	{Command: "/system <text>", Description: "Add a system message"},
	{Command: "/debug [on|off]", Description: "Toggle echoing of tool results"},
	{Command: "/persona <id>", Description: "Switch persona and reset the conversation"},
	{Command: "/personas", Description: "List available personas"},
	{Command: "/history", Description: "Show history size and bound"},
}

var commands = map[string]bool{
	"/help": true, "/quit": true, "/exit": true, "/clear": true, "/system": true,
	"/debug": true, "/persona": true, "/personas": true, "/history": true,
}

// parseCommand splits text into a command name and its argument. ok is false
// when the first word is not a known command, so text such as a file path is
// treated as an ordinary message.
func parseCommand(text string) (name, arg string, ok bool) {
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	name = text
	if i := strings.IndexFunc(text, unicode.IsSpace); i >= 0 {
		name, arg = text[:i], strings.TrimSpace(text[i:])
	}
	name = strings.ToLower(name)
	return name, arg, commands[name]
}

// handleCommand runs a special command. Every command except quit hands the
// turn back to the model; a malformed one waits for input again.
func (o *Orchestrator) handleCommand(name, arg string) (step, error) {
	o.logger.Debug("Special command", zap.String("command", name))

	switch name {
	case "/help":
		o.display.Help(helpEntries)
		return stepModel, nil

	case "/quit", "/exit":
		o.stop()
		o.display.Notice("Goodbye.")
		return stepQuit, nil

	case "/clear":
		o.history.Clear(true)
		o.toolRuns = 0
		o.display.Notice("Conversation cleared. System messages were kept.")
		return stepModel, nil

	case "/system":
		if arg == "" {
			return stepInput, &types.UserInputError{Command: name, Hint: "usage: /system <text>"}
		}
		if err := o.appendMessage(types.Message{Role: types.RoleSystem, Content: arg}); err != nil {
			return stepInput, err
		}
		o.display.Notice("System message added.")
		return stepModel, nil

	case "/debug":
		return o.toggleDebug(arg)

	case "/persona":
		if arg == "" {
			return stepInput, &types.UserInputError{
				Command: name,
				Hint:    "usage: /persona <id> (known: " + strings.Join(personaIDs(o.context.Personas()), ", ") + ")",
			}
		}
		if err := o.switchPersona(arg); err != nil {
			return stepInput, err
		}
		return stepModel, nil

	case "/personas":
		o.listPersonas()
		return stepModel, nil

	case "/history":
		cfg := o.history.Config()
		o.display.Notice(fmt.Sprintf("%d messages in history (max %d, pruning %s, keep system %t).",
			o.history.Len(), cfg.MaxLength, cfg.PruningStrategy, cfg.PrioritizeSystemMessages))
		return stepModel, nil
	}
	return stepInput, fmt.Errorf("unhandled command %s", name)
}

func (o *Orchestrator) toggleDebug(arg string) (step, error) {
	o.mu.Lock()
	switch strings.ToLower(arg) {
	case "":
		o.state.DebugMode = !o.state.DebugMode
	case "on":
		o.state.DebugMode = true
	case "off":
		o.state.DebugMode = false
	default:
		o.mu.Unlock()
		return stepInput, &types.UserInputError{Command: "/debug", Hint: "usage: /debug [on|off]"}
	}
	on := o.state.DebugMode
	o.mu.Unlock()

	if on {
		o.display.Notice("Debug mode on. Tool results will be shown.")
	} else {
		o.display.Notice("Debug mode off.")
	}
	return stepModel, nil
}

// switchPersona fully resets the conversation and reasserts the new
// persona's identity in a single system message. An unknown id leaves the
// session untouched.
func (o *Orchestrator) switchPersona(id string) error {
	personas := o.context.Personas()
	text, ok := personas[id]
	if !ok {
		return &types.UserInputError{
			Command: "/persona",
			Hint:    fmt.Sprintf("unknown persona %q (known: %s)", id, strings.Join(personaIDs(personas), ", ")),
		}
	}

	previous := o.State().ActivePersonaID
	o.history.Clear(false)
	o.toolRuns = 0

	o.mu.Lock()
	o.state.ActivePersonaID = id
	o.mu.Unlock()

	if err := o.appendMessage(types.Message{Role: types.RoleSystem, Content: identityMessage(id, text)}); err != nil {
		return err
	}
	o.display.SetPersona(id)
	o.display.Notice(fmt.Sprintf("Switched to persona %s. The conversation was reset.", id))

	o.logger.Info("Persona switched", zap.String("from", previous), zap.String("to", id))
	return nil
}

func (o *Orchestrator) listPersonas() {
	active := o.State().ActivePersonaID
	var b strings.Builder
	b.WriteString("Personas:")
	for _, id := range personaIDs(o.context.Personas()) {
		marker := "  "
		if id == active {
			marker = "* "
		}
		b.WriteString("\n  " + marker + id)
	}
	o.display.Notice(b.String())
}
