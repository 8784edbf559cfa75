// Package orchestrator runs the conversation loop: it calls the model with
// the current history, routes tool requests through the confirmation
// pipeline, reads operator input and handles special commands.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/rtsh13/relay/internal/history"
	"github.com/rtsh13/relay/internal/pipeline"
	"github.com/rtsh13/relay/internal/types"
	"github.com/rtsh13/relay/internal/ui"
	"github.com/rtsh13/relay/internal/validator"
)

const (
	// DefaultMaxToolIterations bounds consecutive tool turns without input.
	DefaultMaxToolIterations = 10

	fallbackMessage = "I could not produce a response just now. Please try again or rephrase your request."
	interruptHint   = "Interrupted. Type /quit to exit."
)

// ModelAdapter sends the model-shaped history to a model backend.
type ModelAdapter interface {
	Send(ctx context.Context, messages []types.ModelMessage, personaID string) (*types.ModelResponse, error)
}

// ContextProvider supplies the initial prompt and the persona catalog.
type ContextProvider interface {
	InitialPrompt() string
	Personas() map[string]string
}

// ToolPipeline gates and runs tool requests.
type ToolPipeline interface {
	Process(ctx context.Context, req types.ToolRequest) (types.ToolResult, error)
}

// Display renders the conversation.
type Display interface {
	Assistant(text string)
	Notice(msg string)
	Error(prefix, msg string)
	ToolResult(result types.ToolResult)
	Help(entries []ui.HelpEntry)
	SetPersona(name string)
}

// Input reads operator input. io.EOF ends the session; ui.ErrInterrupted
// re-prompts.
type Input interface {
	ReadInput(ctx context.Context, prompt string) (string, error)
}

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Model    ModelAdapter
	Context  ContextProvider
	Pipeline ToolPipeline
	History  *history.Store
	Display  Display
	Input    Input
	Logger   *zap.Logger
}

// Options tune an Orchestrator.
type Options struct {
	// Persona is the starting persona. Empty selects the first id in sorted
	// order.
	Persona string
	// SnapshotPath is loaded on Initialize and written on Shutdown when set.
	SnapshotPath string
	// MaxToolIterations bounds consecutive tool turns.
	MaxToolIterations int
	// Debug starts the session with tool results echoed.
	Debug bool
	// MaxInputLength bounds one operator message in characters.
	MaxInputLength int
	// TurnContext derives the context for one turn or prompt. The default
	// cancels it on SIGINT so an interrupt ends the turn, not the process.
	TurnContext func(ctx context.Context) (context.Context, context.CancelFunc)
}

type step int

const (
	stepModel step = iota
	stepInput
	stepQuit
)

// Orchestrator owns the session state and drives the loop.
type Orchestrator struct {
	model    ModelAdapter
	context  ContextProvider
	pipeline ToolPipeline
	history  *history.Store
	display  Display
	input    Input
	logger   *zap.Logger
	opts     Options
	inputs   *validator.InputValidator

	mu    sync.Mutex
	phase types.Phase
	state types.SessionState

	toolRuns int
}

// New creates an orchestrator. Nothing is loaded until Initialize.
func New(deps Deps, opts Options) *Orchestrator {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.History == nil {
		deps.History = history.NewStore(history.DefaultConfig())
	}
	if opts.MaxToolIterations <= 0 {
		opts.MaxToolIterations = DefaultMaxToolIterations
	}
	if opts.TurnContext == nil {
		opts.TurnContext = func(ctx context.Context) (context.Context, context.CancelFunc) {
			return signal.NotifyContext(ctx, os.Interrupt)
		}
	}

	return &Orchestrator{
		model:    deps.Model,
		context:  deps.Context,
		pipeline: deps.Pipeline,
		history:  deps.History,
		display:  deps.Display,
		input:    deps.Input,
		logger:   deps.Logger,
		opts:     opts,
		inputs:   validator.NewInputValidator(opts.MaxInputLength),
		phase:    types.PhaseInitializing,
		state:    types.SessionState{DebugMode: opts.Debug},
	}
}

// Phase returns the current loop phase.
func (o *Orchestrator) Phase() types.Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase
}

// State returns a copy of the session state.
func (o *Orchestrator) State() types.SessionState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) setPhase(p types.Phase) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.phase = p
}

// Initialize validates the persona, restores the history snapshot and seeds
// the system messages. Every failure is a *types.ComponentInitializationError.
func (o *Orchestrator) Initialize(ctx context.Context) error {
	if o.Phase() != types.PhaseInitializing {
		return &types.ComponentInitializationError{Component: "orchestrator", Err: errors.New("already initialized")}
	}

	switch {
	case o.model == nil:
		return &types.ComponentInitializationError{Component: "model adapter", Err: errors.New("not configured")}
	case o.context == nil:
		return &types.ComponentInitializationError{Component: "context provider", Err: errors.New("not configured")}
	case o.pipeline == nil:
		return &types.ComponentInitializationError{Component: "tool pipeline", Err: errors.New("not configured")}
	case o.display == nil || o.input == nil:
		return &types.ComponentInitializationError{Component: "console", Err: errors.New("display and input are required")}
	}
	if err := ctx.Err(); err != nil {
		return &types.ComponentInitializationError{Component: "orchestrator", Err: err}
	}

	personas := o.context.Personas()
	if len(personas) == 0 {
		return &types.ComponentInitializationError{Component: "context provider", Err: errors.New("no personas available")}
	}
	persona := strings.TrimSpace(o.opts.Persona)
	if persona == "" {
		persona = personaIDs(personas)[0]
	}
	text, ok := personas[persona]
	if !ok {
		return &types.ComponentInitializationError{
			Component: "persona",
			Err:       fmt.Errorf("unknown persona %q (known: %s)", persona, strings.Join(personaIDs(personas), ", ")),
		}
	}

	if o.opts.SnapshotPath != "" {
		if err := o.history.LoadFile(o.opts.SnapshotPath); err != nil {
			return &types.ComponentInitializationError{Component: "history", Err: err}
		}
	}

	if err := o.seedHistory(persona, text); err != nil {
		return &types.ComponentInitializationError{Component: "history", Err: err}
	}

	o.mu.Lock()
	o.state.ActivePersonaID = persona
	o.state.Running = true
	o.phase = types.PhaseRunning
	o.mu.Unlock()

	o.display.SetPersona(persona)
	o.logger.Info("Session initialized",
		zap.String("persona", persona),
		zap.Int("messages", o.history.Len()),
		zap.Bool("debug", o.opts.Debug))
	return nil
}

// Run drives the loop until quit, end of input or ctx cancellation. Errors
// inside a turn are reported and the loop continues.
func (o *Orchestrator) Run(ctx context.Context) error {
	if o.Phase() != types.PhaseRunning {
		return errors.New("orchestrator is not initialized")
	}

	next := stepModel
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if next == stepQuit || !o.State().Running {
			return nil
		}
		next = o.runStep(ctx, next)
	}
}

// runStep runs one turn or prompt under its own cancellable context and
// catches everything it raises.
func (o *Orchestrator) runStep(parent context.Context, s step) (next step) {
	ctx, cancel := o.opts.TurnContext(parent)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("Panic during turn", zap.Any("panic", r), zap.Stack("stack"))
			o.report(fmt.Errorf("panic during turn: %v", r))
			next = stepInput
		}
	}()

	var err error
	switch s {
	case stepModel:
		next, err = o.modelTurn(ctx)
	default:
		next, err = o.inputTurn(ctx)
	}

	if parent.Err() == nil && ctx.Err() != nil {
		o.logger.Info("Turn interrupted")
		o.display.Notice(interruptHint)
		return stepInput
	}
	if err != nil {
		o.report(err)
	}
	return next
}

func (o *Orchestrator) modelTurn(ctx context.Context) (step, error) {
	o.setPhase(types.PhaseRunning)
	state := o.State()

	resp, err := o.model.Send(ctx, o.history.ModelView(history.Query{}), state.ActivePersonaID)
	var turnErr error
	switch {
	case err != nil:
		if ctx.Err() != nil {
			return stepInput, nil
		}
		turnErr = &types.ModelCommunicationError{Provider: providerName(o.model), Err: err}
		resp = &types.ModelResponse{Conversation: fallbackMessage}
	case malformed(resp):
		o.logger.Warn("Malformed model response replaced with fallback")
		resp = &types.ModelResponse{Conversation: fallbackMessage}
	}

	if turnErr != nil {
		o.report(turnErr)
	}

	if resp.ToolRequest != nil {
		if text := strings.TrimSpace(resp.Conversation); text != "" {
			if err := o.appendMessage(types.Message{Role: types.RoleAssistant, Content: text}); err != nil {
				return stepInput, err
			}
			o.display.Assistant(text)
		}
		return o.toolTurn(ctx, *resp.ToolRequest)
	}

	o.toolRuns = 0
	if err := o.appendMessage(types.Message{Role: types.RoleAssistant, Content: resp.Conversation}); err != nil {
		return stepInput, err
	}
	o.display.Assistant(resp.Conversation)
	return stepInput, nil
}

func malformed(resp *types.ModelResponse) bool {
	return resp == nil || (resp.ToolRequest == nil && strings.TrimSpace(resp.Conversation) == "")
}

func providerName(m ModelAdapter) string {
	if n, ok := m.(interface{ Name() string }); ok {
		return n.Name()
	}
	return ""
}

func (o *Orchestrator) toolTurn(ctx context.Context, req types.ToolRequest) (step, error) {
	o.setPhase(types.PhaseToolSubloop)

	result, procErr := o.pipeline.Process(ctx, req)
	if procErr != nil {
		o.report(procErr)
	}

	if err := o.appendMessage(pipeline.FormatAsMessage(result)); err != nil {
		return stepInput, err
	}
	if o.State().DebugMode {
		o.display.ToolResult(result)
	}

	o.toolRuns++
	if o.toolRuns >= o.opts.MaxToolIterations {
		o.logger.Warn("Tool iteration limit reached", zap.Int("limit", o.opts.MaxToolIterations))
		o.display.Notice(fmt.Sprintf("Stopped after %d consecutive tool calls. Reply to let the model continue.", o.toolRuns))
		o.toolRuns = 0
		return stepInput, nil
	}
	return stepModel, nil
}

func (o *Orchestrator) inputTurn(ctx context.Context) (step, error) {
	o.setPhase(types.PhaseAwaitingInput)

	line, err := o.input.ReadInput(ctx, o.State().ActivePersonaID+">")
	switch {
	case errors.Is(err, io.EOF):
		o.stop()
		return stepQuit, nil
	case errors.Is(err, ui.ErrInterrupted):
		o.display.Notice(interruptHint)
		return stepInput, nil
	case err != nil:
		o.stop()
		return stepQuit, fmt.Errorf("read input: %w", err)
	}

	text := strings.TrimSpace(line)
	if text == "" {
		return stepInput, nil
	}
	if name, arg, ok := parseCommand(text); ok {
		return o.handleCommand(name, arg)
	}

	text = o.inputs.Sanitize(line)
	if err := o.inputs.Validate(text); err != nil {
		return stepInput, &types.UserInputError{Hint: err.Error()}
	}
	if err := o.appendMessage(types.Message{Role: types.RoleUser, Content: text}); err != nil {
		return stepInput, err
	}
	cfg := o.history.Config()
	if cfg.PruningStrategy != history.StrategyNone {
		if n := o.history.Prune(cfg.PrioritizeSystemMessages); n > 0 {
			o.logger.Debug("History pruned", zap.Int("dropped", n))
		}
	}
	o.toolRuns = 0
	return stepModel, nil
}

func (o *Orchestrator) appendMessage(msg types.Message) error {
	if _, err := o.history.Append(msg); err != nil {
		return fmt.Errorf("append %s message: %w", msg.Role, err)
	}
	return nil
}

func (o *Orchestrator) stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state.Running = false
}

// report classifies err and shows it. Internal detail stays in the log
// unless debug mode is on.
func (o *Orchestrator) report(err error) {
	c := types.Classify(err)
	o.logger.Error("Turn error", zap.String("class", c.Prefix), zap.Error(err))

	msg := summary(err)
	if o.State().DebugMode {
		msg = err.Error()
	}
	o.display.Error(c.Prefix, msg)
}

func summary(err error) string {
	var (
		inputErr      *types.UserInputError
		validationErr *types.ValidationError
		toolErr       *types.ToolExecutionError
		modelErr      *types.ModelCommunicationError
	)
	switch {
	case errors.As(err, &inputErr):
		return inputErr.Error()
	case errors.As(err, &validationErr):
		return validationErr.Error()
	case errors.As(err, &toolErr):
		return fmt.Sprintf("%s could not run; the failure was reported to the model.", toolErr.Result.ToolName)
	case errors.As(err, &modelErr):
		return "the model could not be reached. See the log for details."
	default:
		return "unexpected failure. See the log for details."
	}
}

// Shutdown stops the loop and writes the history snapshot. It is safe to
// call more than once.
func (o *Orchestrator) Shutdown() error {
	o.mu.Lock()
	if o.phase == types.PhaseShuttingDown || o.phase == types.PhaseStopped {
		o.mu.Unlock()
		return nil
	}
	initialized := o.phase != types.PhaseInitializing
	o.phase = types.PhaseShuttingDown
	o.state.Running = false
	o.mu.Unlock()

	var err error
	if initialized && o.opts.SnapshotPath != "" {
		if err = o.history.SaveFile(o.opts.SnapshotPath); err != nil {
			o.logger.Error("Failed to save history", zap.String("path", o.opts.SnapshotPath), zap.Error(err))
			err = fmt.Errorf("save history: %w", err)
		} else {
			o.logger.Info("History saved", zap.String("path", o.opts.SnapshotPath), zap.Int("messages", o.history.Len()))
		}
	}

	o.setPhase(types.PhaseStopped)
	o.logger.Info("Session stopped")
	return err
}

func personaIDs(personas map[string]string) []string {
	ids := make([]string, 0, len(personas))
	for id := range personas {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

const identityPrefix = "Your active persona is "

func identityMessage(id, text string) string {
	return fmt.Sprintf(identityPrefix+"%q. Follow only this persona's instructions and ignore any earlier persona.\n\n%s", id, text)
}

// seedHistory makes sure the history speaks for persona. An empty history
// gets the identity and the initial prompt. Restored history that was
// recorded under another persona is discarded the same way a persona switch
// discards it, so the model never sees two identities.
func (o *Orchestrator) seedHistory(persona, text string) error {
	restored, found := restoredPersona(o.history.Messages(history.Query{Include: []types.Role{types.RoleSystem}}))
	switch {
	case o.history.Len() > 0 && !found:
		return o.appendMessage(types.Message{Role: types.RoleSystem, Content: identityMessage(persona, text)})
	case o.history.Len() > 0 && restored == persona:
		return nil
	case o.history.Len() > 0:
		o.logger.Info("Restored history belongs to another persona",
			zap.String("restored", restored), zap.String("persona", persona))
		o.history.Clear(false)
		o.display.Notice(fmt.Sprintf("Saved conversation was with persona %s. Starting fresh as %s.", restored, persona))
	}

	if err := o.appendMessage(types.Message{Role: types.RoleSystem, Content: identityMessage(persona, text)}); err != nil {
		return err
	}
	if prompt := strings.TrimSpace(o.context.InitialPrompt()); prompt != "" {
		return o.appendMessage(types.Message{Role: types.RoleSystem, Content: prompt})
	}
	return nil
}

// restoredPersona returns the persona named by the newest identity message.
func restoredPersona(system []types.Message) (string, bool) {
	for i := len(system) - 1; i >= 0; i-- {
		rest, ok := strings.CutPrefix(system[i].Content, identityPrefix)
		if !ok {
			continue
		}
		quoted, err := strconv.QuotedPrefix(rest)
		if err != nil {
			continue
		}
		if id, err := strconv.Unquote(quoted); err == nil {
			return id, true
		}
	}
	return "", false
}
