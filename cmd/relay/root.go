package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rtsh13/relay/internal/config"
	"github.com/rtsh13/relay/internal/history"
	"github.com/rtsh13/relay/internal/llm"
	"github.com/rtsh13/relay/internal/logging"
	"github.com/rtsh13/relay/internal/orchestrator"
	"github.com/rtsh13/relay/internal/persona"
	"github.com/rtsh13/relay/internal/pipeline"
	"github.com/rtsh13/relay/internal/teps"
	"github.com/rtsh13/relay/internal/tools"
	"github.com/rtsh13/relay/internal/types"
	"github.com/rtsh13/relay/internal/ui"
)

var (
	configPath   string
	verbose      bool
	personaFlag  string
	providerFlag string
	modelFlag    string
	historyFlag  string
	plainFlag    bool
	debugFlag    bool
)

var rootCmd = &cobra.Command{
	Use:   "relay",
	Short: "Operator-gated model console",
	Long: ui.Banner() + `

  Chat with a local or hosted model. Every tool the model asks for is shown
  as an Intent / Command / Expected outcome / Risk block and runs only after
  you accept it.

Usage:
  relay
  relay --persona forge --provider gemini
  relay --history ~/.relay/history.json`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSession(cmd.Context())
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		if !errors.Is(err, errReported) {
			printError("Error", err)
		}
		os.Exit(1)
	}
}

// errReported marks failures that were already shown to the operator.
var errReported = errors.New("reported")

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	rootCmd.Flags().StringVar(&personaFlag, "persona", "", "Starting persona (overrides personas.default)")
	rootCmd.Flags().StringVar(&providerFlag, "provider", "", "Model provider: ollama, openai or gemini")
	rootCmd.Flags().StringVar(&modelFlag, "model", "", "Model name")
	rootCmd.Flags().StringVar(&historyFlag, "history", "", "History snapshot file, loaded at start and saved on exit")
	rootCmd.Flags().BoolVar(&plainFlag, "plain", false, "Use line-mode input instead of the interactive prompt")
	rootCmd.Flags().BoolVar(&debugFlag, "debug", false, "Start in debug mode")

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(personasCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(versionCmd)
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.Load(configPath)
	}
	return config.LoadFromPaths(config.DefaultPaths()...)
}

func loadCatalog(cfg *config.Config) (*persona.Catalog, error) {
	return persona.Load(cfg.Personas.Path)
}

func applyFlags(cfg *config.Config) {
	if personaFlag != "" {
		cfg.Personas.Default = personaFlag
	}
	if providerFlag != "" {
		cfg.LLM.Provider = providerFlag
	}
	if modelFlag != "" {
		cfg.LLM.Model = modelFlag
	}
	if historyFlag != "" {
		cfg.History.SnapshotPath = historyFlag
	}
	if plainFlag {
		cfg.UI.Plain = true
	}
}

// runSession wires the components together and runs the conversation loop
// until the operator quits.
func runSession(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		printError("Could not load config", err)
		return errReported
	}
	applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		printError("Invalid configuration", err)
		return errReported
	}

	logger, err := logging.New(cfg.Logging, verbose)
	if err != nil {
		printError("Could not set up logging", err)
		return errReported
	}
	defer func() { _ = logger.Sync() }()

	sess, err := newSession(ctx, cfg, os.Stdin, os.Stdout, logger)
	if err != nil {
		return fatal(err)
	}
	orch, console := sess.orch, sess.console

	console.Banner(fmt.Sprintf("%s · %s · persona %s · /help for commands", sess.adapter.Name(), cfg.LLM.Model, sess.persona))
	checkBackend(ctx, sess.adapter, cfg, console, logger)

	if err := orch.Initialize(ctx); err != nil {
		console.Error(types.Classify(err).Prefix, err.Error())
		return errReported
	}
	defer func() {
		if err := orch.Shutdown(); err != nil {
			console.Error("History", err.Error())
		}
	}()

	if err := orch.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Session ended with error", zap.Error(err))
		return err
	}
	return nil
}

// session holds the wired components of one conversation.
type session struct {
	orch    *orchestrator.Orchestrator
	adapter llm.Adapter
	console *ui.Console
	persona persona.ID
}

// newSession builds every component from cfg, reading operator input from
// in and writing the conversation to out.
func newSession(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer, logger *zap.Logger) (*session, error) {
	catalog, err := loadCatalog(cfg)
	if err != nil {
		return nil, &types.ComponentInitializationError{Component: "personas", Err: err}
	}
	personaID := catalog.Default()
	if cfg.Personas.Default != "" {
		if personaID, err = catalog.Resolve(cfg.Personas.Default); err != nil {
			return nil, &types.ComponentInitializationError{Component: "personas", Err: err}
		}
	}

	registry, err := tools.NewBuiltinRegistry(tools.Options{
		WorkDir:        cfg.Tools.WorkDir,
		Shell:          cfg.Tools.Shell,
		CommandTimeout: cfg.Tools.CommandTimeout(),
	})
	if err != nil {
		return nil, &types.ComponentInitializationError{Component: "tools", Err: err}
	}

	adapter, err := llm.New(ctx, llm.Config{
		Provider:    cfg.LLM.Provider,
		Endpoint:    cfg.LLM.Endpoint,
		Model:       cfg.LLM.Model,
		APIKey:      cfg.LLM.APIKey,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout(),
		ToolsPrompt: registry.GenerateToolsPrompt(),
		Tools:       registry.ListTools(),
	}, logger)
	if err != nil {
		return nil, &types.ComponentInitializationError{Component: "model adapter", Err: err}
	}

	console := ui.NewConsole(out, ui.ConsoleOptions{
		Markdown: cfg.UI.Markdown,
		Styled:   ui.IsTerminal(out),
	})
	input := ui.NewInput(in, out, console.Styles(), cfg.UI.Plain)

	gate := teps.New(registry, console, input, teps.Options{AllowDryRun: cfg.Tools.AllowDryRun}, logger)
	store := history.NewStore(history.Config{
		MaxLength:                cfg.History.MaxLength,
		PruningStrategy:          cfg.History.PruningStrategy,
		PrioritizeSystemMessages: cfg.History.PrioritizeSystemMessages,
	})

	orch := orchestrator.New(orchestrator.Deps{
		Model:    adapter,
		Context:  catalog,
		Pipeline: pipeline.New(gate, logger),
		History:  store,
		Display:  console,
		Input:    input,
		Logger:   logger,
	}, orchestrator.Options{
		Persona:           string(personaID),
		SnapshotPath:      cfg.History.SnapshotPath,
		MaxToolIterations: cfg.Tools.MaxToolIterations,
		MaxInputLength:    cfg.UI.MaxInputLength,
		Debug:             debugFlag,
	})

	return &session{orch: orch, adapter: adapter, console: console, persona: personaID}, nil
}

// checkBackend warns when the model backend cannot be reached. The session
// still starts so the operator can fix the backend and retry.
func checkBackend(ctx context.Context, adapter llm.Adapter, cfg *config.Config, console *ui.Console, logger *zap.Logger) {
	pinger, ok := adapter.(llm.Pinger)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pinger.Ping(ctx); err != nil {
		logger.Warn("Model backend unreachable", zap.String("endpoint", cfg.LLM.Endpoint), zap.Error(err))
		console.Error("Warning", fmt.Sprintf("could not reach %s at %s", adapter.Name(), cfg.LLM.Endpoint))
		if adapter.Name() == llm.ProviderOllama {
			console.Notice("Make sure Ollama is running:  ollama serve")
		}
	}
}

func fatal(err error) error {
	printError(types.Classify(err).Prefix, err)
	return errReported
}

func printError(msg string, err error) {
	fmt.Fprintln(os.Stderr, lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).
		Render(fmt.Sprintf("%s: %v", msg, err)))
}
