// Package llm adapts language-model backends to relay's provider-neutral
// message shape. Every adapter returns a conversation text plus at most one
// tool request.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/rtsh13/relay/internal/types"
)

// Provider names.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Adapter sends a conversation to a model backend.
type Adapter interface {
	Send(ctx context.Context, messages []types.ModelMessage, personaID string) (*types.ModelResponse, error)
	Name() string
}

// Pinger is implemented by adapters that can check backend reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config selects and configures an adapter.
type Config struct {
	Provider    string
	Endpoint    string
	Model       string
	APIKey      string
	Temperature float64
	// Timeout bounds each HTTP request. Zero means none.
	Timeout time.Duration

	// ToolsPrompt is the rendered tool catalog for text-protocol adapters.
	ToolsPrompt string
	// Tools describes the catalog for adapters with native function calling.
	Tools []types.ToolInfo
}

// New builds the adapter for cfg.Provider.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (Adapter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("provider", cfg.Provider), zap.String("model", cfg.Model))

	switch cfg.Provider {
	case ProviderOllama, "":
		return NewOllamaClient(cfg, logger), nil
	case ProviderOpenAI:
		return NewOpenAIClient(cfg, logger), nil
	case ProviderGemini:
		return NewGeminiClient(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}
