package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/rtsh13/relay/internal/types"
)

const (
	defaultGeminiModel = "gemini-2.5-flash"
	icercArg           = "icerc"
	openingTurn        = "The session has started. Greet the operator briefly and ask what they need."
)

type generateFunc func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)

// GeminiClient uses the Gemini API with native function calling. The ICERC
// block travels as an extra "icerc" argument on every declared function.
type GeminiClient struct {
	model    string
	config   *genai.GenerateContentConfig
	generate generateFunc
	logger   *zap.Logger
}

// NewGeminiClient creates a Gemini adapter.
func NewGeminiClient(ctx context.Context, cfg Config, logger *zap.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.Endpoint != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.Endpoint}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	c := newGeminiClient(cfg, logger)
	c.generate = client.Models.GenerateContent
	return c, nil
}

func newGeminiClient(cfg Config, logger *zap.Logger) *GeminiClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	model := cfg.Model
	if model == "" {
		model = defaultGeminiModel
	}

	genCfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(cfg.Temperature)),
	}
	if decls := functionDeclarations(cfg.Tools); len(decls) > 0 {
		genCfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	return &GeminiClient{model: model, config: genCfg, logger: logger}
}

// Name returns the provider name.
func (c *GeminiClient) Name() string { return ProviderGemini }

// Send calls GenerateContent with the history. System messages are merged
// into the system instruction.
func (c *GeminiClient) Send(ctx context.Context, messages []types.ModelMessage, personaID string) (*types.ModelResponse, error) {
	system, contents := toGeminiContents(messages)

	cfg := *c.config
	if system != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}

	resp, err := c.generate(ctx, c.model, contents, &cfg)
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}

	out, dropped, err := fromGeminiResponse(resp)
	if err != nil {
		return nil, err
	}
	if dropped > 0 {
		c.logger.Warn("Model requested several tools at once; only the first is used",
			zap.String("persona", personaID),
			zap.Int("dropped", dropped))
	}
	return out, nil
}

func toGeminiContents(messages []types.ModelMessage) (string, []*genai.Content) {
	var system []string
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case types.RoleSystem:
			system = append(system, m.Content)
		case types.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		case types.RoleTool:
			contents = append(contents, genai.NewContentFromText(formatToolResult(m), genai.RoleUser))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	if len(contents) == 0 {
		contents = append(contents, genai.NewContentFromText(openingTurn, genai.RoleUser))
	}
	return strings.Join(system, "\n\n"), contents
}

func fromGeminiResponse(resp *genai.GenerateContentResponse) (*types.ModelResponse, int, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, 0, fmt.Errorf("%w: no candidates", types.ErrMalformedResponse)
	}

	out := &types.ModelResponse{Conversation: strings.TrimSpace(resp.Text())}

	calls := resp.FunctionCalls()
	if len(calls) == 0 {
		return out, 0, nil
	}
	out.ToolRequest = toolRequestFromCall(calls[0])
	return out, len(calls) - 1, nil
}

func toolRequestFromCall(call *genai.FunctionCall) *types.ToolRequest {
	id := call.ID
	if id == "" {
		id = uuid.NewString()
	}

	params := make(map[string]any, len(call.Args))
	var icerc map[string]any
	for k, v := range call.Args {
		if k == icercArg {
			icerc, _ = v.(map[string]any)
			continue
		}
		params[k] = v
	}

	str := func(key string) string {
		s, _ := icerc[key].(string)
		return s
	}
	return &types.ToolRequest{
		RequestID:  id,
		ToolName:   call.Name,
		Parameters: params,
		ICERC: types.ICERC{
			Intent:          str("intent"),
			Command:         str("command"),
			ExpectedOutcome: str("expected_outcome"),
			Risk: types.Risk{
				Level:   types.RiskLevel(strings.ToLower(str("risk_level"))),
				Scope:   str("risk_scope"),
				Details: str("risk_details"),
			},
		},
	}
}

func functionDeclarations(tools []types.ToolInfo) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, tool := range tools {
		props := make(map[string]*genai.Schema, len(tool.Parameters)+1)
		required := []string{icercArg}
		for _, p := range tool.Parameters {
			props[p.Name] = &genai.Schema{
				Type:        schemaType(p.Type),
				Description: p.Description,
				Enum:        p.Enum,
			}
			if p.Required {
				required = append(required, p.Name)
			}
		}
		props[icercArg] = icercSchema()

		decls = append(decls, &genai.FunctionDeclaration{
			Name:        tool.Name,
			Description: fmt.Sprintf("%s (baseline risk: %s)", tool.Description, tool.Risk),
			Parameters: &genai.Schema{
				Type:       genai.TypeObject,
				Properties: props,
				Required:   required,
			},
		})
	}
	return decls
}

func icercSchema() *genai.Schema {
	str := func(desc string) *genai.Schema {
		return &genai.Schema{Type: genai.TypeString, Description: desc}
	}
	return &genai.Schema{
		Type:        genai.TypeObject,
		Description: "Shown to the operator, who must approve the call before it runs.",
		Properties: map[string]*genai.Schema{
			"intent":           str("Why you want to run this tool"),
			"command":          str("The operation in one line"),
			"expected_outcome": str("What you expect to get back"),
			"risk_level": {
				Type:        genai.TypeString,
				Description: "Risk of the operation",
				Enum:        []string{string(types.RiskLow), string(types.RiskMedium), string(types.RiskHigh)},
			},
			"risk_scope":   str("What the operation can affect"),
			"risk_details": str("Anything the operator should know before approving"),
		},
		Required: []string{"intent", "expected_outcome", "risk_level"},
	}
}

func schemaType(t string) genai.Type {
	switch t {
	case "int", "integer":
		return genai.TypeInteger
	case "bool", "boolean":
		return genai.TypeBoolean
	case "number", "float":
		return genai.TypeNumber
	default:
		return genai.TypeString
	}
}
