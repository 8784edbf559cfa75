package tools

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rtsh13/relay/internal/types"
)

// MockTool for testing the framework
type MockTool struct {
	name     string
	params   []types.Parameter
	execFunc func(ctx context.Context, params map[string]any) (any, error)
}

func (m *MockTool) Name() string                  { return m.name }
func (m *MockTool) Description() string           { return "mock " + m.name }
func (m *MockTool) Parameters() []types.Parameter { return m.params }
func (m *MockTool) Risk() types.RiskLevel         { return types.RiskLow }
func (m *MockTool) Execute(ctx context.Context, params map[string]any) (any, error) {
	if m.execFunc != nil {
		return m.execFunc(ctx, params)
	}
	return "mock output", nil
}

func TestRegistry_Register(t *testing.T) {
	registry := NewRegistry()
	tool := &MockTool{name: "test-tool"}

	if err := registry.Register(tool); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if err := registry.Register(tool); err == nil {
		t.Fatal("expected error for duplicate registration")
	}
}

func TestRegistry_Get(t *testing.T) {
	registry := NewRegistry()
	registry.MustRegister(&MockTool{name: "test-tool"})

	found, ok := registry.Get("test-tool")
	if !ok {
		t.Fatal("expected to find tool")
	}
	if found.Name() != "test-tool" {
		t.Fatalf("expected 'test-tool', got %s", found.Name())
	}

	if _, ok := registry.Get("nonexistent"); ok {
		t.Fatal("expected not to find nonexistent tool")
	}
}

func TestRegistry_ListIsSorted(t *testing.T) {
	registry := NewRegistry()
	registry.MustRegister(&MockTool{name: "tool-b"})
	registry.MustRegister(&MockTool{name: "tool-a"})

	names := registry.List()
	if len(names) != 2 || names[0] != "tool-a" || names[1] != "tool-b" {
		t.Fatalf("expected [tool-a tool-b], got %v", names)
	}

	infos := registry.ListTools()
	if len(infos) != 2 || infos[0].Name != "tool-a" || infos[0].Risk != types.RiskLow {
		t.Fatalf("unexpected tool infos: %+v", infos)
	}
}

func TestRegistry_Execute_Success(t *testing.T) {
	registry := NewRegistry()
	registry.MustRegister(&MockTool{
		name:   "echo",
		params: []types.Parameter{{Name: "message", Type: "string", Required: true}},
		execFunc: func(ctx context.Context, params map[string]any) (any, error) {
			return "Echoed: " + StringParam(params, "message"), nil
		},
	})

	out, err := registry.Execute(context.Background(), "echo", map[string]any{"message": "hello"})
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if out != "Echoed: hello" {
		t.Fatalf("expected 'Echoed: hello', got %v", out)
	}
}

func TestRegistry_Execute_UnknownTool(t *testing.T) {
	registry := NewRegistry()

	_, err := registry.Execute(context.Background(), "nonexistent", map[string]any{})
	if !errors.Is(err, ErrUnknownTool) {
		t.Fatalf("expected ErrUnknownTool, got %v", err)
	}
}

func TestRegistry_Execute_MissingRequiredParam(t *testing.T) {
	registry := NewRegistry()
	called := false
	registry.MustRegister(&MockTool{
		name:   "test",
		params: []types.Parameter{{Name: "required_param", Type: "string", Required: true}},
		execFunc: func(ctx context.Context, params map[string]any) (any, error) {
			called = true
			return nil, nil
		},
	})

	_, err := registry.Execute(context.Background(), "test", map[string]any{})
	if err == nil || !strings.Contains(err.Error(), "required_param") {
		t.Fatalf("expected missing parameter error, got %v", err)
	}
	if called {
		t.Fatal("tool must not run with invalid parameters")
	}
}

func TestRegistry_Execute_AppliesDefaults(t *testing.T) {
	registry := NewRegistry()
	registry.MustRegister(&MockTool{
		name:   "test",
		params: []types.Parameter{{Name: "optional", Type: "string", Default: "default_value"}},
		execFunc: func(ctx context.Context, params map[string]any) (any, error) {
			return params["optional"], nil
		},
	})

	input := map[string]any{}
	out, err := registry.Execute(context.Background(), "test", input)
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if out != "default_value" {
		t.Fatalf("expected 'default_value', got %v", out)
	}
	if _, mutated := input["optional"]; mutated {
		t.Fatal("defaults must not be written into the caller's map")
	}
}

func TestRegistry_Execute_EnumValidation(t *testing.T) {
	registry := NewRegistry()
	registry.MustRegister(&MockTool{
		name:   "test",
		params: []types.Parameter{{Name: "level", Type: "string", Required: true, Enum: []string{"low", "medium", "high"}}},
	})

	if _, err := registry.Execute(context.Background(), "test", map[string]any{"level": "medium"}); err != nil {
		t.Fatalf("expected success for valid enum, got: %v", err)
	}
	if _, err := registry.Execute(context.Background(), "test", map[string]any{"level": "invalid"}); err == nil {
		t.Fatal("expected failure for invalid enum value")
	}
}

func TestGenerateToolsPrompt(t *testing.T) {
	registry := NewRegistry()
	if got := registry.GenerateToolsPrompt(); got != "" {
		t.Fatalf("expected empty prompt for empty registry, got %q", got)
	}

	registry.MustRegister(&MockTool{
		name: "lookup",
		params: []types.Parameter{
			{Name: "host", Type: "string", Description: "target", Required: true},
			{Name: "mode", Type: "string", Description: "how", Enum: []string{"fast", "slow"}, Default: "fast"},
		},
	})

	prompt := registry.GenerateToolsPrompt()
	for _, want := range []string{"### lookup (risk: low)", "host (string): target (required)", "One of: fast, slow", "Default: fast"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestIntParam(t *testing.T) {
	tests := []struct {
		name    string
		value   any
		want    int
		wantErr bool
	}{
		{"absent", nil, 7, false},
		{"json number", float64(42), 42, false},
		{"int", 3, 3, false},
		{"quoted", " 8080 ", 8080, false},
		{"fractional", 1.5, 0, true},
		{"garbage", "abc", 0, true},
		{"wrong type", []string{"1"}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := map[string]any{}
			if tt.value != nil {
				params["n"] = tt.value
			}
			got, err := IntParam(params, "n", 7)
			if (err != nil) != tt.wantErr {
				t.Fatalf("IntParam() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("IntParam() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestNewBuiltinRegistry(t *testing.T) {
	registry, err := NewBuiltinRegistry(Options{WorkDir: t.TempDir()})
	if err != nil {
		t.Fatalf("NewBuiltinRegistry: %v", err)
	}

	for _, name := range []string{"readFile", "writeFile", "listDirectory", "executeCommand", "grpcHealth", "checkPorts"} {
		if _, ok := registry.Get(name); !ok {
			t.Errorf("expected tool %s to be registered", name)
		}
	}
}
