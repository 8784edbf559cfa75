// Package tools provides the tool framework and the builtin tools relay
// offers to the model.
package tools

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/rtsh13/relay/internal/types"
)

// ErrUnknownTool is returned when a request names a tool that is not registered.
var ErrUnknownTool = errors.New("unknown tool")

// Tool defines the interface that all tools must implement.
type Tool interface {
	// Name returns the unique identifier for this tool.
	Name() string

	// Description returns a human-readable description for the model.
	Description() string

	// Parameters returns the parameter schema for validation.
	Parameters() []types.Parameter

	// Risk is the baseline risk of running the tool.
	Risk() types.RiskLevel

	// Execute runs the tool. A returned error is a tool failure reported
	// back to the model.
	Execute(ctx context.Context, params map[string]any) (any, error)
}

// Registry manages tool registration and lookup.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates a new tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds a tool to the registry.
func (r *Registry) Register(tool Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := tool.Name()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool already registered: %s", name)
	}

	r.tools[name] = tool
	return nil
}

// MustRegister adds a tool to the registry, panicking on error.
func (r *Registry) MustRegister(tool Tool) {
	if err := r.Register(tool); err != nil {
		panic(err)
	}
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, exists := r.tools[name]
	return tool, exists
}

// List returns all registered tool names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ListTools returns metadata for every registered tool, sorted by name.
func (r *Registry) ListTools() []types.ToolInfo {
	names := r.List()

	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]types.ToolInfo, 0, len(names))
	for _, name := range names {
		tool := r.tools[name]
		infos = append(infos, types.ToolInfo{
			Name:        tool.Name(),
			Description: tool.Description(),
			Risk:        tool.Risk(),
			Parameters:  tool.Parameters(),
		})
	}
	return infos
}

// Execute validates params against the tool's schema, fills in defaults and
// runs the tool.
func (r *Registry) Execute(ctx context.Context, name string, params map[string]any) (any, error) {
	tool, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	if err := validateParams(tool, params); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return tool.Execute(ctx, applyDefaults(tool, params))
}

// validateParams checks required parameters and enum values.
func validateParams(tool Tool, params map[string]any) error {
	for _, def := range tool.Parameters() {
		value, exists := params[def.Name]

		if def.Required && (!exists || value == nil) {
			return fmt.Errorf("missing required parameter: %s", def.Name)
		}

		if exists && len(def.Enum) > 0 {
			s := fmt.Sprint(value)
			valid := false
			for _, allowed := range def.Enum {
				if s == allowed {
					valid = true
					break
				}
			}
			if !valid {
				return fmt.Errorf("invalid value for %s: must be one of %v", def.Name, def.Enum)
			}
		}
	}
	return nil
}

// applyDefaults fills in default values for missing optional parameters.
func applyDefaults(tool Tool, params map[string]any) map[string]any {
	result := make(map[string]any, len(params))
	for k, v := range params {
		result[k] = v
	}

	for _, def := range tool.Parameters() {
		if _, exists := result[def.Name]; !exists && def.Default != nil {
			result[def.Name] = def.Default
		}
	}

	return result
}

// GenerateToolsPrompt renders the tool catalog for adapters that carry tool
// calls inside plain text.
func (r *Registry) GenerateToolsPrompt() string {
	infos := r.ListTools()
	if len(infos) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("You have access to the following tools:\n\n")
	for _, tool := range infos {
		fmt.Fprintf(&sb, "### %s (risk: %s)\n%s\n", tool.Name, tool.Risk, tool.Description)
		if len(tool.Parameters) > 0 {
			sb.WriteString("Parameters:\n")
			for _, p := range tool.Parameters {
				req := ""
				if p.Required {
					req = " (required)"
				}
				fmt.Fprintf(&sb, "  - %s (%s): %s%s\n", p.Name, p.Type, p.Description, req)
				if len(p.Enum) > 0 {
					fmt.Fprintf(&sb, "    One of: %s\n", strings.Join(p.Enum, ", "))
				}
				if p.Default != nil {
					fmt.Fprintf(&sb, "    Default: %v\n", p.Default)
				}
			}
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// StringParam returns params[name] as a string.
func StringParam(params map[string]any, name string) string {
	switch v := params[name].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// IntParam returns params[name] as an int. JSON numbers decode as float64,
// and models sometimes quote numbers, so both are accepted.
func IntParam(params map[string]any, name string, fallback int) (int, error) {
	switch v := params[name].(type) {
	case nil:
		return fallback, nil
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v != float64(int(v)) {
			return 0, fmt.Errorf("parameter %s must be an integer, got %v", name, v)
		}
		return int(v), nil
	case string:
		if strings.TrimSpace(v) == "" {
			return fallback, nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("parameter %s must be an integer: %w", name, err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("parameter %s must be an integer, got %T", name, v)
	}
}

// BoolParam returns params[name] as a bool.
func BoolParam(params map[string]any, name string, fallback bool) (bool, error) {
	switch v := params[name].(type) {
	case nil:
		return fallback, nil
	case bool:
		return v, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return fallback, nil
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return false, fmt.Errorf("parameter %s must be a boolean: %w", name, err)
		}
		return b, nil
	default:
		return false, fmt.Errorf("parameter %s must be a boolean, got %T", name, v)
	}
}
