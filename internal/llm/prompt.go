package llm

import (
	"fmt"
	"strings"

	"github.com/rtsh13/relay/internal/types"
)

// chatMessage is the role/content pair both HTTP chat APIs accept.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// BuildToolProtocol returns the system prompt section that teaches a
// text-protocol model how to request tools. toolsPrompt is the rendered tool
// catalog; an empty catalog yields an empty section.
func BuildToolProtocol(toolsPrompt string) string {
	if strings.TrimSpace(toolsPrompt) == "" {
		return ""
	}

	example := map[string]any{
		"tool":   "readFile",
		"params": map[string]any{"path": "README.md"},
		"icerc": map[string]any{
			"intent":           "Read the README to learn how the project is built",
			"command":          "readFile path=README.md",
			"expected_outcome": "The README text",
			"risk":             map[string]any{"level": "low", "scope": "README.md", "details": "read-only"},
		},
	}

	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(toolsPrompt))
	sb.WriteString("\n\n")
	sb.WriteString("To use a tool, reply with a single JSON object in exactly this shape:\n")
	sb.WriteString(encodeJSON(example))
	sb.WriteString(`

Rules:
- Request at most one tool per reply. You may add a short sentence before the JSON.
- Always fill in every icerc field. risk.level is one of low, medium, high.
- The operator may decline. A declined request comes back with status declined_by_user; do not retry it unchanged.
- Tool results arrive as messages starting with "Tool result". Interpret them for the operator.
- If you do not need a tool, answer normally without any JSON.`)
	return sb.String()
}

// toChatMessages flattens the model view into plain chat messages. Extra
// system text goes first. Tool results become user messages because the
// text protocol has no native tool-call ids to pair them with.
func toChatMessages(system string, msgs []types.ModelMessage) []chatMessage {
	out := make([]chatMessage, 0, len(msgs)+1)
	if system != "" {
		out = append(out, chatMessage{Role: string(types.RoleSystem), Content: system})
	}
	for _, m := range msgs {
		switch m.Role {
		case types.RoleTool:
			out = append(out, chatMessage{Role: string(types.RoleUser), Content: formatToolResult(m)})
		default:
			out = append(out, chatMessage{Role: string(m.Role), Content: m.Content})
		}
	}
	return out
}

func formatToolResult(m types.ModelMessage) string {
	return fmt.Sprintf("Tool result for %s (call %s):\n%s", m.Name, m.ToolCallID, m.Content)
}
