package llm

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/rtsh13/relay/internal/types"
)

// toolEnvelope is the JSON object text-protocol models emit to request a tool.
type toolEnvelope struct {
	Tool   string          `json:"tool"`
	Params json.RawMessage `json:"params"`
	ICERC  struct {
		Intent          string `json:"intent"`
		Command         string `json:"command"`
		ExpectedOutcome string `json:"expected_outcome"`
		Risk            struct {
			Level   string `json:"level"`
			Scope   string `json:"scope"`
			Details string `json:"details"`
		} `json:"risk"`
	} `json:"icerc"`
}

func (e toolEnvelope) request() *types.ToolRequest {
	req := &types.ToolRequest{
		ToolName: strings.TrimSpace(e.Tool),
		ICERC: types.ICERC{
			Intent:          e.ICERC.Intent,
			Command:         e.ICERC.Command,
			ExpectedOutcome: e.ICERC.ExpectedOutcome,
			Risk: types.Risk{
				Level:   types.RiskLevel(strings.ToLower(strings.TrimSpace(e.ICERC.Risk.Level))),
				Scope:   e.ICERC.Risk.Scope,
				Details: e.ICERC.Risk.Details,
			},
		},
	}

	// Anything other than a JSON object leaves Parameters nil so the
	// pipeline rejects the request before it reaches the operator.
	var params map[string]any
	if len(e.Params) > 0 && json.Unmarshal(e.Params, &params) == nil && params != nil {
		req.Parameters = params
	}
	return req
}

// ParseResponse splits model text into the conversational part and an
// optional tool request. The first JSON object carrying a "tool" key is taken
// as the request; it may be wrapped in a fenced code block.
func ParseResponse(text string) *types.ModelResponse {
	start, end, env, ok := findEnvelope(text)
	if !ok {
		return &types.ModelResponse{Conversation: strings.TrimSpace(text)}
	}

	before, after := text[:start], text[end:]
	before, after = stripFence(before, after)

	conversation := strings.TrimSpace(strings.TrimSpace(before) + "\n" + strings.TrimSpace(after))
	return &types.ModelResponse{
		Conversation: conversation,
		ToolRequest:  env.request(),
	}
}

func findEnvelope(text string) (int, int, toolEnvelope, bool) {
	for i := 0; i < len(text); i++ {
		if text[i] != '{' {
			continue
		}
		dec := json.NewDecoder(strings.NewReader(text[i:]))
		var raw map[string]json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			continue
		}
		if _, ok := raw["tool"]; !ok {
			continue
		}
		end := i + int(dec.InputOffset())

		var env toolEnvelope
		if err := json.Unmarshal([]byte(text[i:end]), &env); err != nil || strings.TrimSpace(env.Tool) == "" {
			continue
		}
		return i, end, env, true
	}
	return 0, 0, toolEnvelope{}, false
}

// stripFence removes a ``` fence that directly surrounds the envelope.
func stripFence(before, after string) (string, string) {
	a := strings.TrimLeft(after, " \t\r\n")
	if !strings.HasPrefix(a, "```") {
		return before, after
	}
	b := strings.TrimRight(before, " \t\r\n")
	idx := strings.LastIndex(b, "```")
	if idx < 0 || !isFenceLang(b[idx+3:]) {
		return before, after
	}
	return b[:idx], a[3:]
}

func isFenceLang(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || s == "json"
}

// encodeJSON renders v compactly for embedding in prompts.
func encodeJSON(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return ""
	}
	return strings.TrimSpace(buf.String())
}
