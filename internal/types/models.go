// Package types defines shared data structures for the relay orchestrator.
package types

import "time"

// Role identifies the author of a history message.
type Role string

const (
	RoleSystem     Role = "system"
	RoleUser       Role = "user"
	RoleAssistant  Role = "assistant"
	RoleToolResult Role = "tool_result"

	// RoleTool is the provider-neutral role a tool_result takes when handed to a model.
	RoleTool Role = "tool"
)

// Valid reports whether r may be stored in history.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleToolResult:
		return true
	}
	return false
}

// Message is one entry in the conversation history.
type Message struct {
	Role       Role      `json:"role"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
	ToolName   string    `json:"tool_name,omitempty"`
	ToolCallID string    `json:"tool_call_id,omitempty"`
}

// ModelMessage is the provider-neutral shape sent to a model adapter.
type ModelMessage struct {
	Role       Role   `json:"role"`
	Content    string `json:"content"`
	Name       string `json:"name,omitempty"`
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// RiskLevel grades the blast radius of a tool request.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Valid reports whether l is one of the known levels.
func (l RiskLevel) Valid() bool {
	return l == RiskLow || l == RiskMedium || l == RiskHigh
}

// Risk is the risk-assessment part of an ICERC block.
type Risk struct {
	Level   RiskLevel `json:"level"`
	Scope   string    `json:"scope,omitempty"`
	Details string    `json:"details,omitempty"`
}

// ICERC is the Intent, Command, Expected-outcome, Risk block shown to the
// operator before Confirmation.
type ICERC struct {
	Intent          string `json:"intent"`
	Command         string `json:"command"`
	ExpectedOutcome string `json:"expected_outcome"`
	Risk            Risk   `json:"risk"`
}

// ToolRequest is a model-initiated request to run a side-effecting tool.
type ToolRequest struct {
	RequestID  string         `json:"request_id"`
	ToolName   string         `json:"tool_name"`
	Parameters map[string]any `json:"parameters"`
	ICERC      ICERC          `json:"icerc"`
}

// ToolStatus is the terminal outcome of a tool request.
type ToolStatus string

const (
	StatusSuccess  ToolStatus = "success"
	StatusError    ToolStatus = "error"
	StatusDeclined ToolStatus = "declined_by_user"
)

// ToolResult is the outcome of processing exactly one ToolRequest.
type ToolResult struct {
	RequestID string     `json:"request_id"`
	ToolName  string     `json:"tool_name"`
	Status    ToolStatus `json:"status"`
	Data      any        `json:"data,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// ModelResponse is what a model adapter returns for one call.
type ModelResponse struct {
	Conversation string
	ToolRequest  *ToolRequest
}

// SessionState is the mutable session data owned by the orchestrator.
type SessionState struct {
	ActivePersonaID string
	DebugMode       bool
	Running         bool
}

// Phase represents the current state of the orchestrator loop.
type Phase int

const (
	PhaseInitializing Phase = iota
	PhaseRunning
	PhaseAwaitingInput
	PhaseToolSubloop
	PhaseShuttingDown
	PhaseStopped
)

// String returns a human-readable phase name.
func (p Phase) String() string {
	names := [...]string{
		"Initializing",
		"Running",
		"Awaiting user input",
		"Running tool",
		"Shutting down",
		"Stopped",
	}
	if int(p) >= 0 && int(p) < len(names) {
		return names[p]
	}
	return "Unknown"
}

// ToolState tracks a single request through the permission pipeline.
type ToolState int

const (
	ToolValidated ToolState = iota
	ToolAwaitingConfirmation
	ToolExecuting
	ToolSucceeded
	ToolFailed
	ToolDeclined
)

// String returns a human-readable tool state name.
func (s ToolState) String() string {
	names := [...]string{
		"validated",
		"awaiting_confirmation",
		"executing",
		"succeeded",
		"failed",
		"declined",
	}
	if int(s) >= 0 && int(s) < len(names) {
		return names[s]
	}
	return "unknown"
}

// Terminal reports whether s ends the tool state machine.
func (s ToolState) Terminal() bool {
	return s == ToolSucceeded || s == ToolFailed || s == ToolDeclined
}

// Status maps a terminal tool state onto its result status.
func (s ToolState) Status() ToolStatus {
	switch s {
	case ToolSucceeded:
		return StatusSuccess
	case ToolDeclined:
		return StatusDeclined
	default:
		return StatusError
	}
}

// ToolInfo contains metadata about a tool for display and prompts.
type ToolInfo struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Risk        RiskLevel   `json:"risk"`
	Parameters  []Parameter `json:"parameters"`
}

// Parameter defines a tool parameter with validation rules.
type Parameter struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"` // "string", "int", "bool"
	Description string   `json:"description"`
	Required    bool     `json:"required"`
	Default     any      `json:"default,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}
