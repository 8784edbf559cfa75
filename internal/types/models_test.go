package types

import (
	"errors"
	"fmt"
	"testing"
)

func TestPhase_String(t *testing.T) {
	tests := []struct {
		phase    Phase
		expected string
	}{
		{PhaseInitializing, "Initializing"},
		{PhaseRunning, "Running"},
		{PhaseAwaitingInput, "Awaiting user input"},
		{PhaseToolSubloop, "Running tool"},
		{PhaseShuttingDown, "Shutting down"},
		{PhaseStopped, "Stopped"},
		{Phase(42), "Unknown"},
	}

	for _, tt := range tests {
		if got := tt.phase.String(); got != tt.expected {
			t.Errorf("Phase(%d).String() = %q, want %q", tt.phase, got, tt.expected)
		}
	}
}

func TestToolState_Status(t *testing.T) {
	tests := []struct {
		state    ToolState
		terminal bool
		status   ToolStatus
	}{
		{ToolValidated, false, StatusError},
		{ToolAwaitingConfirmation, false, StatusError},
		{ToolExecuting, false, StatusError},
		{ToolSucceeded, true, StatusSuccess},
		{ToolFailed, true, StatusError},
		{ToolDeclined, true, StatusDeclined},
	}

	for _, tt := range tests {
		if got := tt.state.Terminal(); got != tt.terminal {
			t.Errorf("%s.Terminal() = %v, want %v", tt.state, got, tt.terminal)
		}
		if tt.terminal && tt.state.Status() != tt.status {
			t.Errorf("%s.Status() = %q, want %q", tt.state, tt.state.Status(), tt.status)
		}
	}
}

func TestRole_Valid(t *testing.T) {
	for _, r := range []Role{RoleSystem, RoleUser, RoleAssistant, RoleToolResult} {
		if !r.Valid() {
			t.Errorf("%q should be valid", r)
		}
	}
	for _, r := range []Role{RoleTool, "", "moderator"} {
		if r.Valid() {
			t.Errorf("%q should not be a storable role", r)
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		prefix      string
		recoverable bool
	}{
		{"validation", &ValidationError{Field: "tool_name", Reason: "is required"}, "Invalid tool request", true},
		{"tool", &ToolExecutionError{Err: errors.New("boom")}, "Tool error", true},
		{"model wrapped", fmt.Errorf("turn: %w", &ModelCommunicationError{Err: errors.New("503")}), "Model error", true},
		{"init", &ComponentInitializationError{Component: "personas", Err: errors.New("missing")}, "Startup error", false},
		{"input", &UserInputError{Command: "/persona", Hint: "usage"}, "Input error", true},
		{"other", errors.New("unexpected"), "Error", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Classify(tt.err)
			if c.Prefix != tt.prefix || c.Recoverable != tt.recoverable {
				t.Errorf("Classify() = %+v, want prefix %q recoverable %v", c, tt.prefix, tt.recoverable)
			}
		})
	}
}

func TestToolExecutionError_Unwrap(t *testing.T) {
	root := errors.New("disk full")
	err := &ToolExecutionError{Result: ToolResult{ToolName: "writeFile"}, Err: root}
	if !errors.Is(err, root) {
		t.Error("expected ToolExecutionError to unwrap to its cause")
	}
	if err.Error() != "tool writeFile failed: disk full" {
		t.Errorf("unexpected message %q", err.Error())
	}
}
