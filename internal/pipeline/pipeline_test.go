package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/rtsh13/relay/internal/types"
)

// mockExecutor scripts confirmation answers and execution outcomes per call.
type mockExecutor struct {
	confirmations []Confirmation
	confirmErr    error
	execResults   []any
	execErrs      []error
	panicOnExec   bool

	confirmCalls int
	execCalls    int
	seen         []types.ToolRequest
}

func (m *mockExecutor) RequestConfirmation(_ context.Context, req types.ToolRequest) (Confirmation, error) {
	m.confirmCalls++
	m.seen = append(m.seen, req)
	if m.confirmErr != nil {
		return Confirmation{}, m.confirmErr
	}
	if len(m.confirmations) == 0 {
		return Confirmation{Accepted: true}, nil
	}
	c := m.confirmations[0]
	m.confirmations = m.confirmations[1:]
	return c, nil
}

func (m *mockExecutor) Execute(_ context.Context, _ string, _ map[string]any) (any, error) {
	i := m.execCalls
	m.execCalls++
	if m.panicOnExec {
		panic("executor exploded")
	}
	var (
		out any
		err error
	)
	if i < len(m.execResults) {
		out = m.execResults[i]
	}
	if i < len(m.execErrs) {
		err = m.execErrs[i]
	}
	return out, err
}

func readFileRequest(id string) types.ToolRequest {
	return types.ToolRequest{
		RequestID:  id,
		ToolName:   "readFile",
		Parameters: map[string]any{"path": "x.txt"},
		ICERC: types.ICERC{
			Intent:          "inspect the file",
			Command:         "readFile x.txt",
			ExpectedOutcome: "file contents",
			Risk:            types.Risk{Level: types.RiskLow, Scope: "x.txt"},
		},
	}
}

func TestValidate(t *testing.T) {
	p := New(&mockExecutor{}, nil)

	tests := []struct {
		name  string
		req   types.ToolRequest
		field string
	}{
		{"valid", readFileRequest("1"), ""},
		{"missing tool name", types.ToolRequest{Parameters: map[string]any{}}, "tool_name"},
		{"blank tool name", types.ToolRequest{ToolName: "  ", Parameters: map[string]any{}}, "tool_name"},
		{"missing parameters", types.ToolRequest{ToolName: "readFile"}, "parameters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.Validate(tt.req)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var verr *types.ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestProcess_ValidationPrecedesConfirmation(t *testing.T) {
	exec := &mockExecutor{}
	p := New(exec, nil)

	result, err := p.Process(context.Background(), types.ToolRequest{RequestID: "r1", ToolName: "readFile"})

	var verr *types.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Zero(t, exec.confirmCalls, "invalid request must never reach the confirmation gate")
	assert.Zero(t, exec.execCalls)
	assert.Equal(t, "r1", result.RequestID)
	assert.Equal(t, types.StatusError, result.Status)
}

func TestProcess_DeclinedReadFile(t *testing.T) {
	exec := &mockExecutor{confirmations: []Confirmation{{Accepted: false}}}
	p := New(exec, nil)

	result, err := p.Process(context.Background(), readFileRequest("req-7"))
	require.NoError(t, err)

	assert.Equal(t, types.StatusDeclined, result.Status)
	assert.Zero(t, exec.execCalls, "declined request must not execute")

	msg := FormatAsMessage(result)
	assert.Equal(t, types.RoleToolResult, msg.Role)
	assert.Equal(t, "readFile", msg.ToolName)
	assert.Equal(t, "req-7", msg.ToolCallID)
	assert.Contains(t, msg.Content, "status: declined_by_user")
}

func TestProcess_Outcomes(t *testing.T) {
	tests := []struct {
		name       string
		exec       *mockExecutor
		wantStatus types.ToolStatus
		wantErr    bool
		wantExec   int
	}{
		{
			name:       "success",
			exec:       &mockExecutor{execResults: []any{"contents"}},
			wantStatus: types.StatusSuccess,
			wantExec:   1,
		},
		{
			name:       "tool failure is a value",
			exec:       &mockExecutor{execErrs: []error{errors.New("no such file")}},
			wantStatus: types.StatusError,
			wantExec:   1,
		},
		{
			name:       "dry run has no side effect",
			exec:       &mockExecutor{confirmations: []Confirmation{{Accepted: true, DryRun: true}}},
			wantStatus: types.StatusSuccess,
			wantExec:   0,
		},
		{
			name:       "confirmation fault",
			exec:       &mockExecutor{confirmErr: errors.New("terminal closed")},
			wantStatus: types.StatusError,
			wantErr:    true,
			wantExec:   0,
		},
		{
			name:       "executor panic",
			exec:       &mockExecutor{panicOnExec: true},
			wantStatus: types.StatusError,
			wantErr:    true,
			wantExec:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.exec, nil)
			req := readFileRequest("linked")

			result, err := p.Process(context.Background(), req)

			assert.Equal(t, req.RequestID, result.RequestID)
			assert.Equal(t, tt.wantStatus, result.Status)
			assert.Equal(t, tt.wantExec, tt.exec.execCalls)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var terr *types.ToolExecutionError
			require.True(t, errors.As(err, &terr), "got %v", err)
			assert.Equal(t, result, terr.Result)
			assert.NotEmpty(t, result.Error)
		})
	}
}

func TestProcess_AssignsRequestIDAndNormalizesICERC(t *testing.T) {
	exec := &mockExecutor{}
	p := New(exec, nil)
	p.newID = func() string { return "generated" }

	result, err := p.Process(context.Background(), types.ToolRequest{
		ToolName:   "executeCommand",
		Parameters: map[string]any{"command": "ls", "cwd": "/tmp"},
		ICERC:      types.ICERC{Risk: types.Risk{Level: "catastrophic"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "generated", result.RequestID)

	require.Len(t, exec.seen, 1)
	icerc := exec.seen[0].ICERC
	assert.Equal(t, types.RiskHigh, icerc.Risk.Level)
	assert.Equal(t, "executeCommand(command=ls, cwd=/tmp)", icerc.Command)
	assert.NotEmpty(t, icerc.Intent)
}

func TestProcessBatch_ContinueOnError(t *testing.T) {
	exec := &mockExecutor{
		execResults: []any{"first", nil, "third"},
		execErrs:    []error{nil, errors.New("second failed"), nil},
	}
	p := New(exec, nil)

	reqs := []types.ToolRequest{readFileRequest("a"), readFileRequest("b"), readFileRequest("c")}
	results := p.ProcessBatch(context.Background(), reqs)

	require.Len(t, results, 3)
	for i, r := range results {
		assert.Equal(t, reqs[i].RequestID, r.RequestID)
	}
	assert.Equal(t, types.StatusSuccess, results[0].Status)
	assert.Equal(t, "first", results[0].Data)
	assert.Equal(t, types.StatusError, results[1].Status)
	assert.Equal(t, "second failed", results[1].Error)
	assert.Equal(t, types.StatusSuccess, results[2].Status)
	assert.Equal(t, "third", results[2].Data)
	assert.Equal(t, 3, exec.confirmCalls)
}

func TestProcessBatch_InvalidItemDoesNotStopBatch(t *testing.T) {
	exec := &mockExecutor{}
	p := New(exec, nil)

	results := p.ProcessBatch(context.Background(), []types.ToolRequest{
		{RequestID: "bad", ToolName: "readFile"},
		readFileRequest("good"),
	})

	require.Len(t, results, 2)
	assert.Equal(t, types.StatusError, results[0].Status)
	assert.Equal(t, types.StatusSuccess, results[1].Status)
	assert.Equal(t, 1, exec.confirmCalls)
}

func TestProcess_LogsStateTransitions(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	p := New(&mockExecutor{}, zap.New(core))

	_, err := p.Process(context.Background(), readFileRequest("obs"))
	require.NoError(t, err)

	var states []string
	for _, entry := range logs.FilterMessage("Tool state").All() {
		states = append(states, entry.ContextMap()["state"].(string))
	}
	assert.Equal(t, []string{"validated", "awaiting_confirmation", "executing", "succeeded"}, states)
}

func TestFormatAsMessage(t *testing.T) {
	tests := []struct {
		name     string
		result   types.ToolResult
		contains []string
		tool     string
	}{
		{
			name:     "structured data",
			result:   types.ToolResult{RequestID: "1", ToolName: "listDirectory", Status: types.StatusSuccess, Data: map[string]any{"entries": []string{"a", "b"}}},
			contains: []string{"[listDirectory] status: success", `{"entries":["a","b"]}`},
			tool:     "listDirectory",
		},
		{
			name:     "error text",
			result:   types.ToolResult{RequestID: "2", ToolName: "writeFile", Status: types.StatusError, Error: "permission denied"},
			contains: []string{"status: error", "error: permission denied"},
			tool:     "writeFile",
		},
		{
			name:     "nameless result",
			result:   types.ToolResult{RequestID: "3", Status: types.StatusError, Error: "invalid tool request: tool_name is required"},
			contains: []string{"[unknown_tool] status: error"},
			tool:     unknownTool,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := FormatAsMessage(tt.result)
			assert.Equal(t, types.RoleToolResult, msg.Role)
			assert.Equal(t, tt.tool, msg.ToolName)
			assert.Equal(t, tt.result.RequestID, msg.ToolCallID)
			for _, want := range tt.contains {
				assert.Contains(t, msg.Content, want)
			}
		})
	}
}
