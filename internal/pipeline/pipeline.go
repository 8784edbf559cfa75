// Package pipeline turns model tool requests into tool results through a
// mandatory human confirmation gate (ICERC), and folds the results back into
// history messages.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rtsh13/relay/internal/types"
)

const unknownTool = "unknown_tool"

// Confirmation is the operator's answer to an ICERC prompt.
type Confirmation struct {
	Accepted bool
	DryRun   bool
}

// ToolExecutor renders the confirmation gate and performs accepted operations.
type ToolExecutor interface {
	// RequestConfirmation shows the ICERC block and blocks for an answer.
	RequestConfirmation(ctx context.Context, req types.ToolRequest) (Confirmation, error)

	// Execute performs the operation. A returned error is an ordinary tool
	// failure and becomes a result with status error.
	Execute(ctx context.Context, toolName string, params map[string]any) (any, error)
}

// Pipeline validates, gates and executes tool requests.
type Pipeline struct {
	executor ToolExecutor
	logger   *zap.Logger
	newID    func() string
}

// New creates a pipeline over executor.
func New(executor ToolExecutor, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		executor: executor,
		logger:   logger,
		newID:    uuid.NewString,
	}
}

// Validate checks the structural invariants of req.
func (p *Pipeline) Validate(req types.ToolRequest) error {
	if strings.TrimSpace(req.ToolName) == "" {
		return &types.ValidationError{RequestID: req.RequestID, Field: "tool_name", Reason: "is required"}
	}
	if req.Parameters == nil {
		return &types.ValidationError{RequestID: req.RequestID, Field: "parameters", Reason: "must be an object"}
	}
	return nil
}

// Process runs req through validation, confirmation and execution. The
// returned result is always usable: its RequestID matches the request, and
// on a non-nil error it describes the failure. The error is a
// *types.ValidationError or a *types.ToolExecutionError.
func (p *Pipeline) Process(ctx context.Context, req types.ToolRequest) (result types.ToolResult, err error) {
	if req.RequestID == "" {
		req.RequestID = p.newID()
	}
	log := p.logger.With(zap.String("request_id", req.RequestID), zap.String("tool", req.ToolName))

	if err := p.Validate(req); err != nil {
		log.Warn("Rejected tool request", zap.Error(err))
		return types.ToolResult{
			RequestID: req.RequestID,
			ToolName:  req.ToolName,
			Status:    types.StatusError,
			Error:     err.Error(),
		}, err
	}
	req.ICERC = normalizeICERC(req)
	p.transition(log, types.ToolValidated)

	defer func() {
		if r := recover(); r != nil {
			fault := fmt.Errorf("executor panic: %v", r)
			log.Error("Tool executor panicked", zap.Any("panic", r))
			result = faultResult(req, fault)
			err = &types.ToolExecutionError{Result: result, Err: fault}
		}
	}()

	p.transition(log, types.ToolAwaitingConfirmation)
	confirmation, cerr := p.executor.RequestConfirmation(ctx, req)
	if cerr != nil {
		log.Error("Confirmation failed", zap.Error(cerr))
		result = faultResult(req, cerr)
		return result, &types.ToolExecutionError{Result: result, Err: cerr}
	}

	if !confirmation.Accepted {
		p.transition(log, types.ToolDeclined)
		return types.ToolResult{
			RequestID: req.RequestID,
			ToolName:  req.ToolName,
			Status:    types.StatusDeclined,
			Data:      "The operator declined this operation. No action was taken.",
		}, nil
	}

	if confirmation.DryRun {
		p.transition(log, types.ToolSucceeded)
		return types.ToolResult{
			RequestID: req.RequestID,
			ToolName:  req.ToolName,
			Status:    types.StatusSuccess,
			Data: map[string]any{
				"dry_run":    true,
				"command":    req.ICERC.Command,
				"parameters": req.Parameters,
				"message":    "Dry run only. No changes were made.",
			},
		}, nil
	}

	p.transition(log, types.ToolExecuting)
	data, xerr := p.executor.Execute(ctx, req.ToolName, req.Parameters)
	if xerr != nil {
		p.transition(log, types.ToolFailed)
		log.Info("Tool reported failure", zap.Error(xerr))
		return types.ToolResult{
			RequestID: req.RequestID,
			ToolName:  req.ToolName,
			Status:    types.StatusError,
			Error:     xerr.Error(),
		}, nil
	}

	p.transition(log, types.ToolSucceeded)
	return types.ToolResult{
		RequestID: req.RequestID,
		ToolName:  req.ToolName,
		Status:    types.StatusSuccess,
		Data:      data,
	}, nil
}

// ProcessBatch processes reqs one at a time, in order. A failure on one
// request never prevents the rest from being attempted.
func (p *Pipeline) ProcessBatch(ctx context.Context, reqs []types.ToolRequest) []types.ToolResult {
	results := make([]types.ToolResult, 0, len(reqs))
	for i, req := range reqs {
		result, err := p.Process(ctx, req)
		if err != nil {
			p.logger.Warn("Batch item failed, continuing",
				zap.Int("index", i),
				zap.String("tool", req.ToolName),
				zap.Error(err))
		}
		results = append(results, result)
	}
	return results
}

func (p *Pipeline) transition(log *zap.Logger, state types.ToolState) {
	log.Debug("Tool state", zap.String("state", state.String()))
}

func faultResult(req types.ToolRequest, err error) types.ToolResult {
	return types.ToolResult{
		RequestID: req.RequestID,
		ToolName:  req.ToolName,
		Status:    types.StatusError,
		Error:     err.Error(),
	}
}

// normalizeICERC fills in the parts of the ICERC block a model left out.
// An unknown risk level is treated as high.
func normalizeICERC(req types.ToolRequest) types.ICERC {
	icerc := req.ICERC
	if strings.TrimSpace(icerc.Intent) == "" {
		icerc.Intent = "(not stated by the model)"
	}
	if strings.TrimSpace(icerc.Command) == "" {
		icerc.Command = describeCommand(req.ToolName, req.Parameters)
	}
	if strings.TrimSpace(icerc.ExpectedOutcome) == "" {
		icerc.ExpectedOutcome = "(not stated by the model)"
	}
	if !icerc.Risk.Level.Valid() {
		icerc.Risk.Level = types.RiskHigh
	}
	return icerc
}

func describeCommand(name string, params map[string]any) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, params[k]))
	}
	return fmt.Sprintf("%s(%s)", name, strings.Join(parts, ", "))
}

// FormatAsMessage converts result into the tool_result history message.
// A result without a tool name is labelled unknownTool so the message still
// satisfies the tool_result invariants.
func FormatAsMessage(result types.ToolResult) types.Message {
	name := strings.TrimSpace(result.ToolName)
	if name == "" {
		name = unknownTool
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] status: %s", name, result.Status)

	if result.Error != "" {
		sb.WriteString("\nerror: ")
		sb.WriteString(result.Error)
	}
	if body := stringify(result.Data); body != "" {
		sb.WriteString("\n")
		sb.WriteString(body)
	}

	return types.Message{
		Role:       types.RoleToolResult,
		Content:    sb.String(),
		ToolName:   name,
		ToolCallID: result.RequestID,
	}
}

func stringify(data any) string {
	switch v := data.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case fmt.Stringer:
		return v.String()
	}
	encoded, err := json.Marshal(data)
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(encoded)
}
