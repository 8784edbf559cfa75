// Package teps is the tool execution permission system: it shows the operator
// the ICERC block for each tool request, collects a decision and runs
// accepted requests against the tool registry.
package teps

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rtsh13/relay/internal/pipeline"
	"github.com/rtsh13/relay/internal/tools"
	"github.com/rtsh13/relay/internal/types"
)

// Decision is the operator's answer to a confirmation prompt.
type Decision int

const (
	Decline Decision = iota
	Accept
	DryRun
)

func (d Decision) String() string {
	switch d {
	case Accept:
		return "accept"
	case DryRun:
		return "dry-run"
	default:
		return "decline"
	}
}

// Display renders the confirmation block.
type Display interface {
	ShowICERC(req types.ToolRequest)
	Notice(msg string)
}

// Confirmer blocks until the operator decides on req.
type Confirmer interface {
	Confirm(ctx context.Context, req types.ToolRequest) (Decision, error)
}

// Options tunes the gate.
type Options struct {
	// AllowDryRun lets the operator pick dry-run. When false a dry-run
	// answer counts as a decline.
	AllowDryRun bool
}

// Executor implements pipeline.ToolExecutor.
type Executor struct {
	registry  *tools.Registry
	display   Display
	confirmer Confirmer
	opts      Options
	logger    *zap.Logger
}

var _ pipeline.ToolExecutor = (*Executor)(nil)

// New creates the permission gate over registry.
func New(registry *tools.Registry, display Display, confirmer Confirmer, opts Options, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		registry:  registry,
		display:   display,
		confirmer: confirmer,
		opts:      opts,
		logger:    logger,
	}
}

// RequestConfirmation shows the ICERC block and asks for a decision. The
// displayed risk is never lower than the tool's own baseline.
func (e *Executor) RequestConfirmation(ctx context.Context, req types.ToolRequest) (pipeline.Confirmation, error) {
	if tool, ok := e.registry.Get(req.ToolName); ok {
		req.ICERC.Risk.Level = maxRisk(req.ICERC.Risk.Level, tool.Risk())
	} else {
		req.ICERC.Risk.Details = appendDetail(req.ICERC.Risk.Details,
			fmt.Sprintf("%q is not a registered tool and will fail if accepted.", req.ToolName))
	}

	e.display.ShowICERC(req)

	decision, err := e.confirmer.Confirm(ctx, req)
	if err != nil {
		return pipeline.Confirmation{}, fmt.Errorf("confirm %s: %w", req.ToolName, err)
	}

	e.logger.Info("Operator decision",
		zap.String("request_id", req.RequestID),
		zap.String("tool", req.ToolName),
		zap.String("risk", string(req.ICERC.Risk.Level)),
		zap.String("decision", decision.String()))

	switch decision {
	case Accept:
		return pipeline.Confirmation{Accepted: true}, nil
	case DryRun:
		if !e.opts.AllowDryRun {
			e.display.Notice("Dry run is disabled; treating the answer as a decline.")
			return pipeline.Confirmation{}, nil
		}
		return pipeline.Confirmation{Accepted: true, DryRun: true}, nil
	default:
		return pipeline.Confirmation{}, nil
	}
}

// Execute runs an accepted request.
func (e *Executor) Execute(ctx context.Context, toolName string, params map[string]any) (any, error) {
	return e.registry.Execute(ctx, toolName, params)
}

func riskRank(r types.RiskLevel) int {
	switch r {
	case types.RiskLow:
		return 0
	case types.RiskMedium:
		return 1
	default:
		return 2
	}
}

func maxRisk(a, b types.RiskLevel) types.RiskLevel {
	if riskRank(b) > riskRank(a) {
		return b
	}
	return a
}

func appendDetail(details, extra string) string {
	if details == "" {
		return extra
	}
	return details + " " + extra
}
