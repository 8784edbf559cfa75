package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"time"

	"github.com/rtsh13/relay/internal/types"
)

const maxCommandOutput = 64 * 1024

// CommandTool runs a shell command inside the work directory.
type CommandTool struct {
	sandbox *Sandbox
	shell   string
	timeout time.Duration
}

// NewCommandTool creates the executeCommand tool. An empty shell selects the
// platform shell; a zero timeout means none.
func NewCommandTool(sb *Sandbox, shell string, timeout time.Duration) *CommandTool {
	if shell == "" {
		shell = defaultShell()
	}
	return &CommandTool{sandbox: sb, shell: shell, timeout: timeout}
}

func defaultShell() string {
	if runtime.GOOS == "windows" {
		return "cmd"
	}
	return "/bin/sh"
}

func (c *CommandTool) Name() string { return "executeCommand" }

func (c *CommandTool) Description() string {
	return "Run a shell command in the work directory. Returns exit code, stdout and stderr."
}

func (c *CommandTool) Risk() types.RiskLevel { return types.RiskHigh }

func (c *CommandTool) Parameters() []types.Parameter {
	return []types.Parameter{
		{Name: "command", Type: "string", Description: "Command line passed to the shell", Required: true},
		{Name: "cwd", Type: "string", Description: "Directory to run in, relative to the work directory", Default: "."},
		{Name: "timeout_seconds", Type: "int", Description: "Override the configured timeout"},
	}
}

func (c *CommandTool) Execute(ctx context.Context, params map[string]any) (any, error) {
	command := StringParam(params, "command")
	if command == "" {
		return nil, fmt.Errorf("command is required")
	}
	cwd := StringParam(params, "cwd")
	if cwd == "" {
		cwd = "."
	}
	dir, err := c.sandbox.Resolve(cwd)
	if err != nil {
		return nil, err
	}

	timeout := c.timeout
	if secs, err := IntParam(params, "timeout_seconds", 0); err != nil {
		return nil, err
	} else if secs > 0 {
		timeout = time.Duration(secs) * time.Second
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	flag := "-c"
	if runtime.GOOS == "windows" {
		flag = "/C"
	}
	cmd := exec.CommandContext(ctx, c.shell, flag, command)
	cmd.Dir = dir
	cmd.WaitDelay = 2 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	if ctx.Err() != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("command timed out after %s", timeout)
		}
		return nil, fmt.Errorf("command cancelled: %w", ctx.Err())
	}

	exitCode := 0
	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return nil, fmt.Errorf("start command: %w", runErr)
		}
		exitCode = exitErr.ExitCode()
	}

	return map[string]any{
		"command":     command,
		"exit_code":   exitCode,
		"stdout":      truncate(stdout.String(), maxCommandOutput),
		"stderr":      truncate(stderr.String(), maxCommandOutput),
		"duration_ms": elapsed.Milliseconds(),
	}, nil
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "\n... (truncated)"
}
