package tools

import (
	"time"
)

// Options configures the builtin tools.
type Options struct {
	WorkDir        string
	Shell          string
	CommandTimeout time.Duration
}

// NewBuiltinRegistry returns a registry holding every builtin tool, with file
// access confined to opts.WorkDir.
func NewBuiltinRegistry(opts Options) (*Registry, error) {
	sb, err := NewSandbox(opts.WorkDir)
	if err != nil {
		return nil, err
	}

	r := NewRegistry()
	r.MustRegister(NewReadFileTool(sb))
	r.MustRegister(NewWriteFileTool(sb))
	r.MustRegister(NewListDirectoryTool(sb))
	r.MustRegister(NewCommandTool(sb, opts.Shell, opts.CommandTimeout))
	r.MustRegister(NewGRPCHealthTool())
	r.MustRegister(NewPortCheckTool())
	return r, nil
}
