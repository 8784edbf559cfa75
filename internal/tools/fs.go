package tools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rtsh13/relay/internal/types"
)

const (
	defaultMaxReadBytes = 256 * 1024
	maxListEntries      = 500
)

// ErrOutsideWorkDir is returned for a path that resolves outside the work dir.
var ErrOutsideWorkDir = errors.New("path escapes the work directory")

// Sandbox confines file tools to a single directory tree.
type Sandbox struct {
	root string
}

// NewSandbox returns a sandbox rooted at dir. An empty dir means the current
// working directory.
func NewSandbox(dir string) (*Sandbox, error) {
	if dir == "" {
		dir = "."
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve work dir: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("work dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("work dir %s is not a directory", abs)
	}
	return &Sandbox{root: abs}, nil
}

// Root returns the absolute sandbox root.
func (s *Sandbox) Root() string {
	return s.root
}

// Resolve maps path onto an absolute path inside the sandbox. Relative paths
// are taken from the root.
func (s *Sandbox) Resolve(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path is required")
	}

	target := path
	if !filepath.IsAbs(target) {
		target = filepath.Join(s.root, target)
	}
	target = filepath.Clean(target)

	// Follow symlinks on the longest existing prefix so a link cannot lead
	// out of the tree.
	if resolved, err := evalExisting(target); err == nil {
		target = resolved
	}

	rel, err := filepath.Rel(s.root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideWorkDir, path)
	}
	return target, nil
}

func evalExisting(path string) (string, error) {
	var tail []string
	cur := path
	for {
		resolved, err := filepath.EvalSymlinks(cur)
		if err == nil {
			for i := len(tail) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, tail[i])
			}
			return resolved, nil
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return "", err
		}
		tail = append(tail, filepath.Base(cur))
		cur = parent
	}
}

// ReadFileTool returns the contents of a file.
type ReadFileTool struct {
	sandbox *Sandbox
}

func NewReadFileTool(sb *Sandbox) *ReadFileTool { return &ReadFileTool{sandbox: sb} }

func (t *ReadFileTool) Name() string { return "readFile" }

func (t *ReadFileTool) Description() string {
	return "Read a text file inside the work directory and return its contents."
}

func (t *ReadFileTool) Risk() types.RiskLevel { return types.RiskLow }

func (t *ReadFileTool) Parameters() []types.Parameter {
	return []types.Parameter{
		{Name: "path", Type: "string", Description: "File path, relative to the work directory", Required: true},
		{Name: "max_bytes", Type: "int", Description: "Maximum number of bytes to return", Default: defaultMaxReadBytes},
	}
}

func (t *ReadFileTool) Execute(_ context.Context, params map[string]any) (any, error) {
	path, err := t.sandbox.Resolve(StringParam(params, "path"))
	if err != nil {
		return nil, err
	}
	limit, err := IntParam(params, "max_bytes", defaultMaxReadBytes)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultMaxReadBytes
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", StringParam(params, "path"), err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, int64(limit)+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", StringParam(params, "path"), err)
	}
	if len(data) > limit {
		return fmt.Sprintf("%s\n... (truncated at %d bytes)", data[:limit], limit), nil
	}
	return string(data), nil
}

// WriteFileTool creates or replaces a file.
type WriteFileTool struct {
	sandbox *Sandbox
}

func NewWriteFileTool(sb *Sandbox) *WriteFileTool { return &WriteFileTool{sandbox: sb} }

func (t *WriteFileTool) Name() string { return "writeFile" }

func (t *WriteFileTool) Description() string {
	return "Write text to a file inside the work directory, creating parent directories as needed."
}

func (t *WriteFileTool) Risk() types.RiskLevel { return types.RiskMedium }

func (t *WriteFileTool) Parameters() []types.Parameter {
	return []types.Parameter{
		{Name: "path", Type: "string", Description: "File path, relative to the work directory", Required: true},
		{Name: "content", Type: "string", Description: "Text to write", Required: true},
		{Name: "mode", Type: "string", Description: "overwrite or append", Default: "overwrite", Enum: []string{"overwrite", "append"}},
	}
}

func (t *WriteFileTool) Execute(_ context.Context, params map[string]any) (any, error) {
	rel := StringParam(params, "path")
	path, err := t.sandbox.Resolve(rel)
	if err != nil {
		return nil, err
	}
	content := StringParam(params, "content")

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create parent of %s: %w", rel, err)
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if StringParam(params, "mode") == "append" {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", rel, err)
	}
	n, err := f.WriteString(content)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, fmt.Errorf("write %s: %w", rel, err)
	}

	return map[string]any{
		"path":          rel,
		"bytes_written": n,
	}, nil
}

// ListDirectoryTool lists directory entries.
type ListDirectoryTool struct {
	sandbox *Sandbox
}

func NewListDirectoryTool(sb *Sandbox) *ListDirectoryTool { return &ListDirectoryTool{sandbox: sb} }

func (t *ListDirectoryTool) Name() string { return "listDirectory" }

func (t *ListDirectoryTool) Description() string {
	return "List the entries of a directory inside the work directory. Directories end with '/'."
}

func (t *ListDirectoryTool) Risk() types.RiskLevel { return types.RiskLow }

func (t *ListDirectoryTool) Parameters() []types.Parameter {
	return []types.Parameter{
		{Name: "path", Type: "string", Description: "Directory path, relative to the work directory", Default: "."},
		{Name: "show_hidden", Type: "bool", Description: "Include dot files", Default: false},
	}
}

func (t *ListDirectoryTool) Execute(_ context.Context, params map[string]any) (any, error) {
	rel := StringParam(params, "path")
	if rel == "" {
		rel = "."
	}
	path, err := t.sandbox.Resolve(rel)
	if err != nil {
		return nil, err
	}
	hidden, err := BoolParam(params, "show_hidden", false)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", rel, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !hidden && strings.HasPrefix(e.Name(), ".") {
			continue
		}
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)

	truncated := false
	if len(names) > maxListEntries {
		names = names[:maxListEntries]
		truncated = true
	}

	return map[string]any{
		"path":      rel,
		"entries":   names,
		"truncated": truncated,
	}, nil
}
