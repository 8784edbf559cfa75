package tools

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSandbox(t *testing.T) (*Sandbox, string) {
	t.Helper()
	sb, err := NewSandbox(t.TempDir())
	require.NoError(t, err)
	return sb, sb.Root()
}

func TestSandbox_Resolve(t *testing.T) {
	sb, root := newSandbox(t)

	tests := []struct {
		name    string
		path    string
		want    string
		wantErr bool
	}{
		{"relative", "notes/todo.txt", filepath.Join(root, "notes", "todo.txt"), false},
		{"dot", ".", root, false},
		{"absolute inside", filepath.Join(root, "a.txt"), filepath.Join(root, "a.txt"), false},
		{"parent escape", "../outside.txt", "", true},
		{"nested escape", "a/../../outside.txt", "", true},
		{"absolute outside", filepath.Dir(root), "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := sb.Resolve(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSandbox_SymlinkEscape(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	sb, root := newSandbox(t)
	outside := t.TempDir()
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "link")))

	_, err := sb.Resolve("link/secret.txt")
	assert.ErrorIs(t, err, ErrOutsideWorkDir)
}

func TestFileTools_WriteReadList(t *testing.T) {
	sb, root := newSandbox(t)
	ctx := context.Background()

	write := NewWriteFileTool(sb)
	out, err := write.Execute(ctx, map[string]any{"path": "dir/x.txt", "content": "hello"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"path": "dir/x.txt", "bytes_written": 5}, out)

	_, err = write.Execute(ctx, map[string]any{"path": "dir/x.txt", "content": " world", "mode": "append"})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(root, "dir", "x.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))

	read := NewReadFileTool(sb)
	got, err := read.Execute(ctx, map[string]any{"path": "dir/x.txt"})
	require.NoError(t, err)
	assert.Equal(t, "hello world", got)

	require.NoError(t, os.WriteFile(filepath.Join(root, ".hidden"), nil, 0o644))
	list := NewListDirectoryTool(sb)
	listing, err := list.Execute(ctx, map[string]any{"path": "."})
	require.NoError(t, err)
	assert.Equal(t, []string{"dir/"}, listing.(map[string]any)["entries"])

	listing, err = list.Execute(ctx, map[string]any{"path": ".", "show_hidden": true})
	require.NoError(t, err)
	assert.Equal(t, []string{".hidden", "dir/"}, listing.(map[string]any)["entries"])
}

func TestReadFile_Truncates(t *testing.T) {
	sb, root := newSandbox(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "big.txt"), []byte(strings.Repeat("a", 100)), 0o644))

	got, err := NewReadFileTool(sb).Execute(context.Background(), map[string]any{"path": "big.txt", "max_bytes": float64(10)})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got.(string), strings.Repeat("a", 10)+"\n"))
	assert.Contains(t, got, "truncated at 10 bytes")
}

func TestFileTools_Errors(t *testing.T) {
	sb, _ := newSandbox(t)
	ctx := context.Background()

	_, err := NewReadFileTool(sb).Execute(ctx, map[string]any{"path": "missing.txt"})
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = NewWriteFileTool(sb).Execute(ctx, map[string]any{"path": "../evil.txt", "content": "x"})
	assert.ErrorIs(t, err, ErrOutsideWorkDir)

	_, err = NewListDirectoryTool(sb).Execute(ctx, map[string]any{"path": "nope"})
	assert.Error(t, err)
}
