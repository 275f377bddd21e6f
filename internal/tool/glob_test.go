package tool

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGlobExecute(t *testing.T) {
	workDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(workDir, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(workDir, "src", "main.go"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(workDir, "src", "util.go"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(workDir, "README.md"), nil, 0o644))

	g := NewGlobTool(workDir)
	result, err := g.Execute(context.Background(), json.RawMessage(`{"pattern": "**/*.go"}`), &Context{WorkDir: workDir})
	require.NoError(t, err)
	assert.Contains(t, result.Output, "src/main.go")
	assert.Contains(t, result.Output, "src/util.go")
	assert.NotContains(t, result.Output, "README.md")
	assert.Equal(t, 2, result.Metadata["matches"])
}

func TestGlobNoMatches(t *testing.T) {
	g := NewGlobTool(t.TempDir())
	result, err := g.Execute(context.Background(), json.RawMessage(`{"pattern": "**/*.rs"}`), &Context{WorkDir: g.workDir})
	require.NoError(t, err)
	assert.Equal(t, "No files found", result.Output)
}

func TestGlobSkipsApproval(t *testing.T) {
	g := NewGlobTool("/work")
	req := g.ApprovalRequirement(json.RawMessage(`{"pattern": "**"}`))
	assert.Equal(t, RequirementSkip, req.Kind)
	assert.True(t, req.BypassSandbox)
}

func TestReadExecute(t *testing.T) {
	workDir := t.TempDir()
	path := filepath.Join(workDir, "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("alpha\nbeta\ngamma\n"), 0o644))

	r := NewReadTool(workDir)
	result, err := r.Execute(context.Background(), json.RawMessage(`{"path": "f.txt"}`), &Context{WorkDir: workDir})
	require.NoError(t, err)
	assert.Contains(t, result.Output, "alpha")
	assert.Contains(t, result.Output, "3\tgamma")
}

func TestReadOffsetLimit(t *testing.T) {
	workDir := t.TempDir()
	path := filepath.Join(workDir, "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("a\nb\nc\nd\n"), 0o644))

	r := NewReadTool(workDir)
	result, err := r.Execute(context.Background(), json.RawMessage(`{"path": "f.txt", "offset": 1, "limit": 2}`), &Context{WorkDir: workDir})
	require.NoError(t, err)
	assert.NotContains(t, result.Output, "a")
	assert.Contains(t, result.Output, "b")
	assert.Contains(t, result.Output, "c")
	assert.NotContains(t, result.Output, "d")
}

func TestReadMissingFile(t *testing.T) {
	r := NewReadTool(t.TempDir())
	_, err := r.Execute(context.Background(), json.RawMessage(`{"path": "nope.txt"}`), &Context{WorkDir: r.workDir})
	assert.Error(t, err)
}
