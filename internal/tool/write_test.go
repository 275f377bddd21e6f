package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteApprovalOutsideWorkspaceForbidden(t *testing.T) {
	w := NewWriteTool("/work")

	req := w.ApprovalRequirement(json.RawMessage(`{"path": "/etc/passwd", "content": "x"}`))
	assert.Equal(t, RequirementForbidden, req.Kind)
	assert.Contains(t, req.Reason, "/etc/passwd")
}

func TestWriteApprovalInsideWorkspaceAsks(t *testing.T) {
	w := NewWriteTool("/work")

	req := w.ApprovalRequirement(json.RawMessage(`{"path": "src/main.go", "content": "x"}`))
	assert.Equal(t, RequirementNeedsApproval, req.Kind)
	assert.Contains(t, req.Reason, "src/main.go")
}

func TestWriteApprovalOverwriteCarriesDiff(t *testing.T) {
	workDir := t.TempDir()
	path := filepath.Join(workDir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("old line\n"), 0o644))

	w := NewWriteTool(workDir)
	input := fmt.Sprintf(`{"path": %q, "content": "new line\n"}`, path)

	req := w.ApprovalRequirement(json.RawMessage(input))
	require.Equal(t, RequirementNeedsApproval, req.Kind)
	require.NotNil(t, req.Metadata)
	assert.NotEmpty(t, req.Metadata["diff"])
	assert.Equal(t, 1, req.Metadata["additions"])
	assert.Equal(t, 1, req.Metadata["deletions"])
}

func TestWriteExecute(t *testing.T) {
	workDir := t.TempDir()
	w := NewWriteTool(workDir)

	input := json.RawMessage(`{"path": "sub/out.txt", "content": "hello"}`)
	result, err := w.Execute(context.Background(), input, &Context{WorkDir: workDir})
	require.NoError(t, err)
	assert.Contains(t, result.Output, "5 bytes")

	data, err := os.ReadFile(filepath.Join(workDir, "sub", "out.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestWriteExecuteOutsideWorkspace(t *testing.T) {
	w := NewWriteTool(t.TempDir())

	input := json.RawMessage(`{"path": "/etc/shadow", "content": "x"}`)
	_, err := w.Execute(context.Background(), input, &Context{})
	assert.Error(t, err)
}

func TestBuildDiff(t *testing.T) {
	diff, additions, deletions := buildDiff("a.txt", "one\ntwo\n", "one\nthree\n")
	assert.Contains(t, diff, "--- a.txt")
	assert.Equal(t, 1, additions)
	assert.Equal(t, 1, deletions)

	diff, additions, deletions = buildDiff("a.txt", "same\n", "same\n")
	assert.Empty(t, diff)
	assert.Zero(t, additions)
	assert.Zero(t, deletions)
}
