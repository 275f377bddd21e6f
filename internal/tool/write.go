package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/execguard/execguard/internal/permission"
	"github.com/execguard/execguard/internal/sandbox"
)

const writeDescription = `Writes content to a file, creating it if necessary.

Usage:
- The path parameter must be an absolute path or relative to the workspace
- Writes are confined to the workspace; paths outside it are refused
- Overwrites are shown to the approver as a diff before they happen`

// WriteTool implements file writing.
type WriteTool struct {
	workDir string
}

// WriteInput represents the input for the write tool.
type WriteInput struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// NewWriteTool creates a new write tool.
func NewWriteTool(workDir string) *WriteTool {
	return &WriteTool{workDir: workDir}
}

func (t *WriteTool) Name() string        { return "write" }
func (t *WriteTool) Description() string { return writeDescription }

func (t *WriteTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {
				"type": "string",
				"description": "The path of the file to write"
			},
			"content": {
				"type": "string",
				"description": "The content to write"
			}
		},
		"required": ["path", "content"]
	}`)
}

func (t *WriteTool) SandboxPreference() sandbox.Preference { return sandbox.PreferenceForbid }
func (t *WriteTool) SupportsParallel() bool                { return false }
func (t *WriteTool) EscalateOnFailure() bool               { return false }

// ApprovalRequirement refuses writes outside the workspace and asks for
// everything else, attaching a diff preview when overwriting.
func (t *WriteTool) ApprovalRequirement(input json.RawMessage) Requirement {
	var params WriteInput
	if err := json.Unmarshal(input, &params); err != nil || params.Path == "" {
		return Forbidden("missing or malformed path")
	}

	path := t.resolve(params.Path)
	if !permission.IsWithinDir(path, t.workDir) {
		return Forbidden(fmt.Sprintf("path %s is outside the workspace", params.Path))
	}

	req := NeedsApproval("write " + params.Path)
	if before, err := os.ReadFile(path); err == nil {
		diff, additions, deletions := buildDiff(params.Path, string(before), params.Content)
		req.Metadata = map[string]any{
			"diff":      diff,
			"additions": additions,
			"deletions": deletions,
		}
	}
	return req
}

func (t *WriteTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params WriteInput
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, invalidInput(t.Name(), err)
	}
	if params.Path == "" {
		return nil, invalidInputf(t.Name(), "path is required")
	}

	path := t.resolve(params.Path)
	if !permission.IsWithinDir(path, t.workDir) {
		return nil, fmt.Errorf("path %s is outside the workspace", params.Path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(params.Content), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	return &Result{
		Title:  params.Path,
		Output: fmt.Sprintf("Wrote %d bytes to %s", len(params.Content), params.Path),
		Metadata: map[string]any{
			"bytes": len(params.Content),
		},
	}, nil
}

func (t *WriteTool) resolve(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(t.workDir, path)
}
