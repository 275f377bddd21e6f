package tool

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/execguard/execguard/internal/sandbox"
)

const readDescription = `Reads a file from the local filesystem.

Usage:
- The path parameter must be an absolute path or relative to the workspace
- By default, reads up to 2000 lines from the beginning
- You can optionally specify offset and limit for pagination
- Returns file contents with line numbers`

const defaultReadLimit = 2000

// ReadTool implements file reading.
type ReadTool struct {
	workDir string
}

// ReadInput represents the input for the read tool.
type ReadInput struct {
	Path   string `json:"path"`
	Offset int    `json:"offset,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

// NewReadTool creates a new read tool.
func NewReadTool(workDir string) *ReadTool {
	return &ReadTool{workDir: workDir}
}

func (t *ReadTool) Name() string        { return "read" }
func (t *ReadTool) Description() string { return readDescription }

func (t *ReadTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {
				"type": "string",
				"description": "The path to the file to read"
			},
			"offset": {
				"type": "integer",
				"description": "Line number to start reading from"
			},
			"limit": {
				"type": "integer",
				"description": "Number of lines to read (default: 2000)"
			}
		},
		"required": ["path"]
	}`)
}

func (t *ReadTool) SandboxPreference() sandbox.Preference { return sandbox.PreferenceForbid }
func (t *ReadTool) SupportsParallel() bool                { return true }
func (t *ReadTool) EscalateOnFailure() bool               { return false }

// ApprovalRequirement: reading is non-destructive and runs in-process, so it
// proceeds without asking and without a sandbox.
func (t *ReadTool) ApprovalRequirement(input json.RawMessage) Requirement {
	return SkipBypassSandbox()
}

func (t *ReadTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params ReadInput
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, invalidInput(t.Name(), err)
	}
	if params.Path == "" {
		return nil, invalidInputf(t.Name(), "path is required")
	}

	path := params.Path
	if !filepath.IsAbs(path) {
		path = filepath.Join(toolCtx.WorkDir, path)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	limit := params.Limit
	if limit <= 0 {
		limit = defaultReadLimit
	}

	var sb strings.Builder
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNum := 0
	written := 0
	for scanner.Scan() {
		lineNum++
		if lineNum <= params.Offset {
			continue
		}
		if written >= limit {
			break
		}
		fmt.Fprintf(&sb, "%6d\t%s\n", lineNum, scanner.Text())
		written++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return &Result{
		Title:  params.Path,
		Output: sb.String(),
		Metadata: map[string]any{
			"lines": written,
		},
	}, nil
}
