package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/execguard/execguard/internal/sandbox"
)

const globDescription = `Fast file pattern matching.

Usage:
- Supports glob patterns like "**/*.go" or "src/**/*.ts"
- Returns matching file paths relative to the search root, sorted
- Use this tool when you need to find files by name patterns`

const maxGlobResults = 1000

// GlobTool implements file pattern matching.
type GlobTool struct {
	workDir string
}

// GlobInput represents the input for the glob tool.
type GlobInput struct {
	Pattern string `json:"pattern"`
	Path    string `json:"path,omitempty"`
}

// NewGlobTool creates a new glob tool.
func NewGlobTool(workDir string) *GlobTool {
	return &GlobTool{workDir: workDir}
}

func (t *GlobTool) Name() string        { return "glob" }
func (t *GlobTool) Description() string { return globDescription }

func (t *GlobTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"pattern": {
				"type": "string",
				"description": "The glob pattern to match files against"
			},
			"path": {
				"type": "string",
				"description": "Directory to search in (default: workspace root)"
			}
		},
		"required": ["pattern"]
	}`)
}

func (t *GlobTool) SandboxPreference() sandbox.Preference { return sandbox.PreferenceForbid }
func (t *GlobTool) SupportsParallel() bool                { return true }
func (t *GlobTool) EscalateOnFailure() bool               { return false }

func (t *GlobTool) ApprovalRequirement(input json.RawMessage) Requirement {
	return SkipBypassSandbox()
}

func (t *GlobTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params GlobInput
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, invalidInput(t.Name(), err)
	}
	if params.Pattern == "" {
		return nil, invalidInputf(t.Name(), "pattern is required")
	}

	root := params.Path
	if root == "" {
		root = toolCtx.WorkDir
	}

	matches, err := doublestar.Glob(os.DirFS(root), params.Pattern)
	if err != nil {
		return nil, fmt.Errorf("glob failed: %w", err)
	}

	sort.Strings(matches)
	truncated := false
	if len(matches) > maxGlobResults {
		matches = matches[:maxGlobResults]
		truncated = true
	}

	output := strings.Join(matches, "\n")
	if truncated {
		output += "\n... (results truncated)"
	}
	if len(matches) == 0 {
		output = "No files found"
	}

	return &Result{
		Title:  params.Pattern,
		Output: output,
		Metadata: map[string]any{
			"matches":   len(matches),
			"truncated": truncated,
		},
	}, nil
}
