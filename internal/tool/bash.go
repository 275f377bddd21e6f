package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/execguard/execguard/internal/permission"
	"github.com/execguard/execguard/internal/sandbox"
)

const (
	DefaultBashTimeout = 120 * time.Second
	MaxBashTimeout     = 10 * time.Minute
	MaxOutputLength    = 30000
)

const bashDescription = `Executes a shell command.

Usage:
- command is required
- Optional timeout in milliseconds (max 600000)
- Output is captured from stdout and stderr
- Read-only commands run without approval; anything else asks first`

// readOnlyCommands are commands that never mutate state and skip approval.
var readOnlyCommands = map[string]bool{
	"ls":     true,
	"cat":    true,
	"head":   true,
	"tail":   true,
	"grep":   true,
	"rg":     true,
	"find":   true,
	"pwd":    true,
	"echo":   true,
	"which":  true,
	"wc":     true,
	"file":   true,
	"stat":   true,
	"whoami": true,
	"date":   true,
	"env":    true,
}

// forbiddenCommands are never executed regardless of approval.
var forbiddenCommands = map[string]bool{
	"sudo":     true,
	"su":       true,
	"shutdown": true,
	"reboot":   true,
	"halt":     true,
	"mkfs":     true,
}

// BashTool implements shell command execution.
type BashTool struct {
	workDir string
	shell   string
}

// BashInput represents the input for the bash tool.
type BashInput struct {
	Command     string `json:"command"`
	Timeout     int    `json:"timeout,omitempty"` // milliseconds
	Description string `json:"description,omitempty"`
}

// NewBashTool creates a new bash tool.
func NewBashTool(workDir string) *BashTool {
	return &BashTool{
		workDir: workDir,
		shell:   detectShell(),
	}
}

func detectShell() string {
	if s := os.Getenv("SHELL"); s != "" {
		if !strings.HasSuffix(s, "/fish") && !strings.HasSuffix(s, "/nu") {
			return s
		}
	}
	if runtime.GOOS == "darwin" {
		return "/bin/zsh"
	}
	if bash, err := exec.LookPath("bash"); err == nil {
		return bash
	}
	return "/bin/sh"
}

func (t *BashTool) Name() string        { return "bash" }
func (t *BashTool) Description() string { return bashDescription }

func (t *BashTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"command": {
				"type": "string",
				"description": "The shell command to execute"
			},
			"timeout": {
				"type": "integer",
				"description": "Optional timeout in milliseconds (max 600000)"
			},
			"description": {
				"type": "string",
				"description": "Brief description of what the command does"
			}
		},
		"required": ["command"]
	}`)
}

func (t *BashTool) SandboxPreference() sandbox.Preference { return sandbox.PreferenceAuto }
func (t *BashTool) SupportsParallel() bool                { return false }
func (t *BashTool) EscalateOnFailure() bool               { return true }

// ApprovalRequirement parses the command line and classifies it. A line made
// only of read-only commands skips approval; a line touching a forbidden
// command is refused; everything else asks.
func (t *BashTool) ApprovalRequirement(input json.RawMessage) Requirement {
	var params BashInput
	if err := json.Unmarshal(input, &params); err != nil || params.Command == "" {
		return Forbidden("missing or malformed command")
	}

	commands, err := permission.ParseCommands(params.Command)
	if err != nil {
		return NeedsApproval(fmt.Sprintf("could not parse command %q; manual review required", params.Command))
	}

	allReadOnly := len(commands) > 0
	for _, cmd := range commands {
		if forbiddenCommands[cmd.Name] {
			return Forbidden(fmt.Sprintf("command %q is not permitted", cmd.Name))
		}
		if !readOnlyCommands[cmd.Name] {
			allReadOnly = false
		}
	}
	if allReadOnly {
		return Skip()
	}

	return NeedsApproval("run: " + params.Command)
}

func (t *BashTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params BashInput
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, invalidInput(t.Name(), err)
	}
	if params.Command == "" {
		return nil, invalidInputf(t.Name(), "command is required")
	}

	timeout := DefaultBashTimeout
	if params.Timeout > 0 {
		timeout = time.Duration(params.Timeout) * time.Millisecond
		if timeout > MaxBashTimeout {
			timeout = MaxBashTimeout
		}
	}

	argv, err := toolCtx.WrapCommand([]string{t.shell, "-c", params.Command})
	if err != nil {
		return nil, fmt.Errorf("failed to prepare sandboxed command: %w", err)
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, argv[0], argv[1:]...)
	cmd.Dir = toolCtx.WorkDir
	if len(toolCtx.Env) > 0 {
		cmd.Env = os.Environ()
		for k, v := range toolCtx.Env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
	}

	output, err := cmd.CombinedOutput()
	text := truncateOutput(string(output))

	if execCtx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("command timed out after %s", timeout)
	}
	if err != nil {
		return nil, fmt.Errorf("command failed: %w\n%s", err, text)
	}

	title := params.Description
	if title == "" {
		title = params.Command
	}

	return &Result{
		Title:  title,
		Output: text,
		Metadata: map[string]any{
			"command": params.Command,
		},
	}, nil
}

func truncateOutput(s string) string {
	if len(s) <= MaxOutputLength {
		return s
	}
	return s[:MaxOutputLength] + "\n... (output truncated)"
}
