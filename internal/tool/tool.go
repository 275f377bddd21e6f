// Package tool provides the capability interface tools expose to the
// execution-security pipeline, plus a set of reference tools.
package tool

import (
	"context"
	"encoding/json"

	"github.com/execguard/execguard/internal/sandbox"
)

// RequirementKind classifies a tool's answer to "may this input run?".
type RequirementKind string

const (
	// RequirementSkip proceeds without asking.
	RequirementSkip RequirementKind = "skip"
	// RequirementNeedsApproval suspends the call for an interactive decision.
	RequirementNeedsApproval RequirementKind = "needs_approval"
	// RequirementForbidden fails the call before execution.
	RequirementForbidden RequirementKind = "forbidden"
)

// Requirement is a tool's own approval verdict for a concrete input.
type Requirement struct {
	Kind RequirementKind
	// BypassSandbox skips sandbox selection for RequirementSkip verdicts.
	BypassSandbox bool
	// Reason explains NeedsApproval and Forbidden verdicts to the operator.
	Reason string
	// Metadata carries extra context for the approver, e.g. a diff preview.
	Metadata map[string]any
}

// Skip proceeds silently; execution still routes through sandbox selection.
func Skip() Requirement {
	return Requirement{Kind: RequirementSkip}
}

// SkipBypassSandbox proceeds silently and executes directly.
func SkipBypassSandbox() Requirement {
	return Requirement{Kind: RequirementSkip, BypassSandbox: true}
}

// NeedsApproval suspends the call for an interactive decision.
func NeedsApproval(reason string) Requirement {
	return Requirement{Kind: RequirementNeedsApproval, Reason: reason}
}

// Forbidden refuses the call outright; the tool is never executed.
func Forbidden(reason string) Requirement {
	return Requirement{Kind: RequirementForbidden, Reason: reason}
}

// Tool is the capability interface consumed by the orchestrator and runtime.
type Tool interface {
	// Name returns the tool identifier.
	Name() string

	// Description returns the tool description.
	Description() string

	// Schema returns the JSON Schema for tool input.
	Schema() json.RawMessage

	// ApprovalRequirement inspects an input and declares what the pipeline
	// must do before executing it.
	ApprovalRequirement(input json.RawMessage) Requirement

	// SandboxPreference is the tool's declared stance on isolation.
	SandboxPreference() sandbox.Preference

	// SupportsParallel reports whether calls may share the admission gate.
	SupportsParallel() bool

	// EscalateOnFailure opts in to a single direct retry after a failed
	// sandboxed execution.
	EscalateOnFailure() bool

	// Execute runs the tool.
	Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error)
}

// Context is the per-call environment. It is owned by the caller and never
// mutated by the pipeline; layers that need to adjust it work on a copy.
type Context struct {
	WorkDir   string
	SessionID string
	// FullAuto bypasses all interactive approval.
	FullAuto bool
	Env      map[string]string

	// SandboxKind is the isolation selected for this call.
	SandboxKind sandbox.Kind
	// SandboxPolicy is the session's active sandboxing policy.
	SandboxPolicy sandbox.Policy
	// Wrapper prepares subprocess commands for the selected kind.
	Wrapper sandbox.Wrapper
}

// WithSandbox returns a copy of the context with the selected sandbox kind.
func (c *Context) WithSandbox(kind sandbox.Kind) *Context {
	clone := *c
	clone.SandboxKind = kind
	return &clone
}

// WrapCommand prepares argv for the context's sandbox kind.
func (c *Context) WrapCommand(argv []string) ([]string, error) {
	if c.Wrapper == nil || c.SandboxKind == "" || c.SandboxKind == sandbox.KindNone {
		return argv, nil
	}
	return c.Wrapper.Wrap(c.SandboxKind, argv, c.WorkDir)
}

// Result represents the output of a tool execution.
type Result struct {
	Title    string         `json:"title"`
	Output   string         `json:"output"`
	Metadata map[string]any `json:"metadata,omitempty"`
}
