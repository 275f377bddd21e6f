// Package orchestrator implements the approval, sandbox and escalation
// control flow around tool execution.
package orchestrator

import (
	"context"
	"encoding/json"

	"github.com/execguard/execguard/internal/approval"
	"github.com/execguard/execguard/internal/event"
	"github.com/execguard/execguard/internal/logging"
	"github.com/execguard/execguard/internal/permission"
	"github.com/execguard/execguard/internal/sandbox"
	"github.com/execguard/execguard/internal/tool"
)

// RunOptions are per-call overrides. The zero value enforces everything.
type RunOptions struct {
	// SkipApproval suppresses the interactive prompt for this call.
	SkipApproval bool
	// SkipSandbox executes directly regardless of sandbox selection.
	SkipSandbox bool
}

// ProviderDispatcher executes tools the direct registry does not know about.
// Provider-backed tools implement their own checks, so calls dispatched here
// bypass the approval and sandbox pipeline entirely.
type ProviderDispatcher interface {
	Dispatch(ctx context.Context, name string, input json.RawMessage) (*tool.Result, error)
}

// PostProcessor adjusts a successful result, e.g. appending an advisory to
// the textual output. It must not change success into failure or vice versa.
type PostProcessor func(toolName string, result *tool.Result)

// Orchestrator composes permission evaluation, approval caching, interactive
// approval and sandboxed execution into a single Run entry point.
type Orchestrator struct {
	registry  *tool.Registry
	broker    *approval.Broker
	cache     *approval.Cache
	evaluator func() *permission.Evaluator
	provider  ProviderDispatcher
	post      []PostProcessor
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithCache attaches an approval cache.
func WithCache(cache *approval.Cache) Option {
	return func(o *Orchestrator) { o.cache = cache }
}

// WithEvaluator attaches a permission evaluator, consulted before the tool's
// own approval requirement.
func WithEvaluator(e *permission.Evaluator) Option {
	return func(o *Orchestrator) { o.evaluator = func() *permission.Evaluator { return e } }
}

// WithEvaluatorSource attaches an evaluator looked up per call, so a rule
// watcher can swap in reloaded rules without rebuilding the orchestrator.
func WithEvaluatorSource(source func() *permission.Evaluator) Option {
	return func(o *Orchestrator) { o.evaluator = source }
}

// WithProvider attaches a dispatcher for tools outside the direct registry.
func WithProvider(p ProviderDispatcher) Option {
	return func(o *Orchestrator) { o.provider = p }
}

// WithPostProcessor appends an output post-processor.
func WithPostProcessor(p PostProcessor) Option {
	return func(o *Orchestrator) { o.post = append(o.post, p) }
}

// New creates an orchestrator over a tool registry and approval broker.
func New(registry *tool.Registry, broker *approval.Broker, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry: registry,
		broker:   broker,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes one tool call through the full pipeline: requirement check,
// cache consult, interactive approval, sandboxed or direct execution, a
// single escalation retry for tools that opt in, and post-processing.
func (o *Orchestrator) Run(ctx context.Context, name string, input json.RawMessage, toolCtx *tool.Context, opts RunOptions) (*tool.Result, error) {
	t, ok := o.registry.Get(name)
	if !ok {
		if o.provider != nil {
			// Provider-backed tools run their own checks.
			return o.provider.Dispatch(ctx, name, input)
		}
		_, err := o.registry.Lookup(name)
		return nil, err
	}

	// A configured rule can veto or fast-path any tool without the tool's
	// cooperation; Ask and the default fall through to the tool's own
	// requirement.
	ruleAllowed := false
	if o.evaluator != nil {
		res := o.evaluator().EvaluateTool(name, input)
		switch res.Action {
		case permission.ActionDeny:
			return nil, &ForbiddenError{Tool: name, Reason: "denied by rule " + res.MatchedRule}
		case permission.ActionAllow:
			ruleAllowed = res.MatchedRule != ""
		}
	}

	req := t.ApprovalRequirement(input)
	sandboxed := true

	switch req.Kind {
	case tool.RequirementForbidden:
		return nil, &ForbiddenError{Tool: name, Reason: req.Reason}

	case tool.RequirementSkip:
		if req.BypassSandbox || opts.SkipSandbox {
			sandboxed = false
		}

	case tool.RequirementNeedsApproval:
		if opts.SkipSandbox {
			sandboxed = false
		}
		if !opts.SkipApproval && !toolCtx.FullAuto && !ruleAllowed {
			newInput, err := o.approve(ctx, t, name, input, req, toolCtx)
			if err != nil {
				return nil, err
			}
			input = newInput
		}
	}

	result, err := o.execute(ctx, t, name, input, toolCtx, sandboxed)
	if err != nil {
		event.Publish(event.Event{
			Type: event.ToolFinished,
			Data: event.ToolFinishedData{ToolName: name, Success: false, Error: err.Error()},
		})
		return nil, err
	}

	for _, p := range o.post {
		p(name, result)
	}

	event.Publish(event.Event{
		Type: event.ToolFinished,
		Data: event.ToolFinishedData{ToolName: name, Success: true},
	})
	return result, nil
}

// approve satisfies a NeedsApproval requirement from the cache or by asking.
// It returns the input to execute with, which differs from the original only
// for Edit replies.
func (o *Orchestrator) approve(ctx context.Context, t tool.Tool, name string, input json.RawMessage, req tool.Requirement, toolCtx *tool.Context) (json.RawMessage, error) {
	key, command := o.approvalKey(name, input, toolCtx)

	if o.cache != nil {
		var cached *approval.Decision
		if command != "" {
			cached = o.cache.LookupCommand(name, command, toolCtx.WorkDir)
		} else {
			cached = o.cache.LookupKey(key)
		}
		if cached != nil {
			event.Publish(event.Event{
				Type: event.CacheHit,
				Data: event.CacheHitData{ToolName: name, Decision: string(*cached)},
			})
			if cached.IsApproval() {
				logging.Debug().Str("tool", name).Str("decision", string(*cached)).Msg("approval served from cache")
				return input, nil
			}
			return nil, &approval.DeniedError{Tool: name, Reason: "denied by cached decision"}
		}
	}

	reply, err := o.broker.Request(ctx, name, input, req.Reason, req.Metadata)
	if err != nil {
		return nil, err
	}

	if o.cache != nil {
		// Insert is a no-op for single-use decisions.
		o.cache.Insert(key, reply.Decision())
	}

	switch {
	case reply.Kind == approval.ReplyDeny:
		return nil, &approval.DeniedError{Tool: name, Reason: reply.Reason}
	case reply.Kind == approval.ReplyEdit && len(reply.NewInput) > 0:
		logging.Debug().Str("tool", name).Msg("approval substituted input")
		return reply.NewInput, nil
	default:
		return input, nil
	}
}

// approvalKey builds the content-addressed cache key for a call. Shell
// commands hash the command text plus working directory; everything else
// hashes the tool plus a directory-generalized path. The extracted command
// is returned so lookups can also match pattern-scoped approvals.
func (o *Orchestrator) approvalKey(name string, input json.RawMessage, toolCtx *tool.Context) (approval.Key, string) {
	var params struct {
		Command string `json:"command"`
	}
	if err := json.Unmarshal(input, &params); err == nil && params.Command != "" {
		return approval.KeyForCommand(name, params.Command, toolCtx.WorkDir), params.Command
	}
	return approval.KeyForPath(name, permission.ExtractPath(input)), ""
}

// execute runs the tool, sandboxed when requested, with a single direct
// retry after a failed sandboxed run for tools that opt in.
func (o *Orchestrator) execute(ctx context.Context, t tool.Tool, name string, input json.RawMessage, toolCtx *tool.Context, sandboxed bool) (*tool.Result, error) {
	kind := sandbox.KindNone
	if sandboxed {
		selected, err := sandbox.Select(t.SandboxPreference(), toolCtx.SandboxPolicy)
		if err != nil {
			return nil, &ExecutionError{Tool: name, Err: err}
		}
		kind = selected
	}

	event.Publish(event.Event{
		Type: event.ToolStarted,
		Data: event.ToolStartedData{ToolName: name, Sandbox: string(kind)},
	})

	result, err := t.Execute(ctx, input, toolCtx.WithSandbox(kind))
	if err == nil {
		return result, nil
	}
	if tool.IsInvalidInput(err) {
		return nil, err
	}

	// Single-shot escalation: one direct retry, never a loop.
	if kind != sandbox.KindNone && t.EscalateOnFailure() {
		logging.Warn().Str("tool", name).Err(err).Msg("sandboxed execution failed, escalating to direct")
		event.Publish(event.Event{
			Type: event.ToolEscalated,
			Data: event.ToolEscalatedData{ToolName: name, Error: err.Error()},
		})

		result, retryErr := t.Execute(ctx, input, toolCtx.WithSandbox(sandbox.KindNone))
		if retryErr == nil {
			return result, nil
		}
		if tool.IsInvalidInput(retryErr) {
			return nil, retryErr
		}
		return nil, &ExecutionError{Tool: name, Err: retryErr}
	}

	return nil, &ExecutionError{Tool: name, Err: err}
}
