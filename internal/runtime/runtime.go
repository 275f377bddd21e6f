// Package runtime dispatches tool calls through a shared admission gate so
// that parallel-safe tools overlap while everything else runs exclusively.
package runtime

import (
	"context"
	"encoding/json"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/execguard/execguard/internal/orchestrator"
	"github.com/execguard/execguard/internal/tool"
)

// Call is one tool invocation. ID is caller-supplied and is echoed back on
// the result so batches can be correlated without positional bookkeeping.
type Call struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// CallResult pairs a call's outcome with its id.
type CallResult struct {
	ID     string       `json:"id"`
	Name   string       `json:"name"`
	Result *tool.Result `json:"result,omitempty"`
	Err    error        `json:"-"`
}

// Runtime serializes tool dispatch behind a single reader-writer gate.
// Tools that declare SupportsParallel take a shared permit and may overlap;
// all other tools take the exclusive permit and run alone.
type Runtime struct {
	registry *tool.Registry
	orch     *orchestrator.Orchestrator

	gate sync.RWMutex
}

// New creates a runtime over a registry and its orchestrator.
func New(registry *tool.Registry, orch *orchestrator.Orchestrator) *Runtime {
	return &Runtime{registry: registry, orch: orch}
}

// supportsParallel reports whether a call may share the gate. Unknown tools
// (provider-backed or misspelled) are treated as exclusive.
func (r *Runtime) supportsParallel(name string) bool {
	t, ok := r.registry.Get(name)
	return ok && t.SupportsParallel()
}

// Execute runs a single call under the appropriate admission permit.
func (r *Runtime) Execute(ctx context.Context, call Call, toolCtx *tool.Context, opts orchestrator.RunOptions) CallResult {
	if r.supportsParallel(call.Name) {
		r.gate.RLock()
		defer r.gate.RUnlock()
	} else {
		r.gate.Lock()
		defer r.gate.Unlock()
	}
	return r.run(ctx, call, toolCtx, opts)
}

func (r *Runtime) run(ctx context.Context, call Call, toolCtx *tool.Context, opts orchestrator.RunOptions) CallResult {
	result, err := r.orch.Run(ctx, call.Name, call.Input, toolCtx, opts)
	return CallResult{ID: call.ID, Name: call.Name, Result: result, Err: err}
}

// ExecuteBatch runs a batch, overlapping the parallel-safe subset under one
// shared permit and running the rest one at a time under the exclusive
// permit. Result order matches call order only for the sequential subset;
// use ExecuteBatchWithIDs when order matters.
func (r *Runtime) ExecuteBatch(ctx context.Context, calls []Call, toolCtx *tool.Context, opts orchestrator.RunOptions) []CallResult {
	parallel, sequential := r.partition(calls)

	results := make([]CallResult, 0, len(calls))
	var mu sync.Mutex

	if len(parallel) > 0 {
		r.gate.RLock()
		g, gctx := errgroup.WithContext(ctx)
		for _, call := range parallel {
			call := call
			g.Go(func() error {
				res := r.run(gctx, call, toolCtx, opts)
				mu.Lock()
				results = append(results, res)
				mu.Unlock()
				return nil
			})
		}
		g.Wait()
		r.gate.RUnlock()
	}

	for _, call := range sequential {
		r.gate.Lock()
		res := r.run(ctx, call, toolCtx, opts)
		r.gate.Unlock()
		results = append(results, res)
	}

	return results
}

// ExecuteBatchWithIDs is the order-preserving batch variant: results come
// back indexed by submission order regardless of completion timing.
func (r *Runtime) ExecuteBatchWithIDs(ctx context.Context, calls []Call, toolCtx *tool.Context, opts orchestrator.RunOptions) []CallResult {
	results := make([]CallResult, len(calls))

	var parallelIdx, sequentialIdx []int
	for i, call := range calls {
		if r.supportsParallel(call.Name) {
			parallelIdx = append(parallelIdx, i)
		} else {
			sequentialIdx = append(sequentialIdx, i)
		}
	}

	if len(parallelIdx) > 0 {
		r.gate.RLock()
		g, gctx := errgroup.WithContext(ctx)
		for _, i := range parallelIdx {
			i := i
			g.Go(func() error {
				results[i] = r.run(gctx, calls[i], toolCtx, opts)
				return nil
			})
		}
		g.Wait()
		r.gate.RUnlock()
	}

	for _, i := range sequentialIdx {
		r.gate.Lock()
		results[i] = r.run(ctx, calls[i], toolCtx, opts)
		r.gate.Unlock()
	}

	return results
}

func (r *Runtime) partition(calls []Call) (parallel, sequential []Call) {
	for _, call := range calls {
		if r.supportsParallel(call.Name) {
			parallel = append(parallel, call)
		} else {
			sequential = append(sequential, call)
		}
	}
	return parallel, sequential
}
