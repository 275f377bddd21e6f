// Package approver provides non-interactive consumers for the approval
// broker, used in headless runs where no human is available to answer
// prompts.
package approver

import (
	"github.com/execguard/execguard/internal/approval"
	"github.com/execguard/execguard/internal/logging"
	"github.com/execguard/execguard/internal/permission"
)

// Func decides one pending approval.
type Func func(*approval.PendingApproval) approval.Reply

// Serve answers broker requests with fn on a background goroutine until the
// returned stop function is called.
func Serve(broker *approval.Broker, fn Func) (stop func()) {
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		for {
			select {
			case pending, ok := <-broker.Requests():
				if !ok {
					return
				}
				pending.Respond(fn(pending))
			case <-done:
				return
			}
		}
	}()
	return func() {
		close(done)
		<-finished
	}
}

// AutoApprove approves every request. Replies are single-use so unattended
// approvals never outlive the run through the cache.
func AutoApprove(verbose bool) Func {
	return func(pending *approval.PendingApproval) approval.Reply {
		if verbose {
			logging.Info().
				Str("tool", pending.ToolName).
				Str("reason", pending.Reason).
				Msg("auto-approved")
		}
		return approval.Reply{Kind: approval.ReplyApproveOnce}
	}
}

// DenyAll refuses every request with the given reason. The safe default for
// headless runs that should never execute approval-gated calls.
func DenyAll(reason string) Func {
	return func(pending *approval.PendingApproval) approval.Reply {
		logging.Debug().Str("tool", pending.ToolName).Msg("denied: no interactive approver")
		return approval.Reply{Kind: approval.ReplyDeny, Reason: reason}
	}
}

// FromEvaluator answers from a rule evaluator: Allow approves once, anything
// else denies. Ask has no one to ask in headless mode, so it denies too.
func FromEvaluator(source func() *permission.Evaluator) Func {
	return func(pending *approval.PendingApproval) approval.Reply {
		result := source().EvaluateTool(pending.ToolName, pending.Input)
		if result.Action == permission.ActionAllow {
			return approval.Reply{Kind: approval.ReplyApproveOnce}
		}
		reason := "denied by policy"
		if result.MatchedRule != "" {
			reason = "denied by rule " + result.MatchedRule
		}
		return approval.Reply{Kind: approval.ReplyDeny, Reason: reason}
	}
}
