package approval

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/execguard/execguard/internal/event"
)

// ErrCancelled is returned when an approval request is abandoned before a
// decision was sent. Distinct from denial so callers can choose to re-prompt.
var ErrCancelled = errors.New("approval request cancelled")

// DeniedError is returned when a human or policy refuses an operation.
type DeniedError struct {
	Tool   string
	Reason string
}

func (e *DeniedError) Error() string {
	if e.Reason != "" {
		return "approval denied: " + e.Reason
	}
	return "approval denied"
}

// IsDeniedError checks if an error is an approval denial.
func IsDeniedError(err error) bool {
	var denied *DeniedError
	return errors.As(err, &denied)
}

// ReplyKind enumerates the decisions an approver can send.
type ReplyKind string

const (
	// ReplyApprove approves this and equivalent calls for the session.
	ReplyApprove ReplyKind = "approve"
	// ReplyApproveOnce approves this call only.
	ReplyApproveOnce ReplyKind = "approve_once"
	// ReplyApproveAll approves the generalized pattern permanently.
	ReplyApproveAll ReplyKind = "approve_all"
	// ReplyDeny refuses the call.
	ReplyDeny ReplyKind = "deny"
	// ReplyEdit approves the call with substituted input.
	ReplyEdit ReplyKind = "edit"
)

// Reply is an approver's answer to a pending request.
type Reply struct {
	Kind     ReplyKind       `json:"kind"`
	Reason   string          `json:"reason,omitempty"`
	NewInput json.RawMessage `json:"newInput,omitempty"`
}

// Approved reports whether the reply permits execution.
func (r Reply) Approved() bool {
	switch r.Kind {
	case ReplyApprove, ReplyApproveOnce, ReplyApproveAll, ReplyEdit:
		return true
	}
	return false
}

// Decision maps the reply onto a cacheable decision scope.
func (r Reply) Decision() Decision {
	switch r.Kind {
	case ReplyApprove:
		return ApproveForSession
	case ReplyApproveAll:
		return ApproveForPattern
	case ReplyDeny:
		return DenyOnce
	default:
		return ApproveOnce
	}
}

// PendingApproval is a single approval request in flight. It is sent once on
// the broker channel and must be resolved exactly once, either with Respond
// or Cancel.
type PendingApproval struct {
	ID       string          `json:"id"`
	ToolName string          `json:"toolName"`
	Input    json.RawMessage `json:"input"`
	Reason   string          `json:"reason"`
	Metadata map[string]any  `json:"metadata,omitempty"`

	reply chan Reply
	once  sync.Once
}

// Respond delivers the approver's decision. Returns false if the request was
// already resolved.
func (p *PendingApproval) Respond(r Reply) bool {
	delivered := false
	p.once.Do(func() {
		p.reply <- r
		close(p.reply)
		delivered = true
	})
	return delivered
}

// Cancel abandons the request without a decision. The waiting caller sees
// ErrCancelled, not a denial.
func (p *PendingApproval) Cancel() {
	p.once.Do(func() {
		close(p.reply)
	})
}

// Broker carries approval requests from the orchestrator to a single external
// approver (UI, CLI or automated policy) and routes each one-shot reply back.
type Broker struct {
	requests chan *PendingApproval
}

// NewBroker creates a broker. The request channel is buffered so that
// publishing a request does not block the orchestrator when the approver is
// momentarily busy.
func NewBroker() *Broker {
	return &Broker{
		requests: make(chan *PendingApproval, 16),
	}
}

// Requests exposes the pending request stream. The external approver is the
// sole consumer and must resolve every request it reads.
func (b *Broker) Requests() <-chan *PendingApproval {
	return b.requests
}

// Request submits an approval request and suspends until the paired reply
// arrives, the request is cancelled, or the context is done.
func (b *Broker) Request(ctx context.Context, toolName string, input json.RawMessage, reason string, metadata map[string]any) (Reply, error) {
	pending := &PendingApproval{
		ID:       ulid.Make().String(),
		ToolName: toolName,
		Input:    input,
		Reason:   reason,
		Metadata: metadata,
		reply:    make(chan Reply, 1),
	}

	select {
	case b.requests <- pending:
	case <-ctx.Done():
		return Reply{}, ctx.Err()
	}

	event.Publish(event.Event{
		Type: event.ApprovalRequired,
		Data: event.ApprovalRequiredData{
			ID:       pending.ID,
			ToolName: toolName,
			Reason:   reason,
		},
	})

	select {
	case <-ctx.Done():
		pending.Cancel()
		return Reply{}, ctx.Err()
	case reply, ok := <-pending.reply:
		if !ok {
			return Reply{}, ErrCancelled
		}
		event.Publish(event.Event{
			Type: event.ApprovalResolved,
			Data: event.ApprovalResolvedData{
				ID:       pending.ID,
				ToolName: toolName,
				Approved: reply.Approved(),
			},
		})
		return reply, nil
	}
}
