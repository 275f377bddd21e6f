// Package approval provides approval decision caching and the interactive
// approval broker for tool execution.
package approval

// Decision represents a cached or freshly made approval decision.
type Decision string

const (
	// ApproveOnce approves the current call only. Never cached.
	ApproveOnce Decision = "approve_once"
	// ApproveForSession approves equivalent calls until the session TTL lapses.
	ApproveForSession Decision = "approve_session"
	// ApproveForPattern approves the generalized pattern without expiry.
	ApproveForPattern Decision = "approve_pattern"
	// DenyOnce denies the current call only. Never cached.
	DenyOnce Decision = "deny_once"
	// DenyForSession denies equivalent calls for the rest of the session.
	DenyForSession Decision = "deny_session"
)

// ShouldCache reports whether a decision may be stored in the cache or on
// disk. Single-use decisions are never written anywhere.
func (d Decision) ShouldCache() bool {
	switch d {
	case ApproveForSession, ApproveForPattern, DenyForSession:
		return true
	}
	return false
}

// IsApproval reports whether the decision permits execution.
func (d Decision) IsApproval() bool {
	switch d {
	case ApproveOnce, ApproveForSession, ApproveForPattern:
		return true
	}
	return false
}
