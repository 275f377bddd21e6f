package event

// ApprovalRequiredData is the data for approval.required events.
type ApprovalRequiredData struct {
	ID       string `json:"id"`
	ToolName string `json:"toolName"`
	Reason   string `json:"reason"`
}

// ApprovalResolvedData is the data for approval.resolved events.
type ApprovalResolvedData struct {
	ID       string `json:"id"`
	ToolName string `json:"toolName"`
	Approved bool   `json:"approved"`
}

// ToolStartedData is the data for tool.started events.
type ToolStartedData struct {
	ToolName string `json:"toolName"`
	Sandbox  string `json:"sandbox,omitempty"`
}

// ToolFinishedData is the data for tool.finished events.
type ToolFinishedData struct {
	ToolName string `json:"toolName"`
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
}

// ToolEscalatedData is the data for tool.escalated events, published when a
// failed sandboxed execution is retried without the sandbox.
type ToolEscalatedData struct {
	ToolName string `json:"toolName"`
	Error    string `json:"error"`
}

// CacheHitData is the data for cache.hit events, published when an approval
// requirement is satisfied from the cache instead of a prompt.
type CacheHitData struct {
	ToolName string `json:"toolName"`
	Decision string `json:"decision"`
}

// RulesReloadedData is the data for rules.reloaded events.
type RulesReloadedData struct {
	Path  string `json:"path"`
	Rules int    `json:"rules"`
}
