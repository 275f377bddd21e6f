// Package permission provides rule-based permission evaluation for tool execution.
package permission

import (
	"fmt"
)

// Action represents the outcome of a permission evaluation.
type Action string

const (
	ActionAllow Action = "allow"
	ActionDeny  Action = "deny"
	ActionAsk   Action = "ask"
)

// Rule maps a permission and path pattern to an action.
type Rule struct {
	Permission string `json:"permission" yaml:"permission"`
	Pattern    string `json:"pattern" yaml:"pattern"`
	Action     Action `json:"action" yaml:"action"`
	Name       string `json:"name,omitempty" yaml:"name,omitempty"`
}

// PatternError is returned when a rule pattern fails to compile.
// It surfaces at registration time; evaluation itself never fails.
type PatternError struct {
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("invalid permission pattern %q: %v", e.Pattern, e.Err)
}

func (e *PatternError) Unwrap() error {
	return e.Err
}

// IsPatternError checks if an error is a pattern compilation failure.
func IsPatternError(err error) bool {
	_, ok := err.(*PatternError)
	return ok
}
