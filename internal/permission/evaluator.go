package permission

import (
	"encoding/json"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// CompiledRule is a Rule with its pattern pre-parsed. Immutable after construction.
type CompiledRule struct {
	rule Rule
}

// Rule returns the source rule.
func (c *CompiledRule) Rule() Rule {
	return c.rule
}

func (c *CompiledRule) matches(permission, path string) bool {
	if !matchPermission(c.rule.Permission, permission) {
		return false
	}
	ok, err := doublestar.Match(c.rule.Pattern, path)
	if err != nil {
		// Patterns are validated at registration; an error here cannot happen
		// for compiled rules, but evaluation must stay total.
		return false
	}
	return ok
}

// matchPermission matches a rule's permission against a request.
// "file:*" matches "file:write"; "*" matches everything.
func matchPermission(rulePerm, reqPerm string) bool {
	if rulePerm == "*" || rulePerm == reqPerm {
		return true
	}
	if strings.HasSuffix(rulePerm, ":*") {
		return strings.HasPrefix(reqPerm, strings.TrimSuffix(rulePerm, "*"))
	}
	return false
}

// EvaluationResult is the outcome of a single evaluation call.
type EvaluationResult struct {
	Action      Action `json:"action"`
	MatchedRule string `json:"matchedRule,omitempty"`
	Permission  string `json:"permission"`
	Path        string `json:"path"`
}

// Evaluator evaluates permission requests against an ordered rule list.
// Rules are scanned in reverse registration order, so later rules override
// earlier ones. With no matching rule the default action is Allow.
type Evaluator struct {
	rules []CompiledRule
}

// NewEvaluator creates an evaluator with the given rules.
// Returns a PatternError if any rule pattern fails to compile.
func NewEvaluator(rules ...Rule) (*Evaluator, error) {
	e := &Evaluator{}
	if err := e.AddRules(rules); err != nil {
		return nil, err
	}
	return e, nil
}

// AddRule registers a rule. The pattern is validated here so that bad
// configuration surfaces immediately rather than during a request.
func (e *Evaluator) AddRule(rule Rule) error {
	if !doublestar.ValidatePattern(rule.Pattern) {
		return &PatternError{Pattern: rule.Pattern, Err: doublestar.ErrBadPattern}
	}
	e.rules = append(e.rules, CompiledRule{rule: rule})
	return nil
}

// AddRules registers rules in order. Stops at the first invalid pattern.
func (e *Evaluator) AddRules(rules []Rule) error {
	for _, r := range rules {
		if err := e.AddRule(r); err != nil {
			return err
		}
	}
	return nil
}

// Rules returns the registered rules in registration order.
func (e *Evaluator) Rules() []Rule {
	out := make([]Rule, len(e.rules))
	for i, c := range e.rules {
		out[i] = c.rule
	}
	return out
}

// Evaluate checks a permission request against the rule list.
// The last-registered matching rule wins; no match means Allow.
// Evaluation is total and side-effect free.
func (e *Evaluator) Evaluate(permission, path string) EvaluationResult {
	for i := len(e.rules) - 1; i >= 0; i-- {
		c := &e.rules[i]
		if c.matches(permission, path) {
			return EvaluationResult{
				Action:      c.rule.Action,
				MatchedRule: ruleName(c.rule),
				Permission:  permission,
				Path:        path,
			}
		}
	}
	return EvaluationResult{
		Action:     ActionAllow,
		Permission: permission,
		Path:       path,
	}
}

func ruleName(r Rule) string {
	if r.Name != "" {
		return r.Name
	}
	return r.Permission + ":" + r.Pattern
}

// pathFields is the priority order for extracting a path-like value
// from tool input.
var pathFields = []string{
	"path",
	"file_path",
	"filePath",
	"url",
	"query",
	"command",
	"pattern",
	"directory",
}

// EvaluateTool derives a permission string from the tool name and extracts a
// path-like value from its JSON input, then evaluates.
func (e *Evaluator) EvaluateTool(toolName string, input json.RawMessage) EvaluationResult {
	return e.Evaluate("tool:"+toolName, ExtractPath(input))
}

// ExtractPath pulls a path-like value out of raw tool input, trying a fixed
// priority list of fields and falling back to the input's string form.
func ExtractPath(input json.RawMessage) string {
	var fields map[string]any
	if err := json.Unmarshal(input, &fields); err != nil {
		return strings.TrimSpace(string(input))
	}
	for _, name := range pathFields {
		if v, ok := fields[name]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return strings.TrimSpace(string(input))
}
