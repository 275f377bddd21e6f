package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/execguard/execguard/internal/permission"
)

// ruleFile is the YAML shape of a rule file: either a bare list of rules or
// a document with a top-level "rules" key.
type ruleFile struct {
	Rules []permission.Rule `yaml:"rules"`
}

// LoadRuleFile reads permission rules from a YAML file. File order is
// preserved; later rules override earlier ones at evaluation time.
func LoadRuleFile(path string) ([]permission.Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule file %s: %w", path, err)
	}
	return parseRules(data, path)
}

func parseRules(data []byte, path string) ([]permission.Rule, error) {
	var doc ruleFile
	if err := yaml.Unmarshal(data, &doc); err == nil && doc.Rules != nil {
		return validateRules(doc.Rules, path)
	}

	var bare []permission.Rule
	if err := yaml.Unmarshal(data, &bare); err != nil {
		return nil, fmt.Errorf("parse rule file %s: %w", path, err)
	}
	return validateRules(bare, path)
}

func validateRules(rules []permission.Rule, path string) ([]permission.Rule, error) {
	for i, r := range rules {
		if r.Permission == "" {
			return nil, fmt.Errorf("rule file %s: rule %d has no permission", path, i)
		}
		if r.Pattern == "" {
			return nil, fmt.Errorf("rule file %s: rule %d has no pattern", path, i)
		}
		switch r.Action {
		case permission.ActionAllow, permission.ActionDeny, permission.ActionAsk:
		default:
			return nil, fmt.Errorf("rule file %s: rule %d has unknown action %q", path, i, r.Action)
		}
	}
	return rules, nil
}
