package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"chronicle/pkg/audit"
	"chronicle/pkg/audit/route"
)

// RulesFile is the YAML shape of the event rule set and routing table. The
// rule set is immutable once loaded; restarting is the way to change policy.
type RulesFile struct {
	CustomTypes []string              `yaml:"custom_types"`
	EventRules  map[string]RuleConfig `yaml:"event_rules"`
	Branches    []BranchConfig        `yaml:"branches"`
}

// RuleConfig is one per-event-type policy entry. The window is a Go duration
// string ("5m", "30s").
type RuleConfig struct {
	Sync              bool   `yaml:"sync"`
	Digestible        bool   `yaml:"digestible"`
	DigestWindow      string `yaml:"digest_window"`
	DigestFieldsLimit int    `yaml:"digest_fields_limit"`
}

// BranchConfig is one routing table entry.
type BranchConfig struct {
	Name           string   `yaml:"name"`
	Tags           []string `yaml:"tags"`
	DigestibleOnly bool     `yaml:"digestible_only"`
}

// LoadRules reads the YAML rules file and builds the rule set and routing
// branches.
func LoadRules(path string) (*audit.RuleSet, []route.Branch, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read rules file: %w", err)
	}
	return ParseRules(raw)
}

// ParseRules builds the rule set and routing branches from YAML bytes.
func ParseRules(raw []byte) (*audit.RuleSet, []route.Branch, error) {
	var file RulesFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, nil, fmt.Errorf("parse rules file: %w", err)
	}

	custom := make([]audit.EventType, 0, len(file.CustomTypes))
	for _, name := range file.CustomTypes {
		custom = append(custom, audit.EventType(name))
	}

	rules := make(map[audit.EventType]audit.Rule, len(file.EventRules))
	for name, rc := range file.EventRules {
		if rc.DigestFieldsLimit < 0 {
			return nil, nil, fmt.Errorf("rule %q: digest_fields_limit must be positive", name)
		}
		var window time.Duration
		if rc.DigestWindow != "" {
			var err error
			window, err = time.ParseDuration(rc.DigestWindow)
			if err != nil {
				return nil, nil, fmt.Errorf("rule %q: bad digest_window: %w", name, err)
			}
		}
		rules[audit.EventType(name)] = audit.Rule{
			Sync:              rc.Sync,
			Digestible:        rc.Digestible,
			DigestWindow:      window,
			DigestFieldsLimit: rc.DigestFieldsLimit,
		}
	}

	ruleSet, err := audit.NewRuleSet(rules, custom)
	if err != nil {
		return nil, nil, fmt.Errorf("build rule set: %w", err)
	}

	branches := make([]route.Branch, 0, len(file.Branches))
	for _, bc := range file.Branches {
		if bc.Name == "" {
			return nil, nil, fmt.Errorf("branch with empty name")
		}
		branches = append(branches, route.Branch{
			Name:           bc.Name,
			Tags:           bc.Tags,
			DigestibleOnly: bc.DigestibleOnly,
		})
	}

	return ruleSet, branches, nil
}
