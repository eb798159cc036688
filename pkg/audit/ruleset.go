package audit

import "time"

// Rule is the per-event-type policy resolved onto every event at
// construction time.
type Rule struct {
	// Sync asks the pipeline to deliver directly-routed events before the
	// submit call returns.
	Sync bool `json:"sync"`

	// Digestible marks the type eligible for merging. Create and delete are
	// always non-digestible by definition, whatever the configuration says.
	Digestible bool `json:"digestible"`

	// DigestWindow bounds the timestamp span of a run, anchored to the run's
	// first event.
	DigestWindow time.Duration `json:"digestWindow"`

	// DigestFieldsLimit caps merged field entries per digest.
	DigestFieldsLimit int `json:"digestFieldsLimit"`
}

// DefaultRule is the safe, non-lossy fallback for event types with no
// configured rule.
var DefaultRule = Rule{Sync: false, Digestible: false}

// RuleOverride carries call-site adjustments to a resolved rule. Nil fields
// leave the underlying value untouched.
type RuleOverride struct {
	Sync              *bool
	Digestible        *bool
	DigestWindow      *time.Duration
	DigestFieldsLimit *int
}

// RuleSet is the read-only per-type policy mapping, built once at startup.
type RuleSet struct {
	rules map[EventType]Rule
}

// NewRuleSet builds the rule set. rules may configure built-in types;
// custom lists the application-registered types, which must not collide with
// built-in names.
func NewRuleSet(rules map[EventType]Rule, custom []EventType) (*RuleSet, error) {
	rs := &RuleSet{rules: make(map[EventType]Rule, len(rules))}
	for _, t := range custom {
		if t.Reserved() {
			return nil, &ReservedNameError{Name: string(t)}
		}
	}
	for t, r := range rules {
		if !t.Reserved() {
			found := false
			for _, c := range custom {
				if c == t {
					found = true
					break
				}
			}
			if !found {
				return nil, &ValidationError{Field: string(t), Reason: "rule configured for unregistered custom type"}
			}
		}
		rs.rules[t] = clampRule(t, r)
	}
	return rs, nil
}

// Resolve merges policy by explicit precedence: call-site override >
// configured per-type rule > system default. Resolution happens once, at
// event construction; the result is attached to the event and never
// re-resolved.
func (rs *RuleSet) Resolve(t EventType, override *RuleOverride) Rule {
	rule, ok := rs.rules[t]
	if !ok {
		rule = DefaultRule
	}
	if override != nil {
		if override.Sync != nil {
			rule.Sync = *override.Sync
		}
		if override.Digestible != nil {
			rule.Digestible = *override.Digestible
		}
		if override.DigestWindow != nil {
			rule.DigestWindow = *override.DigestWindow
		}
		if override.DigestFieldsLimit != nil {
			rule.DigestFieldsLimit = *override.DigestFieldsLimit
		}
	}
	return clampRule(t, rule)
}

// clampRule enforces the definitional constraints no configuration may
// undo: create and delete never merge.
func clampRule(t EventType, r Rule) Rule {
	if t == TypeCreate || t == TypeDelete {
		r.Digestible = false
	}
	return r
}
