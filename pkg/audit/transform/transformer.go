// Package transform converts raw application changes into canonical audit
// events under a rule set. It performs no I/O; every call only constructs
// new immutable values, so a single Transformer is safe for concurrent use.
package transform

import (
	"reflect"
	"sort"
	"time"

	"github.com/google/uuid"

	"chronicle/pkg/audit"
)

// Change is the raw, not-yet-canonical description a publisher hands us.
type Change struct {
	// Type names the event type. Custom marks it as application-defined;
	// a custom type colliding with a built-in name is rejected.
	Type   string `json:"eventType"`
	Custom bool   `json:"custom,omitempty"`

	Timestamp time.Time      `json:"timestamp,omitempty"`
	Resource  audit.Resource `json:"resource"`
	Actor     audit.Actor    `json:"actor,omitempty"`

	// Fields carries the changed attributes. Updates need an old/new pair
	// per path; creates a new value, deletes an old value.
	Fields map[string]audit.FieldChange `json:"fields,omitempty"`

	// FieldOrder fixes iteration order over Fields. Optional; sorted key
	// order is used when absent.
	FieldOrder []string `json:"fieldOrder,omitempty"`

	Tags     []string            `json:"tags,omitempty"`
	Override *audit.RuleOverride `json:"-"`
}

// Result is the outcome of a successful transform.
type Result struct {
	Events []audit.Event

	// Unchanged lists update attribute paths whose old and new values were
	// equal. Permitted, but callers likely want to know.
	Unchanged []string
}

// Transformer builds canonical events from changes.
type Transformer struct {
	rules *audit.RuleSet
}

func New(rules *audit.RuleSet) *Transformer {
	return &Transformer{rules: rules}
}

// Transform validates the change and produces its ordered, non-empty event
// sequence. The event's rule is resolved here, once, with call-site override
// precedence, and never re-resolved afterward.
func (t *Transformer) Transform(change Change) (*Result, error) {
	if change.Type == "" {
		return nil, &audit.ValidationError{Reason: "event type is required"}
	}
	eventType := audit.EventType(change.Type)
	if change.Custom && eventType.Reserved() {
		return nil, &audit.ReservedNameError{Name: change.Type}
	}
	if change.Resource.ID == "" {
		return nil, &audit.ValidationError{Field: "resource.id", Reason: "required"}
	}
	if len(change.Resource.Categories) > audit.MaxResourceCategories {
		return nil, &audit.ValidationError{Field: "resource.categories", Reason: "at most three labels"}
	}

	order := fieldOrder(change)
	var unchanged []string
	if eventType == audit.TypeUpdate {
		for _, path := range order {
			fc := change.Fields[path]
			if fc.Old == nil || fc.New == nil {
				return nil, &audit.ValidationError{Field: path, Reason: "update requires old and new values"}
			}
			if reflect.DeepEqual(fc.Old, fc.New) {
				unchanged = append(unchanged, path)
			}
		}
	}

	ts := change.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	fields := make(map[string]audit.FieldChange, len(change.Fields))
	for _, path := range order {
		fields[path] = change.Fields[path]
	}

	event := audit.Event{
		ID:         uuid.New(),
		Type:       eventType,
		Timestamp:  ts,
		Tags:       append([]string(nil), change.Tags...),
		Resource:   change.Resource,
		Actor:      change.Actor,
		Fields:     fields,
		FieldOrder: order,
		Rule:       t.rules.Resolve(eventType, change.Override),
	}

	return &Result{Events: []audit.Event{event}, Unchanged: unchanged}, nil
}

// TransformAll converts a batch in order, failing on the first bad change.
func (t *Transformer) TransformAll(changes []Change) (*Result, error) {
	if len(changes) == 0 {
		return nil, &audit.ValidationError{Reason: "no changes supplied"}
	}
	out := &Result{}
	for _, c := range changes {
		res, err := t.Transform(c)
		if err != nil {
			return nil, err
		}
		out.Events = append(out.Events, res.Events...)
		out.Unchanged = append(out.Unchanged, res.Unchanged...)
	}
	return out, nil
}

func fieldOrder(change Change) []string {
	if len(change.FieldOrder) > 0 {
		order := make([]string, 0, len(change.FieldOrder))
		seen := make(map[string]bool, len(change.FieldOrder))
		for _, path := range change.FieldOrder {
			if _, ok := change.Fields[path]; ok && !seen[path] {
				order = append(order, path)
				seen[path] = true
			}
		}
		// Paths present in Fields but missing from the declared order go
		// last, sorted so the order stays deterministic.
		var rest []string
		for path := range change.Fields {
			if !seen[path] {
				rest = append(rest, path)
			}
		}
		sort.Strings(rest)
		return append(order, rest...)
	}
	order := make([]string, 0, len(change.Fields))
	for path := range change.Fields {
		order = append(order, path)
	}
	sort.Strings(order)
	return order
}
