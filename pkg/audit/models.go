package audit

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType names the kind of change an event records. The three built-in
// types have fixed merge semantics; applications register custom types
// through the rule set.
type EventType string

const (
	TypeCreate EventType = "create"
	TypeUpdate EventType = "update"
	TypeDelete EventType = "delete"
)

// builtinTypes is the closed set of reserved event type names. Custom types
// may not collide with these.
var builtinTypes = map[EventType]bool{
	TypeCreate: true,
	TypeUpdate: true,
	TypeDelete: true,
}

// Reserved reports whether t collides with a built-in type name.
func (t EventType) Reserved() bool {
	return builtinTypes[t]
}

// Resource identifies the audited subject. Equality is by ID only; Name is a
// display snapshot taken at event time and never updated retroactively.
type Resource struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Categories []string `json:"categories,omitempty"`
}

// MaxResourceCategories caps the free-form category labels on a resource.
const MaxResourceCategories = 3

// Actor identifies who caused an event. The zero value means the event was
// automated ("system"); that is a distinct grouping identity, not a wildcard.
type Actor struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// systemActorKey groups automated events separately from any real actor.
const systemActorKey = "system"

// Key returns the grouping identity for the actor.
func (a Actor) Key() string {
	if a.ID == "" {
		return systemActorKey
	}
	return a.ID
}

// FieldChange holds the atomic value(s) for one attribute path. Updates carry
// an old/new pair; creates populate New only, deletes populate Old only.
type FieldChange struct {
	Old any `json:"old,omitempty"`
	New any `json:"new,omitempty"`
}

// Event is the canonical, immutable audit record derived from a change.
// Merging never mutates an Event; the digest engine only produces new
// Digest values from them.
type Event struct {
	ID        uuid.UUID              `json:"id"`
	Type      EventType              `json:"eventType"`
	Timestamp time.Time              `json:"timestamp"`
	Tags      []string               `json:"tags,omitempty"`
	Resource  Resource               `json:"resource"`
	Actor     Actor                  `json:"actor,omitempty"`
	Fields    map[string]FieldChange `json:"fields,omitempty"`

	// FieldOrder preserves first-appearance insertion order of Fields keys.
	// Truncation during merging is deterministic only because of it.
	FieldOrder []string `json:"fieldOrder,omitempty"`

	// Rule is resolved once at construction time and never re-resolved.
	Rule Rule `json:"rule"`
}

// GroupKey partitions events before merging: same resource, same actor.
type GroupKey struct {
	ResourceID string
	ActorKey   string
}

// Group returns the event's partition key.
func (e Event) Group() GroupKey {
	return GroupKey{ResourceID: e.Resource.ID, ActorKey: e.Actor.Key()}
}

// Digest is the merged representation of one or more contiguous, related
// events. Count==1 is a valid passthrough digest; digests are never merged
// further.
type Digest struct {
	Event

	// StartDate is the timestamp of the earliest constituent event. The
	// embedded Timestamp is the latest constituent's timestamp.
	StartDate time.Time `json:"startDate"`
	Count     int       `json:"count"`
	Truncated bool      `json:"truncated,omitempty"`
}

// digestNamespace seeds deterministic digest identifiers.
var digestNamespace = uuid.MustParse("8f3c1d4a-52b6-4f07-9d0e-2c6a7b1e9c44")

// DedupID derives a stable identifier from the grouping key, start date and
// count. Drivers use it as their idempotency key: delivering the same digest
// twice must not double-count in storage.
func (d Digest) DedupID() uuid.UUID {
	name := fmt.Sprintf("%s|%s|%d|%d",
		d.Resource.ID, d.Actor.Key(), d.StartDate.UnixNano(), d.Count)
	return uuid.NewSHA1(digestNamespace, []byte(name))
}
