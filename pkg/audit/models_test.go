package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActorKey(t *testing.T) {
	assert.Equal(t, "system", Actor{}.Key(), "absent actor is the system identity")
	assert.Equal(t, "u-1", Actor{ID: "u-1", Name: "Dana"}.Key())
}

func TestEventGroup(t *testing.T) {
	e := Event{Resource: Resource{ID: "doc-1"}, Actor: Actor{ID: "u-1"}}
	assert.Equal(t, GroupKey{ResourceID: "doc-1", ActorKey: "u-1"}, e.Group())

	automated := Event{Resource: Resource{ID: "doc-1"}}
	assert.Equal(t, GroupKey{ResourceID: "doc-1", ActorKey: "system"}, automated.Group())
}

func TestReservedTypes(t *testing.T) {
	assert.True(t, TypeCreate.Reserved())
	assert.True(t, TypeUpdate.Reserved())
	assert.True(t, TypeDelete.Reserved())
	assert.False(t, EventType("submit").Reserved())
}

func TestDigestDedupID_Stable(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	d := Digest{
		Event: Event{
			Type:     TypeUpdate,
			Resource: Resource{ID: "doc-1"},
			Actor:    Actor{ID: "u-1"},
		},
		StartDate: start,
		Count:     3,
	}

	require.Equal(t, d.DedupID(), d.DedupID(), "dedup id must be deterministic")

	// Display names are metadata, not identity.
	renamed := d
	renamed.Resource.Name = "renamed"
	assert.Equal(t, d.DedupID(), renamed.DedupID())

	other := d
	other.Count = 2
	assert.NotEqual(t, d.DedupID(), other.DedupID())

	shifted := d
	shifted.StartDate = start.Add(time.Second)
	assert.NotEqual(t, d.DedupID(), shifted.DedupID())
}
