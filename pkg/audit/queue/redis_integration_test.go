//go:build integration

package queue

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chronicle/pkg/audit"
	"chronicle/pkg/testutil/containers"
)

func TestRedisQueue_Integration(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()
	require.NoError(t, rc.FlushAll(ctx))

	q := NewRedis(rc.Client, "chronicle:test:events")

	mk := func(n int) audit.Event {
		return audit.Event{
			ID:        uuid.New(),
			Type:      audit.TypeUpdate,
			Timestamp: time.Date(2025, 6, 1, 12, 0, n, 0, time.UTC),
			Resource:  audit.Resource{ID: "doc-1"},
			Fields: map[string]audit.FieldChange{
				"title": {Old: "a", New: "b"},
			},
			FieldOrder: []string{"title"},
			Rule:       audit.Rule{Digestible: true, DigestWindow: 5 * time.Minute},
		}
	}

	t.Run("enqueue and drain preserve order and payload", func(t *testing.T) {
		events := []audit.Event{mk(0), mk(1), mk(2)}
		require.NoError(t, q.Enqueue(ctx, events...))

		drained, err := q.DrainAll(ctx)
		require.NoError(t, err)
		require.Len(t, drained, 3)
		for i := range events {
			assert.Equal(t, events[i].ID, drained[i].ID)
			assert.Equal(t, events[i].Fields, drained[i].Fields)
			assert.True(t, events[i].Timestamp.Equal(drained[i].Timestamp))
		}

		n, err := q.Len(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("requeue puts events back at the head", func(t *testing.T) {
		aborted := []audit.Event{mk(0), mk(1)}
		late := mk(2)
		require.NoError(t, q.Enqueue(ctx, late))
		require.NoError(t, q.Requeue(ctx, aborted))

		drained, err := q.DrainAll(ctx)
		require.NoError(t, err)
		require.Len(t, drained, 3)
		assert.Equal(t, aborted[0].ID, drained[0].ID)
		assert.Equal(t, aborted[1].ID, drained[1].ID)
		assert.Equal(t, late.ID, drained[2].ID)
	})
}
