package queue

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chronicle/pkg/audit"
)

func mkEvent(n int) audit.Event {
	return audit.Event{
		ID:        uuid.New(),
		Type:      audit.TypeUpdate,
		Timestamp: time.Date(2025, 6, 1, 12, 0, n, 0, time.UTC),
		Resource:  audit.Resource{ID: "doc-1"},
	}
}

func TestMemory_DrainReturnsArrivalOrder(t *testing.T) {
	ctx := context.Background()
	q := NewMemory()

	events := []audit.Event{mkEvent(0), mkEvent(1), mkEvent(2)}
	require.NoError(t, q.Enqueue(ctx, events...))

	drained, err := q.DrainAll(ctx)
	require.NoError(t, err)
	require.Len(t, drained, 3)
	for i := range events {
		assert.Equal(t, events[i].ID, drained[i].ID)
	}
	assert.Equal(t, 0, q.Len())
}

func TestMemory_RequeuePreservesOrderAtHead(t *testing.T) {
	ctx := context.Background()
	q := NewMemory()

	aborted := []audit.Event{mkEvent(0), mkEvent(1)}
	late := mkEvent(2)
	require.NoError(t, q.Enqueue(ctx, late))
	require.NoError(t, q.Requeue(ctx, aborted))

	drained, err := q.DrainAll(ctx)
	require.NoError(t, err)
	require.Len(t, drained, 3)
	assert.Equal(t, aborted[0].ID, drained[0].ID, "requeued events come first")
	assert.Equal(t, aborted[1].ID, drained[1].ID)
	assert.Equal(t, late.ID, drained[2].ID)
}

func TestMemory_DrainEmpty(t *testing.T) {
	drained, err := NewMemory().DrainAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, drained)
}
