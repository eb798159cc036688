//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chronicle/pkg/audit"
	"chronicle/pkg/testutil/containers"
)

func TestPostgresSink_Integration(t *testing.T) {
	pc := containers.NewPostgresContainer(t)
	ctx := context.Background()

	_, err := pc.DB.ExecContext(ctx, Schema)
	require.NoError(t, err)

	sink := NewSink(pc.DB)

	d := audit.Digest{
		Event: audit.Event{
			Type:      audit.TypeUpdate,
			Timestamp: time.Date(2025, 6, 1, 12, 3, 0, 0, time.UTC),
			Resource:  audit.Resource{ID: "doc-1", Name: "Report"},
			Actor:     audit.Actor{ID: "u-1", Name: "Dana"},
			Fields: map[string]audit.FieldChange{
				"title": {Old: "v1", New: "v3"},
			},
			FieldOrder: []string{"title"},
		},
		StartDate: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Count:     2,
	}

	t.Run("deliver persists the digest", func(t *testing.T) {
		require.NoError(t, sink.Deliver(ctx, d))

		n, err := sink.CountByResource(ctx, "doc-1")
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("redelivery is absorbed by the dedup key", func(t *testing.T) {
		require.NoError(t, sink.Deliver(ctx, d))

		n, err := sink.CountByResource(ctx, "doc-1")
		require.NoError(t, err)
		assert.Equal(t, 1, n, "duplicate delivery must not double-count")
	})

	t.Run("distinct digests both persist", func(t *testing.T) {
		other := d
		other.Count = 3
		require.NoError(t, sink.Deliver(ctx, other))

		n, err := sink.CountByResource(ctx, "doc-1")
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})
}
