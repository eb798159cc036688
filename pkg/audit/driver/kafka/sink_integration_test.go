//go:build integration

package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	"chronicle/pkg/audit"
	"chronicle/pkg/testutil/containers"
)

func TestKafkaSink_Integration(t *testing.T) {
	rp := containers.NewRedpandaContainer(t)
	ctx := context.Background()

	const topic = "chronicle.digests.test"

	admin, err := kgo.NewClient(kgo.SeedBrokers(rp.Broker))
	require.NoError(t, err)
	defer admin.Close()
	_, err = kadm.NewClient(admin).CreateTopic(ctx, 1, 1, nil, topic)
	require.NoError(t, err)

	client, err := kgo.NewClient(
		kgo.SeedBrokers(rp.Broker),
		kgo.ConsumeTopics(topic),
	)
	require.NoError(t, err)
	defer client.Close()

	sink := NewSinkWithClient(client, topic)

	d := audit.Digest{
		Event: audit.Event{
			Type:      audit.TypeUpdate,
			Timestamp: time.Date(2025, 6, 1, 12, 3, 0, 0, time.UTC),
			Resource:  audit.Resource{ID: "doc-1"},
			Actor:     audit.Actor{ID: "u-1"},
			Fields: map[string]audit.FieldChange{
				"title": {Old: "v1", New: "v3"},
			},
			FieldOrder: []string{"title"},
		},
		StartDate: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Count:     2,
	}

	require.NoError(t, sink.Deliver(ctx, d))

	fetchCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	fetches := client.PollFetches(fetchCtx)
	require.NoError(t, fetches.Err())

	records := fetches.Records()
	require.Len(t, records, 1)
	assert.Equal(t, d.DedupID().String(), string(records[0].Key),
		"record key is the dedup identifier")

	var got audit.Digest
	require.NoError(t, json.Unmarshal(records[0].Value, &got))
	assert.Equal(t, d.Count, got.Count)
	assert.Equal(t, d.Resource.ID, got.Resource.ID)
	assert.Equal(t, d.FieldOrder, got.FieldOrder)
}
