// Package kafka publishes digests to a Kafka topic. The record key is the
// digest's dedup identifier, so compacted topics and keyed consumers see one
// record per digest regardless of redelivery.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	"chronicle/pkg/audit"
	"chronicle/pkg/audit/driver"
)

type Sink struct {
	client *kgo.Client
	topic  string
}

// NewSink creates a Kafka sink publishing to topic.
func NewSink(brokers []string, topic string) (*Sink, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &Sink{client: client, topic: topic}, nil
}

// NewSinkWithClient wires an existing client; the integration tests use it.
func NewSinkWithClient(client *kgo.Client, topic string) *Sink {
	return &Sink{client: client, topic: topic}
}

func (s *Sink) Name() string { return "kafka" }

// Deliver produces the digest synchronously. Broker errors are retryable;
// the dispatcher owns backoff.
func (s *Sink) Deliver(ctx context.Context, d audit.Digest) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return driver.Permanent(s.Name(), fmt.Errorf("marshal digest: %w", err))
	}
	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(d.DedupID().String()),
		Value: payload,
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return driver.Retryable(s.Name(), fmt.Errorf("produce digest: %w", err))
	}
	return nil
}

// Close flushes and releases the client.
func (s *Sink) Close() {
	s.client.Close()
}
