package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"chronicle/pkg/audit"
)

// drainBatch bounds a single LPOP when draining.
const drainBatch = 500

// Redis is a list-backed queue. Events survive process restarts; the list
// tail receives new events, the head is drained, and requeued events go back
// to the head so arrival order holds across an aborted tick.
type Redis struct {
	client *redis.Client
	key    string
}

func NewRedis(client *redis.Client, key string) *Redis {
	if key == "" {
		key = "chronicle:events"
	}
	return &Redis{client: client, key: key}
}

func (q *Redis) Enqueue(ctx context.Context, events ...audit.Event) error {
	if len(events) == 0 {
		return nil
	}
	payloads := make([]interface{}, 0, len(events))
	for _, e := range events {
		b, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal event %s: %w", e.ID, err)
		}
		payloads = append(payloads, b)
	}
	if err := q.client.RPush(ctx, q.key, payloads...).Err(); err != nil {
		return fmt.Errorf("rpush events: %w", err)
	}
	return nil
}

func (q *Redis) DrainAll(ctx context.Context) ([]audit.Event, error) {
	var events []audit.Event
	for {
		raw, err := q.client.LPopCount(ctx, q.key, drainBatch).Result()
		if err == redis.Nil {
			return events, nil
		}
		if err != nil {
			return nil, fmt.Errorf("lpop events: %w", err)
		}
		for _, item := range raw {
			var e audit.Event
			if err := json.Unmarshal([]byte(item), &e); err != nil {
				return nil, fmt.Errorf("unmarshal event: %w", err)
			}
			events = append(events, e)
		}
		if len(raw) < drainBatch {
			return events, nil
		}
	}
}

func (q *Redis) Requeue(ctx context.Context, events []audit.Event) error {
	// LPUSH prepends one value at a time, so push in reverse to keep order.
	for i := len(events) - 1; i >= 0; i-- {
		b, err := json.Marshal(events[i])
		if err != nil {
			return fmt.Errorf("marshal event %s: %w", events[i].ID, err)
		}
		if err := q.client.LPush(ctx, q.key, b).Err(); err != nil {
			return fmt.Errorf("lpush event: %w", err)
		}
	}
	return nil
}

// Len reports the buffered event count.
func (q *Redis) Len(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("llen: %w", err)
	}
	return n, nil
}
