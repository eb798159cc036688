// Package queue buffers digest-eligible events between engine ticks. The
// engine drains everything received since the last successful tick; aborted
// ticks put their events back so the next tick sees them again.
package queue

import (
	"context"
	"sync"

	"chronicle/pkg/audit"
)

// Queue is the durable collaborator the digest engine drains each tick.
type Queue interface {
	Enqueue(ctx context.Context, events ...audit.Event) error

	// DrainAll removes and returns every buffered event in arrival order.
	DrainAll(ctx context.Context) ([]audit.Event, error)

	// Requeue puts events back at the head, preserving their order. Used
	// when a tick aborts before committing.
	Requeue(ctx context.Context, events []audit.Event) error
}

// Memory is a mutex-guarded in-process queue. It keeps the engine testable
// without wiring a broker.
type Memory struct {
	mu     sync.Mutex
	events []audit.Event
}

func NewMemory() *Memory {
	return &Memory{}
}

func (q *Memory) Enqueue(_ context.Context, events ...audit.Event) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = append(q.events, events...)
	return nil
}

func (q *Memory) DrainAll(_ context.Context) ([]audit.Event, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	drained := q.events
	q.events = nil
	return drained, nil
}

func (q *Memory) Requeue(_ context.Context, events []audit.Event) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = append(append([]audit.Event{}, events...), q.events...)
	return nil
}

// Len reports the buffered event count.
func (q *Memory) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}
