// Package memory is the in-process reference driver. It keeps delivery
// semantics (idempotency by DedupID) testable without wiring a backend.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"chronicle/pkg/audit"
)

type Sink struct {
	mu      sync.RWMutex
	objects map[uuid.UUID]audit.Digest
	order   []uuid.UUID
}

func NewSink() *Sink {
	return &Sink{objects: make(map[uuid.UUID]audit.Digest)}
}

func (s *Sink) Name() string { return "memory" }

// Deliver stores the digest keyed by its dedup identifier. Redelivery of the
// same digest is a no-op, never a duplicate record.
func (s *Sink) Deliver(_ context.Context, d audit.Digest) error {
	key := d.DedupID()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[key]; ok {
		return nil
	}
	s.objects[key] = d
	s.order = append(s.order, key)
	return nil
}

// All returns stored digests in delivery order.
func (s *Sink) All() []audit.Digest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]audit.Digest, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, s.objects[key])
	}
	return out
}

// ByResource returns stored digests for one resource, in delivery order.
func (s *Sink) ByResource(resourceID string) []audit.Digest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.Digest
	for _, key := range s.order {
		if d := s.objects[key]; d.Resource.ID == resourceID {
			out = append(out, d)
		}
	}
	return out
}

// Clear empties the sink.
func (s *Sink) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects = make(map[uuid.UUID]audit.Digest)
	s.order = nil
}
