package memory

import (
	"context"
	"sync"

	"chronicle/pkg/audit"
)

// Rejected is one dead-lettered object with its failure cause.
type Rejected struct {
	Driver string
	Digest audit.Digest
	Cause  error
}

// DeadLetter collects objects whose delivery permanently failed. Operators
// inspect it; the dispatcher guarantees nothing lands here silently.
type DeadLetter struct {
	mu       sync.Mutex
	rejected []Rejected
}

func NewDeadLetter() *DeadLetter {
	return &DeadLetter{}
}

func (dl *DeadLetter) Reject(_ context.Context, driver string, d audit.Digest, cause error) error {
	dl.mu.Lock()
	defer dl.mu.Unlock()
	dl.rejected = append(dl.rejected, Rejected{Driver: driver, Digest: d, Cause: cause})
	return nil
}

// All returns the dead-lettered objects in rejection order.
func (dl *DeadLetter) All() []Rejected {
	dl.mu.Lock()
	defer dl.mu.Unlock()
	return append([]Rejected(nil), dl.rejected...)
}
