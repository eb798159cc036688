package digest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chronicle/pkg/audit"
	"chronicle/pkg/audit/queue"
)

// recordingSink captures commits; fail makes the next commit error.
type recordingSink struct {
	mu      sync.Mutex
	commits [][]audit.Digest
	fail    error
}

func (s *recordingSink) Commit(_ context.Context, digests []audit.Digest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		err := s.fail
		s.fail = nil
		return err
	}
	s.commits = append(s.commits, digests)
	return nil
}

func (s *recordingSink) all() []audit.Digest {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []audit.Digest
	for _, c := range s.commits {
		out = append(out, c...)
	}
	return out
}

func TestTick_DrainsAndCommits(t *testing.T) {
	ctx := context.Background()
	q := queue.NewMemory()
	sink := &recordingSink{}
	engine := New(q, sink)

	require.NoError(t, q.Enqueue(ctx,
		update(t0, "title", "v1", "v2"),
		update(t0.Add(time.Minute), "title", "v2", "v3"),
	))

	require.NoError(t, engine.Tick(ctx))

	digests := sink.all()
	require.Len(t, digests, 1)
	assert.Equal(t, 2, digests[0].Count)
	assert.Equal(t, 0, q.Len(), "committed events leave the queue")
}

func TestTick_EmptyQueueIsNoop(t *testing.T) {
	ctx := context.Background()
	sink := &recordingSink{}
	engine := New(queue.NewMemory(), sink)

	require.NoError(t, engine.Tick(ctx))
	assert.Empty(t, sink.all())
}

func TestTick_AbortRequeuesEverything(t *testing.T) {
	// A failed commit aborts the whole tick: nothing is partially replayed,
	// and the events are back for the next tick.
	ctx := context.Background()
	q := queue.NewMemory()
	sink := &recordingSink{fail: errors.New("backend down")}
	engine := New(q, sink)

	require.NoError(t, q.Enqueue(ctx,
		update(t0, "title", "v1", "v2"),
		update(t0.Add(time.Minute), "title", "v2", "v3"),
	))

	err := engine.Tick(ctx)
	var tickErr *audit.DigestTickError
	require.ErrorAs(t, err, &tickErr)
	assert.Equal(t, 2, q.Len(), "aborted tick returns events to the queue")
	assert.Empty(t, sink.all())

	// The retry tick sees the same events and succeeds wholesale.
	require.NoError(t, engine.Tick(ctx))
	digests := sink.all()
	require.Len(t, digests, 1)
	assert.Equal(t, 2, digests[0].Count, "late retry still merges by event timestamps")
}

func TestTick_DelayedTickDoesNotOverMerge(t *testing.T) {
	// Simulates a skipped schedule: both events wait in the queue until one
	// late tick. Window anchoring to event timestamps keeps them apart.
	ctx := context.Background()
	q := queue.NewMemory()
	sink := &recordingSink{}
	engine := New(q, sink)

	require.NoError(t, q.Enqueue(ctx,
		update(t0, "title", "v1", "v2"),
		update(t0.Add(12*time.Minute), "title", "v2", "v3"),
	))

	require.NoError(t, engine.Tick(ctx))

	digests := sink.all()
	require.Len(t, digests, 2)
	assert.Equal(t, 1, digests[0].Count)
	assert.Equal(t, 1, digests[1].Count)
}

func TestTick_IndependentPartitions(t *testing.T) {
	ctx := context.Background()
	q := queue.NewMemory()
	sink := &recordingSink{}
	engine := New(q, sink, WithParallelism(8))

	var events []audit.Event
	for _, res := range []string{"doc-1", "doc-2", "doc-3"} {
		for i := 0; i < 3; i++ {
			e := update(t0.Add(time.Duration(i)*time.Minute), "title", "old", "new")
			e.Resource.ID = res
			events = append(events, e)
		}
	}
	require.NoError(t, q.Enqueue(ctx, events...))

	require.NoError(t, engine.Tick(ctx))

	digests := sink.all()
	require.Len(t, digests, 3, "one merged digest per partition")
	for _, d := range digests {
		assert.Equal(t, 3, d.Count)
	}
}

func TestTick_MutuallyExclusive(t *testing.T) {
	// Concurrent ticks serialize on the engine lock, so events are never
	// double-merged.
	ctx := context.Background()
	q := queue.NewMemory()
	sink := &recordingSink{}
	engine := New(q, sink)

	require.NoError(t, q.Enqueue(ctx, update(t0, "title", "v1", "v2")))

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = engine.Tick(ctx)
		}()
	}
	wg.Wait()

	assert.Len(t, sink.all(), 1, "one digest despite concurrent ticks")
}

func TestRun_StopsOnCancel(t *testing.T) {
	engine := New(queue.NewMemory(), &recordingSink{}, WithInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- engine.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("engine did not stop on cancellation")
	}
}
