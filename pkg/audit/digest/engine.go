// Package digest merges contiguous, related events into compact digests on a
// fixed tick schedule. Partitions keyed by (resource, actor) are processed in
// parallel; ordering guarantees hold within a partition only.
package digest

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"chronicle/pkg/audit"
	"chronicle/pkg/audit/queue"
)

// Sink receives the full output of one tick in a single commit. The
// dispatcher implements it; tests use in-memory fakes.
type Sink interface {
	Commit(ctx context.Context, digests []audit.Digest) error
}

// Engine drains the queue each tick, builds digests, and commits them
// atomically. A tick that fails before commit discards its partial output
// and puts the drained events back for the next tick.
type Engine struct {
	queue    queue.Queue
	sink     Sink
	interval time.Duration
	parallel int

	logger  *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer

	// mu makes ticks mutually exclusive: overlapping ticks would double-merge
	// the same events.
	mu sync.Mutex
}

// Option configures the Engine.
type Option func(*Engine)

// WithLogger sets a logger for tick reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithInterval sets the tick interval.
func WithInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.interval = d
		}
	}
}

// WithParallelism bounds how many partitions merge concurrently.
func WithParallelism(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.parallel = n
		}
	}
}

func New(q queue.Queue, sink Sink, opts ...Option) *Engine {
	e := &Engine{
		queue:    q,
		sink:     sink,
		interval: 5 * time.Minute,
		parallel: 4,
		tracer:   otel.Tracer("chronicle/digest"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run ticks on the configured interval until the context is canceled. Tick
// failures are logged and retried wholesale on the next tick; they never
// stop the loop.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := e.Tick(ctx); err != nil {
				if e.logger != nil {
					e.logger.ErrorContext(ctx, "digest tick failed", "error", err)
				}
			}
		}
	}
}

// Tick is one atomic unit of work: drain, partition, merge, commit. Either
// every digest of the tick is committed or none is; on abort the drained
// events are requeued so the next tick recomputes windows from the events'
// own timestamps.
func (e *Engine) Tick(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "digest.tick")
	defer span.End()

	events, err := e.queue.DrainAll(ctx)
	if err != nil {
		e.observeFailure()
		return &audit.DigestTickError{Err: err}
	}
	if len(events) == 0 {
		e.observeTick(start, 0, 0)
		return nil
	}
	span.SetAttributes(attribute.Int("events.drained", len(events)))

	digests, err := e.merge(ctx, events)
	if err != nil {
		e.abort(ctx, events)
		return &audit.DigestTickError{Err: err}
	}

	if err := e.sink.Commit(ctx, digests); err != nil {
		e.abort(ctx, events)
		return &audit.DigestTickError{Err: err}
	}

	span.SetAttributes(attribute.Int("digests.emitted", len(digests)))
	e.observeTick(start, len(events), len(digests))
	return nil
}

// merge builds digests for every partition, in parallel across partitions.
func (e *Engine) merge(ctx context.Context, events []audit.Event) ([]audit.Digest, error) {
	parts := partition(events)

	var mu sync.Mutex
	var digests []audit.Digest

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(e.parallel)
	for _, part := range parts {
		g.Go(func() error {
			built := buildRuns(part)
			mu.Lock()
			digests = append(digests, built...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Stable output order across ticks keeps downstream drivers and tests
	// deterministic.
	sort.Slice(digests, func(i, j int) bool {
		if !digests[i].StartDate.Equal(digests[j].StartDate) {
			return digests[i].StartDate.Before(digests[j].StartDate)
		}
		if digests[i].Resource.ID != digests[j].Resource.ID {
			return digests[i].Resource.ID < digests[j].Resource.ID
		}
		return digests[i].Actor.Key() < digests[j].Actor.Key()
	})
	return digests, nil
}

func (e *Engine) abort(ctx context.Context, events []audit.Event) {
	e.observeFailure()
	if err := e.queue.Requeue(ctx, events); err != nil && e.logger != nil {
		e.logger.ErrorContext(ctx, "requeue after aborted tick failed",
			"events", len(events),
			"error", err,
		)
	}
}

func (e *Engine) observeTick(start time.Time, drained, emitted int) {
	if e.metrics == nil {
		return
	}
	e.metrics.TicksTotal.Inc()
	e.metrics.EventsDrained.Add(float64(drained))
	e.metrics.DigestsEmitted.Add(float64(emitted))
	e.metrics.TickDuration.Observe(time.Since(start).Seconds())
}

func (e *Engine) observeFailure() {
	if e.metrics != nil {
		e.metrics.TickFailures.Inc()
	}
}
