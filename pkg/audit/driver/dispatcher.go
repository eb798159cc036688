package driver

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"chronicle/pkg/audit"
)

// Dispatcher fans each digest out to every configured driver. Deliveries are
// isolated per driver: retries, circuit state and failures of one backend
// never affect its siblings for the same object.
type Dispatcher struct {
	drivers  []Driver
	breakers map[string]*Breaker

	maxRetries  int
	baseBackoff time.Duration

	deadLetter DeadLetter
	logger     *slog.Logger
	metrics    *Metrics
}

// Option configures the Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets a logger for delivery reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithDeadLetter sets the target for permanently failed objects. Without one,
// exhausted deliveries surface as commit errors so the tick retries them.
func WithDeadLetter(dl DeadLetter) Option {
	return func(d *Dispatcher) { d.deadLetter = dl }
}

// WithRetry sets attempt count and initial backoff for retryable failures.
func WithRetry(maxRetries int, base time.Duration) Option {
	return func(d *Dispatcher) {
		if maxRetries >= 0 {
			d.maxRetries = maxRetries
		}
		if base > 0 {
			d.baseBackoff = base
		}
	}
}

// WithBreaker installs a circuit breaker for the named driver.
func WithBreaker(name string, b *Breaker) Option {
	return func(d *Dispatcher) { d.breakers[name] = b }
}

func New(drivers []Driver, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		drivers:     drivers,
		breakers:    make(map[string]*Breaker),
		maxRetries:  3,
		baseBackoff: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Commit delivers a whole tick's output. It satisfies the digest engine's
// sink contract: an error here aborts the tick and the events are requeued.
// Replayed commits are safe because drivers dedup on DedupID.
func (d *Dispatcher) Commit(ctx context.Context, digests []audit.Digest) error {
	var errs []error
	for _, dg := range digests {
		if err := d.Dispatch(ctx, dg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Dispatch delivers one object to every driver concurrently. The returned
// error aggregates per-driver failures that could not be dead-lettered.
func (d *Dispatcher) Dispatch(ctx context.Context, dg audit.Digest) error {
	results := make(chan error, len(d.drivers))
	for _, drv := range d.drivers {
		go func() {
			results <- d.deliverOne(ctx, drv, dg)
		}()
	}
	var errs []error
	for range d.drivers {
		if err := <-results; err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// deliverOne runs the retry loop for a single driver. Permanent failures and
// exhausted retries go to the dead-letter target when one is configured;
// otherwise the failure is returned to the caller.
func (d *Dispatcher) deliverOne(ctx context.Context, drv Driver, dg audit.Digest) error {
	name := drv.Name()

	if b := d.breakers[name]; b != nil && !b.Allow() {
		if d.metrics != nil {
			d.metrics.IncBreakerDropped(name)
		}
		return d.reject(ctx, name, dg, Retryable(name, errors.New("circuit open")))
	}

	backoff := d.baseBackoff
	var lastErr error
	for attempt := 0; attempt <= d.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			if d.metrics != nil {
				d.metrics.IncRetries(name)
			}
		}

		err := drv.Deliver(ctx, dg)
		if err == nil {
			if b := d.breakers[name]; b != nil {
				b.RecordSuccess()
			}
			if d.metrics != nil {
				d.metrics.IncDelivered(name)
			}
			return nil
		}

		lastErr = err
		if b := d.breakers[name]; b != nil {
			b.RecordFailure()
		}
		if d.metrics != nil {
			d.metrics.IncFailures(name)
		}

		var dde *audit.DriverDeliveryError
		if errors.As(err, &dde) && dde.Permanent {
			break
		}
	}

	if d.logger != nil {
		d.logger.ErrorContext(ctx, "delivery failed",
			"driver", name,
			"digest_id", dg.DedupID(),
			"error", lastErr,
		)
	}
	return d.reject(ctx, name, dg, lastErr)
}

// reject routes a failed object to the dead-letter target. With no target
// configured the failure propagates so the caller can retry wholesale.
func (d *Dispatcher) reject(ctx context.Context, name string, dg audit.Digest, cause error) error {
	if d.deadLetter == nil {
		return cause
	}
	if err := d.deadLetter.Reject(ctx, name, dg, cause); err != nil {
		return errors.Join(cause, err)
	}
	if d.metrics != nil {
		d.metrics.IncDeadLettered(name)
	}
	return nil
}
