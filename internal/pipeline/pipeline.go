// Package pipeline connects the synchronous stages: transform, route, then
// hand off to the digest queue or directly to drivers. Submit holds no
// mutable state of its own, so it is safe for concurrent callers.
package pipeline

import (
	"context"
	"log/slog"

	"chronicle/pkg/audit"
	"chronicle/pkg/audit/digest"
	"chronicle/pkg/audit/driver"
	"chronicle/pkg/audit/queue"
	"chronicle/pkg/audit/route"
	"chronicle/pkg/audit/transform"
)

// DigestBranch is the routing branch name that feeds the digest engine.
// Every other branch goes directly to the drivers.
const DigestBranch = "digest"

// RoutedEvent pairs a canonical event with the branches that accepted it.
type RoutedEvent struct {
	Event    audit.Event
	Branches []string
}

// Result reports what Submit did with a batch of changes.
type Result struct {
	Routed []RoutedEvent

	// Unchanged lists update paths whose old and new values were equal;
	// permitted, surfaced for the caller.
	Unchanged []string
}

// Pipeline is the Publisher-facing entry point.
type Pipeline struct {
	transformer *transform.Transformer
	router      *route.Router
	queue       queue.Queue
	dispatcher  *driver.Dispatcher
	logger      *slog.Logger
}

func New(
	transformer *transform.Transformer,
	router *route.Router,
	q queue.Queue,
	dispatcher *driver.Dispatcher,
	logger *slog.Logger,
) *Pipeline {
	return &Pipeline{
		transformer: transformer,
		router:      router,
		queue:       q,
		dispatcher:  dispatcher,
		logger:      logger,
	}
}

// Submit transforms and routes a batch of changes. Transformer and router
// errors are synchronous and returned to the caller, never swallowed.
// Digest-branch events are buffered for the next tick; direct-branch events
// go to the drivers — before Submit returns when the event's rule is sync,
// in the background otherwise.
func (p *Pipeline) Submit(ctx context.Context, changes ...transform.Change) (*Result, error) {
	res, err := p.transformer.TransformAll(changes)
	if err != nil {
		return nil, err
	}

	out := &Result{Unchanged: res.Unchanged}
	for _, event := range res.Events {
		branches, err := p.router.Route(event)
		if err != nil {
			return nil, err
		}
		out.Routed = append(out.Routed, RoutedEvent{Event: event, Branches: branches})

		for _, branch := range branches {
			if branch == DigestBranch {
				if err := p.queue.Enqueue(ctx, event); err != nil {
					return nil, err
				}
				continue
			}
			if err := p.deliver(ctx, event); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// deliver hands a directly-routed event to the drivers as a count=1 digest,
// keeping a uniform object shape downstream.
func (p *Pipeline) deliver(ctx context.Context, event audit.Event) error {
	d := digest.Passthrough(event)
	if event.Rule.Sync {
		return p.dispatcher.Dispatch(ctx, d)
	}

	bg := context.WithoutCancel(ctx)
	go func() {
		if err := p.dispatcher.Dispatch(bg, d); err != nil && p.logger != nil {
			p.logger.ErrorContext(bg, "async direct delivery failed",
				"event_id", event.ID,
				"error", err,
			)
		}
	}()
	return nil
}
