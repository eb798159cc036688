package digest

import (
	"sort"

	"github.com/google/uuid"

	"chronicle/pkg/audit"
)

// partition splits drained events by grouping key. Ordering guarantees apply
// only within a partition; partitions are independent.
func partition(events []audit.Event) map[audit.GroupKey][]audit.Event {
	parts := make(map[audit.GroupKey][]audit.Event)
	for _, e := range events {
		key := e.Group()
		parts[key] = append(parts[key], e)
	}
	return parts
}

// buildRuns sorts one partition by timestamp (stable, so arrival order breaks
// ties) and scans it into maximal runs. A run accepts an event only when the
// type matches, the event is digestible, and its timestamp falls within the
// window anchored to the run's first event. Anchoring to the first event's
// own timestamp — never to tick wall-clock time — is what keeps delayed or
// skipped ticks from over-merging.
//
// Non-digestible events are barriers: they terminate the current run, emit as
// count=1 digests, and never merge with neighbors on either side.
func buildRuns(events []audit.Event) []audit.Digest {
	sorted := append([]audit.Event(nil), events...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	var digests []audit.Digest
	var run []audit.Event

	flush := func() {
		if len(run) > 0 {
			digests = append(digests, mergeRun(run))
			run = nil
		}
	}

	for _, e := range sorted {
		if !e.Rule.Digestible {
			flush()
			digests = append(digests, Passthrough(e))
			continue
		}
		if len(run) > 0 {
			anchor := run[0]
			sameType := e.Type == anchor.Type
			inWindow := !e.Timestamp.After(anchor.Timestamp.Add(anchor.Rule.DigestWindow))
			if !sameType || !inWindow {
				flush()
			}
		}
		run = append(run, e)
	}
	flush()

	return digests
}

// mergeRun collapses a run into one digest. Per attribute path the old value
// comes from the earliest event touching it and the new value from the
// latest; paths appear once, ordered by first appearance. Source events are
// never mutated.
func mergeRun(run []audit.Event) audit.Digest {
	first, last := run[0], run[len(run)-1]
	if len(run) == 1 {
		return Passthrough(first)
	}

	fields := make(map[string]audit.FieldChange)
	var order []string
	for _, e := range run {
		for _, path := range e.FieldOrder {
			fc := e.Fields[path]
			merged, seen := fields[path]
			if !seen {
				order = append(order, path)
				fields[path] = fc
				continue
			}
			merged.New = fc.New
			fields[path] = merged
		}
	}

	truncated := false
	if limit := first.Rule.DigestFieldsLimit; limit > 0 && len(order) > limit {
		for _, path := range order[limit:] {
			delete(fields, path)
		}
		order = order[:limit]
		truncated = true
	}

	return audit.Digest{
		Event: audit.Event{
			ID:         uuid.New(),
			Type:       first.Type,
			Timestamp:  last.Timestamp,
			Tags:       first.Tags,
			Resource:   first.Resource,
			Actor:      first.Actor,
			Fields:     fields,
			FieldOrder: order,
			Rule:       first.Rule,
		},
		StartDate: first.Timestamp,
		Count:     len(run),
		Truncated: truncated,
	}
}

// Passthrough wraps a single event as a count=1 digest, fields unchanged,
// keeping a uniform output shape for drivers.
// The pipeline reuses it to hand directly-routed events to drivers in the
// same shape.
func Passthrough(e audit.Event) audit.Digest {
	return audit.Digest{
		Event:     e,
		StartDate: e.Timestamp,
		Count:     1,
	}
}
