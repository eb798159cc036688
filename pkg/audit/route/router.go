// Package route selects downstream branches for canonical events. Routing is
// a pure function of the event's tags and its rule's digestible flag; it
// never alters event semantics.
package route

import "chronicle/pkg/audit"

// Branch is one configured destination: the digest path or a direct driver
// path. An empty tag filter matches every event.
type Branch struct {
	Name string

	// Tags is the filter; the branch matches when it shares at least one tag
	// with the event.
	Tags []string

	// DigestibleOnly restricts the branch to events whose resolved rule
	// allows merging. The digest path sets this.
	DigestibleOnly bool
}

// Router maps events to branch names.
type Router struct {
	branches []Branch
}

func New(branches ...Branch) *Router {
	return &Router{branches: branches}
}

// Route returns the names of every branch the event matches. An event that
// matches nothing is not silently discarded: the caller gets a RoutingError
// and decides whether that is fatal.
func (r *Router) Route(event audit.Event) ([]string, error) {
	var dests []string
	for _, b := range r.branches {
		if b.DigestibleOnly && !event.Rule.Digestible {
			continue
		}
		if matches(b.Tags, event.Tags) {
			dests = append(dests, b.Name)
		}
	}
	if len(dests) == 0 {
		return nil, &audit.RoutingError{EventType: event.Type, Tags: event.Tags}
	}
	return dests, nil
}

func matches(filter, tags []string) bool {
	if len(filter) == 0 {
		return true
	}
	for _, want := range filter {
		for _, have := range tags {
			if want == have {
				return true
			}
		}
	}
	return false
}
