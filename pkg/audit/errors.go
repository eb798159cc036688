package audit

import (
	"fmt"
	"strings"
)

// Typed errors for the pipeline. Transformer and router errors are
// synchronous and returned to the caller; tick and delivery errors come from
// the background stages. All support errors.As and wrap their causes.

// ValidationError reports a malformed change, such as an update attribute
// missing its old/new value pair.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid change: %s", e.Reason)
	}
	return fmt.Sprintf("invalid change: field %q: %s", e.Field, e.Reason)
}

// ReservedNameError reports a custom event type colliding with a built-in.
type ReservedNameError struct {
	Name string
}

func (e *ReservedNameError) Error() string {
	return fmt.Sprintf("event type %q is reserved", e.Name)
}

// RoutingError reports an event that matched no configured branch. It is
// surfaced to the caller, never swallowed; the caller decides whether the
// drop is fatal.
type RoutingError struct {
	EventType EventType
	Tags      []string
}

func (e *RoutingError) Error() string {
	return fmt.Sprintf("no branch matches event type %q (tags: %s)",
		e.EventType, strings.Join(e.Tags, ","))
}

// DigestTickError reports a tick aborted before committing any output. The
// whole tick is retried on the next schedule; it is never partially replayed.
type DigestTickError struct {
	Err error
}

func (e *DigestTickError) Error() string {
	return fmt.Sprintf("digest tick aborted: %v", e.Err)
}

func (e *DigestTickError) Unwrap() error { return e.Err }

// DriverDeliveryError reports a failed delivery to one driver. Permanent
// failures go to the dead-letter path; retryable ones are retried with
// backoff.
type DriverDeliveryError struct {
	Driver    string
	Permanent bool
	Err       error
}

func (e *DriverDeliveryError) Error() string {
	kind := "retryable"
	if e.Permanent {
		kind = "permanent"
	}
	return fmt.Sprintf("driver %s: %s delivery failure: %v", e.Driver, kind, e.Err)
}

func (e *DriverDeliveryError) Unwrap() error { return e.Err }
