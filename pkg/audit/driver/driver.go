// Package driver delivers digests to configured storage backends. Each
// backend receives every routed object independently; one backend's failure
// never blocks delivery to its siblings.
package driver

//go:generate mockgen -source=driver.go -destination=mocks/mocks.go -package=mocks Driver,DeadLetter

import (
	"context"

	"chronicle/pkg/audit"
)

// Driver is one storage backend. Deliver must be idempotent with respect to
// the digest's DedupID: delivering the same digest twice must not
// double-count in storage.
type Driver interface {
	Name() string
	Deliver(ctx context.Context, d audit.Digest) error
}

// DeadLetter receives objects whose delivery failed permanently or exhausted
// retries. Losing an object silently is never an option; absence of a
// dead-letter target turns exhausted deliveries into commit failures instead.
type DeadLetter interface {
	Reject(ctx context.Context, driver string, d audit.Digest, cause error) error
}

// Retryable wraps err as a retryable delivery failure for the named driver.
func Retryable(name string, err error) error {
	return &audit.DriverDeliveryError{Driver: name, Err: err}
}

// Permanent wraps err as a permanent delivery failure for the named driver.
// Permanent failures skip retries and go straight to the dead-letter path.
func Permanent(name string, err error) error {
	return &audit.DriverDeliveryError{Driver: name, Permanent: true, Err: err}
}
