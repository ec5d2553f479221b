// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"time"

	"github.com/metercore/metercore/domain/ratelimit"
	"github.com/metercore/metercore/domain/usage"
)

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// -----------------------------------------------------------------------------
// Admission Ports
// -----------------------------------------------------------------------------

// WindowStore owns the per-credential rate windows. Admit must execute the
// roll-forward, capacity check, and increment as a single critical section
// per credential so concurrent callers always observe a consistent window.
// Purely in-memory: implementations must never touch the network.
type WindowStore interface {
	// Admit applies one admission decision for a credential.
	Admit(credential string, p ratelimit.Policy, now time.Time) (ratelimit.Decision, error)

	// Snapshot returns the current window for a credential, if one exists.
	Snapshot(credential string) (ratelimit.WindowState, bool)

	// Len returns the number of live windows.
	Len() int
}

// -----------------------------------------------------------------------------
// Usage Ports
// -----------------------------------------------------------------------------

// UsageStore is the append-only persistence for usage events.
// Writes are batched; queries serve the reporting surface.
type UsageStore interface {
	// Append stores a batch of events. Events are never updated afterward.
	Append(ctx context.Context, events []usage.Event) error

	// ListByCustomer returns events in a customer partition within
	// [start, end), newest last. limit <= 0 means no limit.
	ListByCustomer(ctx context.Context, customerID string, start, end time.Time, limit, offset int) ([]usage.Event, error)

	// ListByOrganization returns events for an organization within
	// [start, end). Organization is not the partition key, so this scans
	// the full time range.
	ListByOrganization(ctx context.Context, org string, start, end time.Time) ([]usage.Event, error)

	// CountByKind returns how many events of one kind a customer partition
	// has accumulated since a point in time. Feeds volume discounts.
	CountByKind(ctx context.Context, customerID, kind string, since time.Time) (int64, error)

	// Cleanup removes events older than the cutoff, returning the count.
	Cleanup(ctx context.Context, olderThan time.Time) (int64, error)
}

// UsageWriter accepts priced events for asynchronous persistence.
// Write must never block the caller and must never return an error -
// recording is best-effort by contract.
type UsageWriter interface {
	// Write queues one event.
	Write(e usage.Event)

	// Flush forces queued events to be written.
	Flush(ctx context.Context) error

	// Close stops the writer and flushes remaining events.
	Close() error
}
