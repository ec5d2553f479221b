package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/metercore/metercore/domain/usage"
	"github.com/metercore/metercore/ports"
)

// UsageStore is an in-memory implementation of ports.UsageStore.
// Used in tests and for running without a database.
type UsageStore struct {
	mu     sync.RWMutex
	events []usage.Event
}

// NewUsageStore creates a new in-memory usage store.
func NewUsageStore() *UsageStore {
	return &UsageStore{}
}

// Append stores a batch of events.
func (s *UsageStore) Append(ctx context.Context, events []usage.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
	return nil
}

// ListByCustomer returns events in a customer partition within [start, end).
func (s *UsageStore) ListByCustomer(ctx context.Context, customerID string, start, end time.Time, limit, offset int) ([]usage.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matching []usage.Event
	for _, e := range s.events {
		if e.Partition() == customerID && inRange(e.Timestamp, start, end) {
			matching = append(matching, e)
		}
	}
	sortByTime(matching)

	return paginate(matching, limit, offset), nil
}

// ListByOrganization scans the full time range for an organization's events.
func (s *UsageStore) ListByOrganization(ctx context.Context, org string, start, end time.Time) ([]usage.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matching []usage.Event
	for _, e := range s.events {
		if e.Organization == org && inRange(e.Timestamp, start, end) {
			matching = append(matching, e)
		}
	}
	sortByTime(matching)

	return matching, nil
}

// CountByKind counts a partition's events of one kind since a point in time.
func (s *UsageStore) CountByKind(ctx context.Context, customerID, kind string, since time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, e := range s.events {
		if e.Partition() == customerID && e.Kind == kind && !e.Timestamp.Before(since) {
			n++
		}
	}
	return n, nil
}

// Cleanup removes events older than the cutoff.
func (s *UsageStore) Cleanup(ctx context.Context, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.events[:0]
	var removed int64
	for _, e := range s.events {
		if e.Timestamp.Before(olderThan) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	s.events = kept
	return removed, nil
}

// Len returns the number of stored events (for testing).
func (s *UsageStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

func inRange(t, start, end time.Time) bool {
	return !t.Before(start) && t.Before(end)
}

func sortByTime(events []usage.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
}

func paginate(events []usage.Event, limit, offset int) []usage.Event {
	if offset > 0 {
		if offset >= len(events) {
			return nil
		}
		events = events[offset:]
	}
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events
}

// Ensure interface compliance.
var _ ports.UsageStore = (*UsageStore)(nil)
