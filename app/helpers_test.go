package app_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/metercore/metercore/domain/credential"
	"github.com/metercore/metercore/domain/ratelimit"
	"github.com/metercore/metercore/domain/usage"
)

func digestOf(rawKey string) string {
	return credential.Digest(rawKey)
}

// failingWindowStore errors on every admission.
type failingWindowStore struct{}

func (failingWindowStore) Admit(string, ratelimit.Policy, time.Time) (ratelimit.Decision, error) {
	return ratelimit.Decision{}, errors.New("store unavailable")
}

func (failingWindowStore) Snapshot(string) (ratelimit.WindowState, bool) {
	return ratelimit.WindowState{}, false
}

func (failingWindowStore) Len() int { return 0 }

// captureWriter collects written events synchronously.
type captureWriter struct {
	mu     sync.Mutex
	events []usage.Event
}

func (w *captureWriter) Write(e usage.Event) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.events = append(w.events, e)
}

func (w *captureWriter) Flush(context.Context) error { return nil }
func (w *captureWriter) Close() error                { return nil }

func (w *captureWriter) all() []usage.Event {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]usage.Event, len(w.events))
	copy(out, w.events)
	return out
}

// panicWriter panics on every write.
type panicWriter struct{}

func (panicWriter) Write(usage.Event) {
	panic("writer exploded")
}

func (panicWriter) Flush(context.Context) error { return nil }
func (panicWriter) Close() error                { return nil }

// failingUsageStore errors on every query.
type failingUsageStore struct{}

func (failingUsageStore) Append(context.Context, []usage.Event) error {
	return errors.New("store unavailable")
}

func (failingUsageStore) ListByCustomer(context.Context, string, time.Time, time.Time, int, int) ([]usage.Event, error) {
	return nil, errors.New("store unavailable")
}

func (failingUsageStore) ListByOrganization(context.Context, string, time.Time, time.Time) ([]usage.Event, error) {
	return nil, errors.New("store unavailable")
}

func (failingUsageStore) CountByKind(context.Context, string, string, time.Time) (int64, error) {
	return 0, errors.New("store unavailable")
}

func (failingUsageStore) Cleanup(context.Context, time.Time) (int64, error) {
	return 0, errors.New("store unavailable")
}
