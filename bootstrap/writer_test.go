package bootstrap_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/metercore/metercore/adapters/memory"
	"github.com/metercore/metercore/bootstrap"
	"github.com/metercore/metercore/domain/usage"
)

func TestBufferedWriter_FlushWritesBufferedEvents(t *testing.T) {
	store := memory.NewUsageStore()
	w := bootstrap.NewBufferedWriter(store, zerolog.Nop(), nil, bootstrap.WriterConfig{BatchSize: 100})
	defer w.Close()

	w.Write(usage.Event{ID: "e1", Kind: "k"})
	w.Write(usage.Event{ID: "e2", Kind: "k"})

	if store.Len() != 0 {
		t.Fatalf("events written before flush: %d", store.Len())
	}
	if err := w.Flush(context.Background()); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if store.Len() != 2 {
		t.Errorf("store has %d events, want 2", store.Len())
	}
}

func TestBufferedWriter_FlushesAtBatchSize(t *testing.T) {
	store := memory.NewUsageStore()
	w := bootstrap.NewBufferedWriter(store, zerolog.Nop(), nil, bootstrap.WriterConfig{BatchSize: 3})
	defer w.Close()

	for i := 0; i < 3; i++ {
		w.Write(usage.Event{ID: "e", Kind: "k"})
	}

	// The batch write happens on a background goroutine.
	waitFor(t, func() bool { return store.Len() == 3 })
}

func TestBufferedWriter_CloseFlushesRemainder(t *testing.T) {
	store := memory.NewUsageStore()
	w := bootstrap.NewBufferedWriter(store, zerolog.Nop(), nil, bootstrap.WriterConfig{BatchSize: 100})

	w.Write(usage.Event{ID: "e1", Kind: "k"})
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if store.Len() != 1 {
		t.Errorf("store has %d events, want 1", store.Len())
	}
}

func TestBufferedWriter_IntervalFlush(t *testing.T) {
	store := memory.NewUsageStore()
	w := bootstrap.NewBufferedWriter(store, zerolog.Nop(), nil, bootstrap.WriterConfig{
		BatchSize:     100,
		FlushInterval: 20 * time.Millisecond,
	})
	defer w.Close()

	w.Write(usage.Event{ID: "e1", Kind: "k"})

	waitFor(t, func() bool { return store.Len() == 1 })
}

func TestBufferedWriter_DropsOnWriteFailure(t *testing.T) {
	failing := &failingStore{}
	w := bootstrap.NewBufferedWriter(failing, zerolog.Nop(), nil, bootstrap.WriterConfig{BatchSize: 2})

	w.Write(usage.Event{ID: "e1", Kind: "k"})
	w.Write(usage.Event{ID: "e2", Kind: "k"})

	waitFor(t, func() bool { return failing.attempts() >= 1 })

	// The failed batch is dropped, not retried.
	w.Write(usage.Event{ID: "e3", Kind: "k"})
	w.Close()
	if got := failing.attempts(); got != 2 {
		t.Errorf("write attempts = %d, want 2", got)
	}
}

func TestBufferedWriter_CloseWaitsForInFlightWrites(t *testing.T) {
	store := &slowStore{UsageStore: memory.NewUsageStore(), delay: 50 * time.Millisecond}
	w := bootstrap.NewBufferedWriter(store, zerolog.Nop(), nil, bootstrap.WriterConfig{BatchSize: 1})

	// BatchSize 1: the write hands off to a background goroutine immediately.
	w.Write(usage.Event{ID: "e1", Kind: "k"})

	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	// No polling: Close must not return until the slow write has landed.
	if store.Len() != 1 {
		t.Errorf("store has %d events after Close, want 1", store.Len())
	}
}

// slowStore delays every append, standing in for a database under load.
type slowStore struct {
	*memory.UsageStore
	delay time.Duration
}

func (s *slowStore) Append(ctx context.Context, events []usage.Event) error {
	time.Sleep(s.delay)
	return s.UsageStore.Append(ctx, events)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

// failingStore counts append attempts and rejects them all.
type failingStore struct {
	mu sync.Mutex
	n  int
}

func (s *failingStore) Append(context.Context, []usage.Event) error {
	s.mu.Lock()
	s.n++
	s.mu.Unlock()
	return errors.New("disk full")
}

func (s *failingStore) attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n
}

func (s *failingStore) ListByCustomer(context.Context, string, time.Time, time.Time, int, int) ([]usage.Event, error) {
	return nil, nil
}

func (s *failingStore) ListByOrganization(context.Context, string, time.Time, time.Time) ([]usage.Event, error) {
	return nil, nil
}

func (s *failingStore) CountByKind(context.Context, string, string, time.Time) (int64, error) {
	return 0, nil
}

func (s *failingStore) Cleanup(context.Context, time.Time) (int64, error) {
	return 0, nil
}
