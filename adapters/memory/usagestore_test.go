package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/metercore/metercore/adapters/memory"
	"github.com/metercore/metercore/domain/usage"
)

func event(id, customer, kind string, ts time.Time) usage.Event {
	return usage.Event{
		ID:         id,
		Timestamp:  ts,
		CustomerID: customer,
		Operation:  "POST /v1/convert",
		Kind:       kind,
		Success:    true,
	}
}

func TestUsageStore_AppendAndList(t *testing.T) {
	s := memory.NewUsageStore()
	ctx := context.Background()
	base := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	events := []usage.Event{
		event("e1", "cust-1", "audio_conversion", base),
		event("e2", "cust-1", "transcription", base.Add(time.Hour)),
		event("e3", "cust-2", "audio_conversion", base.Add(2*time.Hour)),
	}
	if err := s.Append(ctx, events); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	got, err := s.ListByCustomer(ctx, "cust-1", base, base.Add(24*time.Hour), 0, 0)
	if err != nil {
		t.Fatalf("ListByCustomer() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].ID != "e1" || got[1].ID != "e2" {
		t.Errorf("order = [%s %s], want [e1 e2]", got[0].ID, got[1].ID)
	}
}

func TestUsageStore_ListRangeIsHalfOpen(t *testing.T) {
	s := memory.NewUsageStore()
	ctx := context.Background()
	base := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	s.Append(ctx, []usage.Event{
		event("before", "cust-1", "k", base.Add(-time.Second)),
		event("at-start", "cust-1", "k", base),
		event("at-end", "cust-1", "k", base.Add(time.Hour)),
	})

	got, err := s.ListByCustomer(ctx, "cust-1", base, base.Add(time.Hour), 0, 0)
	if err != nil {
		t.Fatalf("ListByCustomer() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != "at-start" {
		t.Errorf("got %d events, want only the event at range start", len(got))
	}
}

func TestUsageStore_Pagination(t *testing.T) {
	s := memory.NewUsageStore()
	ctx := context.Background()
	base := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		s.Append(ctx, []usage.Event{
			event(string(rune('a'+i)), "cust-1", "k", base.Add(time.Duration(i)*time.Minute)),
		})
	}
	end := base.Add(time.Hour)

	got, _ := s.ListByCustomer(ctx, "cust-1", base, end, 2, 0)
	if len(got) != 2 || got[0].ID != "a" {
		t.Errorf("page 1 = %v, want [a b]", ids(got))
	}

	got, _ = s.ListByCustomer(ctx, "cust-1", base, end, 2, 2)
	if len(got) != 2 || got[0].ID != "c" {
		t.Errorf("page 2 = %v, want [c d]", ids(got))
	}

	got, _ = s.ListByCustomer(ctx, "cust-1", base, end, 2, 10)
	if len(got) != 0 {
		t.Errorf("offset past end returned %d events, want 0", len(got))
	}
}

func TestUsageStore_UnknownPartition(t *testing.T) {
	s := memory.NewUsageStore()
	ctx := context.Background()
	base := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	// No customer id: the event lands in the shared unknown partition.
	s.Append(ctx, []usage.Event{event("anon", "", "k", base)})

	got, err := s.ListByCustomer(ctx, usage.PartitionUnknown, base, base.Add(time.Hour), 0, 0)
	if err != nil {
		t.Fatalf("ListByCustomer() error = %v", err)
	}
	if len(got) != 1 {
		t.Errorf("unknown partition has %d events, want 1", len(got))
	}
}

func TestUsageStore_ListByOrganization(t *testing.T) {
	s := memory.NewUsageStore()
	ctx := context.Background()
	base := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	e1 := event("e1", "cust-1", "k", base)
	e1.Organization = "acme"
	e2 := event("e2", "cust-2", "k", base.Add(time.Minute))
	e2.Organization = "acme"
	e3 := event("e3", "cust-3", "k", base.Add(2*time.Minute))
	e3.Organization = "other"
	s.Append(ctx, []usage.Event{e1, e2, e3})

	got, err := s.ListByOrganization(ctx, "acme", base, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("ListByOrganization() error = %v", err)
	}
	if len(got) != 2 {
		t.Errorf("len = %d, want 2", len(got))
	}
}

func TestUsageStore_CountByKind(t *testing.T) {
	s := memory.NewUsageStore()
	ctx := context.Background()
	base := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	s.Append(ctx, []usage.Event{
		event("e1", "cust-1", "audio_conversion", base),
		event("e2", "cust-1", "audio_conversion", base.Add(time.Hour)),
		event("e3", "cust-1", "transcription", base.Add(time.Hour)),
		event("e4", "cust-1", "audio_conversion", base.Add(-48*time.Hour)),
	})

	n, err := s.CountByKind(ctx, "cust-1", "audio_conversion", base)
	if err != nil {
		t.Fatalf("CountByKind() error = %v", err)
	}
	if n != 2 {
		t.Errorf("count = %d, want 2", n)
	}
}

func TestUsageStore_Cleanup(t *testing.T) {
	s := memory.NewUsageStore()
	ctx := context.Background()
	base := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	s.Append(ctx, []usage.Event{
		event("old", "cust-1", "k", base.Add(-30*24*time.Hour)),
		event("new", "cust-1", "k", base),
	})

	removed, err := s.Cleanup(ctx, base.Add(-7*24*time.Hour))
	if err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func ids(events []usage.Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.ID
	}
	return out
}
