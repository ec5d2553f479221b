package usage_test

import (
	"testing"
	"time"

	"github.com/metercore/metercore/domain/usage"
)

var (
	periodStart = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	periodEnd   = time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
)

func priced(e usage.Event, cost float64) usage.Event {
	return e.Priced(cost)
}

func TestSummarize_Empty(t *testing.T) {
	s := usage.Summarize(nil, periodStart, periodEnd)

	if s.Calls != 0 || s.Successes != 0 || s.Failures != 0 {
		t.Errorf("counts = %d/%d/%d, want all zero", s.Calls, s.Successes, s.Failures)
	}
	if s.BytesIn != 0 || s.BytesOut != 0 || s.DurationMs != 0 || s.Cost != 0 {
		t.Error("totals nonzero for empty input")
	}
	if s.SuccessRate != 0 {
		t.Errorf("successRate = %v, want 0 (no division by zero)", s.SuccessRate)
	}
	if len(s.ByKind) != 0 {
		t.Errorf("breakdown has %d kinds, want 0", len(s.ByKind))
	}
	if !s.PeriodStart.Equal(periodStart) || !s.PeriodEnd.Equal(periodEnd) {
		t.Error("period bounds not carried through")
	}
}

func TestSummarize_TotalsAndBreakdown(t *testing.T) {
	events := []usage.Event{
		priced(usage.Event{Kind: "audio_transcode", Success: true, InputBytes: 100, OutputBytes: 40, DurationMs: 900}, 0.02),
		priced(usage.Event{Kind: "audio_transcode", Success: false, InputBytes: 50, DurationMs: 100}, 0.01),
		priced(usage.Event{Kind: "seo_lookup", Success: true, DurationMs: 30}, 0.005),
	}

	s := usage.Summarize(events, periodStart, periodEnd)

	if s.Calls != 3 || s.Successes != 2 || s.Failures != 1 {
		t.Errorf("counts = %d/%d/%d, want 3/2/1", s.Calls, s.Successes, s.Failures)
	}
	if s.BytesIn != 150 || s.BytesOut != 40 {
		t.Errorf("bytes = %d/%d, want 150/40", s.BytesIn, s.BytesOut)
	}
	if s.DurationMs != 1030 {
		t.Errorf("durationMs = %d, want 1030", s.DurationMs)
	}
	if diff := s.Cost - 0.035; diff < -1e-9 || diff > 1e-9 {
		t.Errorf("cost = %v, want 0.035", s.Cost)
	}
	if s.SuccessRate < 0.666 || s.SuccessRate > 0.667 {
		t.Errorf("successRate = %v, want ~2/3", s.SuccessRate)
	}

	audio := s.ByKind["audio_transcode"]
	if audio.Calls != 2 || audio.Failures != 1 {
		t.Errorf("audio breakdown = %+v", audio)
	}
	seo := s.ByKind["seo_lookup"]
	if seo.Calls != 1 || seo.Successes != 1 {
		t.Errorf("seo breakdown = %+v", seo)
	}
}

func TestSummarize_UnpricedEventsCostZero(t *testing.T) {
	events := []usage.Event{{Kind: "seo_lookup", Success: true}}
	s := usage.Summarize(events, periodStart, periodEnd)
	if s.Cost != 0 {
		t.Errorf("cost = %v, want 0 for unpriced events", s.Cost)
	}
}

func TestAnalyze_Empty(t *testing.T) {
	a := usage.Analyze(nil, periodStart, periodEnd)
	if len(a.Days) != 0 || a.PeakDay != "" || a.TopKind != "" || a.SuccessRate != 0 {
		t.Errorf("analytics for empty input = %+v, want zero value fields", a)
	}
}

func TestAnalyze_PeakDayAndTopKind(t *testing.T) {
	day1 := time.Date(2025, 6, 3, 10, 0, 0, 0, time.UTC)
	day2 := time.Date(2025, 6, 4, 10, 0, 0, 0, time.UTC)

	events := []usage.Event{
		{Kind: "audio_transcode", Timestamp: day1, Success: true},
		{Kind: "seo_lookup", Timestamp: day2, Success: true},
		{Kind: "seo_lookup", Timestamp: day2.Add(time.Hour), Success: false},
		{Kind: "seo_lookup", Timestamp: day2.Add(2 * time.Hour), Success: true},
	}

	a := usage.Analyze(events, periodStart, periodEnd)

	if a.PeakDay != "2025-06-04" || a.PeakDayCalls != 3 {
		t.Errorf("peak = %s/%d, want 2025-06-04/3", a.PeakDay, a.PeakDayCalls)
	}
	if a.TopKind != "seo_lookup" || a.TopKindCalls != 3 {
		t.Errorf("topKind = %s/%d, want seo_lookup/3", a.TopKind, a.TopKindCalls)
	}
	if a.SuccessRate != 0.75 {
		t.Errorf("successRate = %v, want 0.75", a.SuccessRate)
	}

	if len(a.Days) != 2 || a.Days[0].Date != "2025-06-03" || a.Days[1].Date != "2025-06-04" {
		t.Errorf("days = %+v, want two days ascending", a.Days)
	}
	if a.Days[1].Successes != 2 || a.Days[1].Failures != 1 {
		t.Errorf("day2 split = %+v, want 2 successes 1 failure", a.Days[1])
	}
}

func TestMonthBounds(t *testing.T) {
	start, end := usage.MonthBounds(time.Date(2025, 2, 14, 9, 30, 0, 0, time.UTC))
	if !start.Equal(time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("start = %v", start)
	}
	if !end.Equal(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("end = %v", end)
	}
}

func TestEvent_Partition(t *testing.T) {
	if got := (usage.Event{CustomerID: "cus_42"}).Partition(); got != "cus_42" {
		t.Errorf("partition = %q, want cus_42", got)
	}
	if got := (usage.Event{}).Partition(); got != usage.PartitionUnknown {
		t.Errorf("partition = %q, want %q", got, usage.PartitionUnknown)
	}
}

func TestEvent_PricedDoesNotMutate(t *testing.T) {
	e := usage.Event{Kind: "seo_lookup"}
	p := e.Priced(0.5)
	if e.Cost != nil {
		t.Error("original event mutated by Priced")
	}
	if p.CostValue() != 0.5 {
		t.Errorf("priced copy cost = %v, want 0.5", p.CostValue())
	}
}
