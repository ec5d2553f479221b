package usage

import (
	"sort"
	"time"
)

// KindSummary aggregates one operation kind within a Summary (value type).
type KindSummary struct {
	Kind       string
	Calls      int64
	Successes  int64
	Failures   int64
	BytesIn    int64
	BytesOut   int64
	DurationMs int64
	Cost       float64
}

// Summary aggregates a set of events over a period (derived, never stored).
type Summary struct {
	PeriodStart time.Time
	PeriodEnd   time.Time

	Calls      int64
	Successes  int64
	Failures   int64
	BytesIn    int64
	BytesOut   int64
	DurationMs int64
	Cost       float64

	// SuccessRate is Successes/Calls, 0 for an empty period.
	SuccessRate float64

	ByKind map[string]KindSummary
}

// DayStat holds the per-calendar-date call split (value type).
type DayStat struct {
	Date      string // "2006-01-02", UTC
	Calls     int64
	Successes int64
	Failures  int64
}

// Analytics holds derived usage analytics for a period (value type).
type Analytics struct {
	PeriodStart time.Time
	PeriodEnd   time.Time

	Days         []DayStat // ascending by date
	PeakDay      string
	PeakDayCalls int64
	TopKind      string
	TopKindCalls int64
	SuccessRate  float64
}

// Summarize folds events into a Summary in a single pass.
// This is a PURE function. An empty input yields all-zero totals and an
// empty breakdown - no division ever happens on a zero count.
func Summarize(events []Event, periodStart, periodEnd time.Time) Summary {
	s := Summary{
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		ByKind:      make(map[string]KindSummary),
	}

	for _, e := range events {
		s.Calls++
		if e.Success {
			s.Successes++
		} else {
			s.Failures++
		}
		s.BytesIn += e.InputBytes
		s.BytesOut += e.OutputBytes
		s.DurationMs += e.DurationMs
		s.Cost += e.CostValue()

		k := s.ByKind[e.Kind]
		k.Kind = e.Kind
		k.Calls++
		if e.Success {
			k.Successes++
		} else {
			k.Failures++
		}
		k.BytesIn += e.InputBytes
		k.BytesOut += e.OutputBytes
		k.DurationMs += e.DurationMs
		k.Cost += e.CostValue()
		s.ByKind[e.Kind] = k
	}

	if s.Calls > 0 {
		s.SuccessRate = float64(s.Successes) / float64(s.Calls)
	}

	return s
}

// Analyze derives daily breakdown, peak day, most-used kind, and success
// rate from events. This is a PURE function; inputs are not mutated.
func Analyze(events []Event, periodStart, periodEnd time.Time) Analytics {
	a := Analytics{
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
	}

	byDay := make(map[string]DayStat)
	byKind := make(map[string]int64)
	var successes int64

	for _, e := range events {
		date := e.Timestamp.UTC().Format("2006-01-02")
		d := byDay[date]
		d.Date = date
		d.Calls++
		if e.Success {
			d.Successes++
			successes++
		} else {
			d.Failures++
		}
		byDay[date] = d

		byKind[e.Kind]++
	}

	for _, d := range byDay {
		a.Days = append(a.Days, d)
		if d.Calls > a.PeakDayCalls {
			a.PeakDay = d.Date
			a.PeakDayCalls = d.Calls
		}
	}
	sort.Slice(a.Days, func(i, j int) bool { return a.Days[i].Date < a.Days[j].Date })

	for kind, calls := range byKind {
		// Ties break toward the lexically smaller kind so output is stable.
		if calls > a.TopKindCalls || (calls == a.TopKindCalls && calls > 0 && kind < a.TopKind) {
			a.TopKind = kind
			a.TopKindCalls = calls
		}
	}

	if n := int64(len(events)); n > 0 {
		a.SuccessRate = float64(successes) / float64(n)
	}

	return a
}

// MonthBounds returns the start and end of the calendar month containing t,
// in UTC. This is a PURE function.
func MonthBounds(t time.Time) (start, end time.Time) {
	t = t.UTC()
	start = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	end = start.AddDate(0, 1, 0)
	return
}
