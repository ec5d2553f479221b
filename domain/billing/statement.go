// Package billing provides statement value types and pure folding functions.
package billing

import (
	"fmt"
	"sort"
	"time"

	"github.com/metercore/metercore/domain/usage"
)

// Line is one operation-kind line on a statement (value type).
type Line struct {
	Kind       string
	Calls      int64
	BytesIn    int64
	BytesOut   int64
	DurationMs int64
	Amount     float64
}

// Statement represents one customer's charges for a period (value type).
// Derived from usage events, never stored.
type Statement struct {
	CustomerID  string
	PeriodStart time.Time
	PeriodEnd   time.Time
	Lines       []Line // ascending by kind
	Calls       int64
	Total       float64
}

// BuildStatement folds a usage summary into a statement.
// This is a PURE function. An empty summary yields a statement with no
// lines and a zero total.
func BuildStatement(customerID string, s usage.Summary) Statement {
	st := Statement{
		CustomerID:  customerID,
		PeriodStart: s.PeriodStart,
		PeriodEnd:   s.PeriodEnd,
		Calls:       s.Calls,
		Total:       s.Cost,
	}

	for _, k := range s.ByKind {
		st.Lines = append(st.Lines, Line{
			Kind:       k.Kind,
			Calls:      k.Calls,
			BytesIn:    k.BytesIn,
			BytesOut:   k.BytesOut,
			DurationMs: k.DurationMs,
			Amount:     k.Cost,
		})
	}
	sort.Slice(st.Lines, func(i, j int) bool { return st.Lines[i].Kind < st.Lines[j].Kind })

	return st
}

// FormatAmount renders a cost with the system's four-decimal precision.
// This is a PURE function.
func FormatAmount(v float64) string {
	return fmt.Sprintf("$%.4f", v)
}
