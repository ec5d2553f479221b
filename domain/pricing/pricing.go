// Package pricing provides the pure cost model: event dimensions in, money
// out. No I/O, no clock, no state.
package pricing

import (
	"math"

	"github.com/metercore/metercore/domain/usage"
)

// Unit conversion constants for the cost formula.
const (
	BytesPerMB      = 1 << 20 // 1,048,576
	MillisPerMinute = 60_000
)

// costDecimals bounds precision drift in aggregates: every priced event is
// rounded to this many decimal places.
const costDecimals = 4

// Discount reduces cost by Percent once the caller's prior count for the
// period reaches Threshold.
type Discount struct {
	Threshold int64
	Percent   float64 // 0..100
}

// Rule prices one operation kind (value type).
type Rule struct {
	BasePrice      float64 // per call
	PricePerMB     float64 // per MB of combined input+output
	PricePerMinute float64 // per minute of processing time

	// Discounts must be ordered by ascending Threshold; the highest
	// threshold at or below the prior count wins.
	Discounts []Discount
}

// Table maps operation kinds to pricing rules. Loaded once from config,
// replaced wholesale on reload, treated as read-only.
type Table struct {
	Rules   map[string]Rule
	Default Rule
}

// RuleFor returns the rule for a kind, falling back to the default rule for
// unrecognized kinds. Lookup never fails.
func (t Table) RuleFor(kind string) Rule {
	if r, ok := t.Rules[kind]; ok {
		return r
	}
	return t.Default
}

// Price computes the cost of an event without volume discounts.
// This is a PURE function; the result is always finite and >= 0.
func (t Table) Price(e usage.Event) float64 {
	return t.PriceWithVolume(e, -1)
}

// PriceWithVolume computes the cost of an event, applying the volume
// discount earned by priorCount operations of the same kind this period.
// A negative priorCount means "unknown" and skips discounts entirely.
// This is a PURE function.
func (t Table) PriceWithVolume(e usage.Event, priorCount int64) float64 {
	r := t.RuleFor(e.Kind)

	bytes := e.TotalBytes()
	if bytes < 0 {
		bytes = 0
	}
	durationMs := e.DurationMs
	if durationMs < 0 {
		durationMs = 0
	}

	cost := r.BasePrice +
		float64(bytes)/BytesPerMB*r.PricePerMB +
		float64(durationMs)/MillisPerMinute*r.PricePerMinute

	if priorCount >= 0 {
		if pct := discountPercent(r.Discounts, priorCount); pct > 0 {
			cost *= 1 - pct/100
		}
	}

	if cost < 0 || math.IsNaN(cost) || math.IsInf(cost, 0) {
		cost = 0
	}

	return Round(cost)
}

// Round rounds a cost to the fixed precision used everywhere in the system.
// This is a PURE function.
func Round(v float64) float64 {
	shift := math.Pow10(costDecimals)
	return math.Round(v*shift) / shift
}

// discountPercent returns the discount earned at a prior count.
func discountPercent(discounts []Discount, prior int64) float64 {
	var pct float64
	for _, d := range discounts {
		if prior >= d.Threshold {
			pct = d.Percent
		}
	}
	return pct
}
