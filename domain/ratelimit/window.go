// Package ratelimit provides pure admission arithmetic for per-credential
// minute/hour/day rate windows. All functions are deterministic - same input
// always produces same output. State lives with the caller.
package ratelimit

import "time"

// Policy holds the three request ceilings for one credential (value type).
// A ceiling <= 0 means that window is unlimited.
type Policy struct {
	PerMinute int64
	PerHour   int64
	PerDay    int64
}

// Unlimited is a policy that admits everything (internal/testing credentials).
var Unlimited = Policy{}

// Table maps credential digests to policies, with a default for everyone else.
// Built once from config, replaced wholesale on reload, never mutated.
type Table struct {
	Default   Policy
	Overrides map[string]Policy
}

// For returns the policy for a credential digest.
func (t Table) For(credential string) Policy {
	if p, ok := t.Overrides[credential]; ok {
		return p
	}
	return t.Default
}

// WindowState represents the rolling counters for one credential (value type).
// Window starts are calendar-aligned: the minute window begins at :00 of the
// current minute, the hour window at :00:00, the day window at midnight UTC.
type WindowState struct {
	MinuteStart time.Time
	HourStart   time.Time
	DayStart    time.Time

	MinuteCount int64
	HourCount   int64
	DayCount    int64

	// Total is the lifetime admitted count. Never reset.
	Total int64
}

// Reasons for denial.
const (
	ReasonMinuteExceeded = "minute_limit_exceeded"
	ReasonHourExceeded   = "hour_limit_exceeded"
	ReasonDayExceeded    = "day_limit_exceeded"
)

// Decision represents the outcome of an admission check (value type).
type Decision struct {
	Allowed bool
	Reason  string    // Populated only if Allowed=false
	ResetAt time.Time // When the exhausted window rolls over
}

// Roll advances any window whose calendar boundary has passed, resetting its
// counter. Must run before any capacity comparison so counts are never checked
// against a stale window. This is a PURE function.
func Roll(state WindowState, now time.Time) WindowState {
	now = now.UTC()

	if minStart := now.Truncate(time.Minute); !minStart.Equal(state.MinuteStart) {
		state.MinuteStart = minStart
		state.MinuteCount = 0
	}
	if hourStart := now.Truncate(time.Hour); !hourStart.Equal(state.HourStart) {
		state.HourStart = hourStart
		state.HourCount = 0
	}
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if !dayStart.Equal(state.DayStart) {
		state.DayStart = dayStart
		state.DayCount = 0
	}

	return state
}

// Check performs one admission decision against a policy.
// This is a PURE function - no side effects, deterministic.
//
// The sequence is roll, then compare post-increment counts in order
// minute -> hour -> day (tightest window fails fastest), then increment all
// counters only if every window has room. A rejected call leaves the rolled
// state otherwise untouched.
//
// Returns:
//   - decision: whether the call is admitted, and why not
//   - newState: updated state (caller must persist)
func Check(state WindowState, p Policy, now time.Time) (Decision, WindowState) {
	state = Roll(state, now)

	if over(state.MinuteCount, p.PerMinute) {
		return Decision{
			Reason:  ReasonMinuteExceeded,
			ResetAt: state.MinuteStart.Add(time.Minute),
		}, state
	}
	if over(state.HourCount, p.PerHour) {
		return Decision{
			Reason:  ReasonHourExceeded,
			ResetAt: state.HourStart.Add(time.Hour),
		}, state
	}
	if over(state.DayCount, p.PerDay) {
		return Decision{
			Reason:  ReasonDayExceeded,
			ResetAt: state.DayStart.Add(24 * time.Hour),
		}, state
	}

	state.MinuteCount++
	state.HourCount++
	state.DayCount++
	state.Total++

	return Decision{Allowed: true}, state
}

// over reports whether admitting one more call would exceed the ceiling.
// A ceiling <= 0 means unlimited.
func over(count, ceiling int64) bool {
	return ceiling > 0 && count+1 > ceiling
}

// RetryAfter returns how long to wait before the denied window resets.
// This is a PURE function.
func RetryAfter(d Decision, now time.Time) time.Duration {
	if d.Allowed {
		return 0
	}
	wait := d.ResetAt.Sub(now.UTC())
	if wait < 0 {
		return 0
	}
	return wait
}
