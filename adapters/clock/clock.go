// Package clock implements ports.Clock.
package clock

import (
	"sync/atomic"
	"time"
)

// Real reads the system clock.
type Real struct{}

func (Real) Now() time.Time { return time.Now() }

// Fake is a manually driven clock. It only moves when advanced, so window
// rollovers in tests happen at exact boundaries.
type Fake struct {
	nanos atomic.Int64
}

// NewFake returns a fake clock pinned to t.
func NewFake(t time.Time) *Fake {
	f := &Fake{}
	f.nanos.Store(t.UnixNano())
	return f
}

func (f *Fake) Now() time.Time {
	return time.Unix(0, f.nanos.Load()).UTC()
}

// Advance moves the clock forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.nanos.Add(int64(d))
}
