package marine

import (
	"sync/atomic"
	"time"
)

// Clock stamps records with unix nanoseconds.
type Clock interface {
	Now() uint64
}

// MonotonicClock follows the wall clock but never returns a value less than or
// equal to one it returned before, so an update is always stamped after the
// create it follows.
type MonotonicClock struct {
	last atomic.Uint64
	wall func() time.Time
}

// NewMonotonicClock returns a clock driven by time.Now.
func NewMonotonicClock() *MonotonicClock {
	return &MonotonicClock{wall: time.Now}
}

func (c *MonotonicClock) Now() uint64 {
	for {
		now := uint64(c.wall().UnixNano())
		last := c.last.Load()
		if now <= last {
			now = last + 1
		}
		if c.last.CompareAndSwap(last, now) {
			return now
		}
	}
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() uint64

func (f ClockFunc) Now() uint64 { return f() }
