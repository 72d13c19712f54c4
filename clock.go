package reactor

import "time"

// Clock supplies monotonic current time in milliseconds since an arbitrary
// epoch. Implementations must never go backwards; wall-clock adjustments
// must not affect the reading.
type Clock interface {
	Now() int64
}

// anchorClock measures elapsed time against an anchor captured at
// construction. time.Since uses the monotonic clock reading, so the result
// is immune to wall-clock adjustment.
type anchorClock struct {
	anchor time.Time
}

// NewClock returns a monotonic millisecond clock anchored at the time of the
// call.
func NewClock() Clock {
	return &anchorClock{anchor: time.Now()}
}

func (c *anchorClock) Now() int64 {
	return time.Since(c.anchor).Milliseconds()
}
