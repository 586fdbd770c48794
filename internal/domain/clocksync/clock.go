package clocksync

import "time"

// Clock supplies monotonic readings measured from an arbitrary per-process
// epoch. Injected so tests can drive the protocol deterministically.
type Clock interface {
	Now() time.Duration
}

type monotonicClock struct {
	epoch time.Time
}

// NewMonotonicClock returns a Clock backed by the runtime's monotonic
// reading, anchored at the moment of creation.
func NewMonotonicClock() Clock {
	return &monotonicClock{epoch: time.Now()}
}

func (c *monotonicClock) Now() time.Duration {
	return time.Since(c.epoch)
}
