package clocksync

import "time"

// Option applies a configuration option to the Coordinator.
type Option func(*Coordinator)

// WithClock sets the monotonic clock source.
func WithClock(clock Clock) Option {
	return func(c *Coordinator) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithMaxRoundTrip sets the acceptance ceiling for a round-trip exchange.
func WithMaxRoundTrip(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.maxRoundTrip = d
		}
	}
}

// WithMaxAttempts sets the retry ceiling for a synchronization run.
func WithMaxAttempts(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithRetryDelayRange sets the bounded delay applied between failed
// round-trip attempts.
func WithRetryDelayRange(minDelay, maxDelay time.Duration) Option {
	return func(c *Coordinator) {
		if minDelay > 0 && maxDelay >= minDelay {
			c.retryMin = minDelay
			c.retryMax = maxDelay
		}
	}
}

// WithAudioPeakThreshold sets the normalized amplitude above which an audio
// reading is recorded as a correlated event.
func WithAudioPeakThreshold(v float64) Option {
	return func(c *Coordinator) {
		if v > 0 {
			c.audioThreshold = v
		}
	}
}

// WithJerkThreshold sets the acceleration-delta norm above which a motion
// sample is recorded as a correlated event.
func WithJerkThreshold(v float64) Option {
	return func(c *Coordinator) {
		if v > 0 {
			c.jerkThreshold = v
		}
	}
}
