// Package clocksync establishes and maintains a common time origin between
// the two devices. The primary mechanism is a 4-timestamp round-trip
// exchange over an injected transport; a correlated-impulse fallback and a
// linear-drift corrector refine the offset afterwards.
package clocksync

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/strokelab/courtsync/internal/domain/model"
	"github.com/strokelab/courtsync/internal/domain/spatial"
)

// Default protocol constants.
const (
	defaultMaxRoundTrip   = 100 * time.Millisecond
	defaultMaxAttempts    = 5
	defaultRetryDelayMin  = 300 * time.Millisecond
	defaultRetryDelayMax  = 500 * time.Millisecond
	defaultAudioThreshold = 0.5 // normalized amplitude
	defaultJerkThreshold  = 8.0 // m/s² between consecutive samples
)

// Request carries the initiator's send timestamp t1 to the peer.
type Request struct {
	ExchangeID string
	T1         time.Duration
}

// Reply echoes t1 and carries the peer's receive (t2) and reply-send (t3)
// timestamps, both on the peer's own monotonic clock.
type Reply struct {
	ExchangeID string
	T1         time.Duration
	T2         time.Duration
	T3         time.Duration
}

// Exchanger is the transport contract supplied by the link layer. A nil
// reply without error is treated the same as a transport error: one failed
// attempt.
type Exchanger interface {
	Exchange(ctx context.Context, req Request) (*Reply, error)
}

// Coordinator owns the synchronization state for one device pair. All
// mutation goes through its methods under a single mutex; snapshots handed
// out are copies.
type Coordinator struct {
	mu    sync.Mutex
	clock Clock
	link  Exchanger

	maxRoundTrip time.Duration
	maxAttempts  int
	retryMin     time.Duration
	retryMax     time.Duration

	audioThreshold float64
	jerkThreshold  float64

	state      model.SyncState
	inflight   bool
	generation uint64
	waiters    []chan error

	origins     map[model.DeviceID]model.TimeOrigin
	events      []model.CorrelatedEvent
	corrections []model.Correction

	prevAccel map[model.DeviceID]spatial.Vec3
	prevSeen  map[model.DeviceID]bool
}

// New creates a Coordinator that exchanges over link.
func New(link Exchanger, opts ...Option) *Coordinator {
	c := &Coordinator{
		clock:          NewMonotonicClock(),
		link:           link,
		maxRoundTrip:   defaultMaxRoundTrip,
		maxAttempts:    defaultMaxAttempts,
		retryMin:       defaultRetryDelayMin,
		retryMax:       defaultRetryDelayMax,
		audioThreshold: defaultAudioThreshold,
		jerkThreshold:  defaultJerkThreshold,
		origins:        make(map[model.DeviceID]model.TimeOrigin),
		prevAccel:      make(map[model.DeviceID]spatial.Vec3),
		prevSeen:       make(map[model.DeviceID]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Synchronize starts (or joins) a round-trip synchronization run. The
// returned channel receives exactly one value (nil on success, an error on
// exhaustion or reset) and is then closed. While an exchange is in flight,
// additional callers are queued onto its outcome instead of issuing a
// second exchange.
func (c *Coordinator) Synchronize(ctx context.Context) <-chan error {
	done := make(chan error, 1)

	c.mu.Lock()
	c.waiters = append(c.waiters, done)
	if c.inflight {
		c.mu.Unlock()
		return done
	}
	c.inflight = true
	gen := c.generation
	c.mu.Unlock()

	go c.run(ctx, gen)
	return done
}

func (c *Coordinator) run(ctx context.Context, gen uint64) {
	outcome := ErrRetriesExhausted

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		c.mu.Lock()
		if gen != c.generation {
			c.mu.Unlock()
			return // reset fired while we were running
		}
		c.state.AttemptCount = attempt
		c.mu.Unlock()

		if offset, rtt, ok := c.attempt(ctx); ok {
			c.mu.Lock()
			if gen != c.generation {
				c.mu.Unlock()
				return
			}
			c.state.TimeOffset = offset
			c.state.RoundTripQuality = rtt
			c.state.IsSynchronized = true
			c.mu.Unlock()
			outcome = nil
			break
		}

		if ctx.Err() != nil {
			outcome = ctx.Err()
			break
		}
		if attempt < c.maxAttempts {
			if err := c.retryWait(ctx); err != nil {
				outcome = err
				break
			}
		}
	}

	c.finish(gen, outcome)
}

// attempt performs one round-trip exchange. It reports ok only when the
// peer replied and the round trip was within the acceptance ceiling.
func (c *Coordinator) attempt(ctx context.Context) (offset, rtt time.Duration, ok bool) {
	t1 := c.clock.Now()
	reply, err := c.link.Exchange(ctx, Request{ExchangeID: uuid.NewString(), T1: t1})
	t4 := c.clock.Now()
	if err != nil || reply == nil {
		return 0, 0, false
	}

	rtt = (t4 - t1) - (reply.T3 - reply.T2)
	if rtt > c.maxRoundTrip {
		return 0, rtt, false
	}
	offset = ((reply.T2 - t1) + (reply.T3 - t4)) / 2
	return offset, rtt, true
}

// retryWait sleeps for a bounded random delay before the next attempt.
func (c *Coordinator) retryWait(ctx context.Context) error {
	delay := c.retryMin
	if span := c.retryMax - c.retryMin; span > 0 {
		delay += time.Duration(rand.Int63n(int64(span))) //nolint:gosec // jitter, not crypto
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// finish fans the outcome out to every pending waiter exactly once.
func (c *Coordinator) finish(gen uint64, outcome error) {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return
	}
	waiters := c.waiters
	c.waiters = nil
	c.inflight = false
	c.mu.Unlock()

	for _, w := range waiters {
		w <- outcome
		close(w)
	}
}

// State returns a snapshot of the synchronization state.
func (c *Coordinator) State() model.SyncState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// EffectiveOffset returns the round-trip offset with the most recent
// correction folded in.
func (c *Coordinator) EffectiveOffset() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.TimeOffset + c.latestCorrectionLocked()
}

func (c *Coordinator) latestCorrectionLocked() time.Duration {
	if len(c.corrections) == 0 {
		return 0
	}
	return c.corrections[len(c.corrections)-1].Delta
}

// ConvertPeerToLocal remaps a peer timestamp onto the local time axis.
// Defined only once a round-trip exchange has succeeded.
func (c *Coordinator) ConvertPeerToLocal(peer time.Duration) (time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.IsSynchronized {
		return 0, ErrNotSynchronized
	}
	return peer - (c.state.TimeOffset + c.latestCorrectionLocked()), nil
}

// EstablishOrigin creates this device's time origin for the session. A
// second call for the same device fails; the origin is immutable once set.
func (c *Coordinator) EstablishOrigin(device model.DeviceID) (model.TimeOrigin, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.origins[device]; exists {
		return model.TimeOrigin{}, ErrOriginAlreadySet
	}
	origin := model.TimeOrigin{
		Device:          device,
		SessionID:       uuid.NewString(),
		LocalOrigin:     c.clock.Now(),
		WallclockOrigin: time.Now(),
	}
	c.origins[device] = origin
	return origin, nil
}

// AdoptOrigin records an origin transmitted by the peer. Like
// EstablishOrigin, it never overwrites an existing one.
func (c *Coordinator) AdoptOrigin(origin model.TimeOrigin) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.origins[origin.Device]; exists {
		return ErrOriginAlreadySet
	}
	c.origins[origin.Device] = origin
	return nil
}

// RelativeTime converts a raw device timestamp into elapsed time since that
// device's origin, adjusted by the latest accepted correction (zero if none
// has been accepted yet).
func (c *Coordinator) RelativeTime(device model.DeviceID, raw time.Duration) (time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	origin, ok := c.origins[device]
	if !ok {
		return 0, ErrNoOrigin
	}
	return raw - origin.LocalOrigin + c.latestCorrectionLocked(), nil
}

// Reset clears all synchronization state, origins, event and correction
// history. Any in-flight exchange is abandoned and its waiters receive
// ErrReset. Safe to call in any state.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	waiters := c.waiters
	c.waiters = nil
	c.inflight = false
	c.generation++
	c.state = model.SyncState{}
	c.origins = make(map[model.DeviceID]model.TimeOrigin)
	c.events = nil
	c.corrections = nil
	c.prevAccel = make(map[model.DeviceID]spatial.Vec3)
	c.prevSeen = make(map[model.DeviceID]bool)
	c.mu.Unlock()

	for _, w := range waiters {
		w <- ErrReset
		close(w)
	}
}
