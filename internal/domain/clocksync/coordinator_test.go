package clocksync_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/strokelab/courtsync/internal/domain/clocksync"
	"github.com/strokelab/courtsync/internal/domain/model"
)

// manualClock is advanced explicitly so round trips and offsets are exact.
type manualClock struct {
	mu  sync.Mutex
	now time.Duration
}

func (c *manualClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	c.mu.Unlock()
}

// scriptedLink advances the local clock to simulate transit time and answers
// with timestamps from a peer clock running a fixed offset ahead.
type scriptedLink struct {
	clock      *manualClock
	transit    time.Duration
	peerOffset time.Duration
	calls      atomic.Int64
}

func (l *scriptedLink) Exchange(_ context.Context, req clocksync.Request) (*clocksync.Reply, error) {
	l.calls.Add(1)
	l.clock.Advance(l.transit)
	peer := l.clock.Now() + l.peerOffset
	l.clock.Advance(l.transit)
	return &clocksync.Reply{ExchangeID: req.ExchangeID, T1: req.T1, T2: peer, T3: peer}, nil
}

type failingLink struct {
	calls atomic.Int64
}

func (l *failingLink) Exchange(context.Context, clocksync.Request) (*clocksync.Reply, error) {
	l.calls.Add(1)
	return nil, errors.New("peer unreachable")
}

// blockingLink holds every exchange until released.
type blockingLink struct {
	release chan struct{}
}

func (l *blockingLink) Exchange(ctx context.Context, req clocksync.Request) (*clocksync.Reply, error) {
	select {
	case <-l.release:
		return &clocksync.Reply{ExchangeID: req.ExchangeID, T1: req.T1}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func fastRetries() clocksync.Option {
	return clocksync.WithRetryDelayRange(time.Millisecond, 2*time.Millisecond)
}

func TestSynchronize(t *testing.T) {
	Convey("Given a peer running 500ms ahead over a 10ms round trip", t, func() {
		clock := &manualClock{}
		link := &scriptedLink{clock: clock, transit: 5 * time.Millisecond, peerOffset: 500 * time.Millisecond}
		coord := clocksync.New(link, clocksync.WithClock(clock), fastRetries())

		Convey("When synchronization runs", func() {
			err := <-coord.Synchronize(context.Background())

			Convey("Then the four-timestamp math recovers the offset exactly", func() {
				So(err, ShouldBeNil)
				state := coord.State()
				So(state.IsSynchronized, ShouldBeTrue)
				So(state.TimeOffset, ShouldEqual, 500*time.Millisecond)
				So(state.RoundTripQuality, ShouldEqual, 10*time.Millisecond)
				So(state.AttemptCount, ShouldEqual, 1)
			})

			Convey("Then peer timestamps remap onto the local axis", func() {
				local, err := coord.ConvertPeerToLocal(600 * time.Millisecond)
				So(err, ShouldBeNil)
				So(local, ShouldEqual, 100*time.Millisecond)
			})
		})

		Convey("When conversion is attempted before any exchange", func() {
			_, err := coord.ConvertPeerToLocal(time.Second)

			So(err, ShouldEqual, clocksync.ErrNotSynchronized)
		})
	})
}

func TestSynchronizeRejectsSlowRoundTrips(t *testing.T) {
	Convey("Given a link whose round trip always exceeds the ceiling", t, func() {
		clock := &manualClock{}
		link := &scriptedLink{clock: clock, transit: 75 * time.Millisecond}
		coord := clocksync.New(link, clocksync.WithClock(clock), fastRetries())

		Convey("When synchronization runs", func() {
			err := <-coord.Synchronize(context.Background())

			Convey("Then every attempt is spent and none is accepted", func() {
				So(err, ShouldEqual, clocksync.ErrRetriesExhausted)
				state := coord.State()
				So(state.IsSynchronized, ShouldBeFalse)
				So(state.AttemptCount, ShouldEqual, 5)
				So(link.calls.Load(), ShouldEqual, 5)
			})
		})
	})

	Convey("Given a peer that never answers", t, func() {
		link := &failingLink{}
		coord := clocksync.New(link, clocksync.WithMaxAttempts(3), fastRetries())

		Convey("When synchronization runs", func() {
			err := <-coord.Synchronize(context.Background())

			So(err, ShouldEqual, clocksync.ErrRetriesExhausted)
			So(link.calls.Load(), ShouldEqual, 3)
		})
	})
}

func TestSynchronizeCoalescesCallers(t *testing.T) {
	Convey("Given an exchange that takes a while", t, func() {
		clock := &manualClock{}
		release := make(chan struct{})
		link := &blockingLink{release: release}
		coord := clocksync.New(link, clocksync.WithClock(clock), fastRetries())

		Convey("When two callers synchronize concurrently", func() {
			first := coord.Synchronize(context.Background())
			second := coord.Synchronize(context.Background())
			close(release)

			Convey("Then both observe the single exchange's outcome", func() {
				So(<-first, ShouldBeNil)
				So(<-second, ShouldBeNil)
			})
		})
	})
}

func TestReset(t *testing.T) {
	Convey("Given an exchange in flight", t, func() {
		clock := &manualClock{}
		link := &blockingLink{release: make(chan struct{})}
		coord := clocksync.New(link, clocksync.WithClock(clock), fastRetries())

		Convey("When the coordinator is reset mid-flight", func() {
			done := coord.Synchronize(context.Background())
			coord.Reset()

			Convey("Then the waiter is failed with the reset error", func() {
				So(<-done, ShouldEqual, clocksync.ErrReset)
				So(coord.State().IsSynchronized, ShouldBeFalse)
			})
		})
	})

	Convey("Given a synchronized coordinator with history", t, func() {
		clock := &manualClock{}
		link := &scriptedLink{clock: clock, peerOffset: 100 * time.Millisecond}
		coord := clocksync.New(link, clocksync.WithClock(clock), fastRetries())
		So(<-coord.Synchronize(context.Background()), ShouldBeNil)
		_, err := coord.EstablishOrigin(model.DeviceHandheld)
		So(err, ShouldBeNil)

		Convey("When it is reset", func() {
			coord.Reset()

			Convey("Then state, origins and history are cleared", func() {
				So(coord.State(), ShouldResemble, model.SyncState{})
				So(coord.Corrections(), ShouldBeEmpty)
				So(coord.Events(), ShouldBeEmpty)
				_, err := coord.EstablishOrigin(model.DeviceHandheld)
				So(err, ShouldBeNil)
			})
		})
	})
}

func TestTimeOrigins(t *testing.T) {
	Convey("Given a coordinator with a manual clock", t, func() {
		clock := &manualClock{}
		clock.Advance(42 * time.Second)
		coord := clocksync.New(&failingLink{}, clocksync.WithClock(clock))

		Convey("When this device establishes its origin", func() {
			origin, err := coord.EstablishOrigin(model.DeviceHandheld)

			Convey("Then the origin anchors the current monotonic reading", func() {
				So(err, ShouldBeNil)
				So(origin.Device, ShouldEqual, model.DeviceHandheld)
				So(origin.SessionID, ShouldNotBeEmpty)
				So(origin.LocalOrigin, ShouldEqual, 42*time.Second)
			})

			Convey("Then a second establishment is refused", func() {
				_, err := coord.EstablishOrigin(model.DeviceHandheld)
				So(err, ShouldEqual, clocksync.ErrOriginAlreadySet)
			})

			Convey("Then raw timestamps convert to session-relative time", func() {
				rel, err := coord.RelativeTime(model.DeviceHandheld, 43*time.Second)
				So(err, ShouldBeNil)
				So(rel, ShouldEqual, time.Second)
			})
		})

		Convey("When the peer's origin is adopted", func() {
			peerOrigin := model.TimeOrigin{
				Device:      model.DeviceVision,
				SessionID:   "s-1",
				LocalOrigin: 10 * time.Second,
			}
			So(coord.AdoptOrigin(peerOrigin), ShouldBeNil)

			Convey("Then it is immutable too", func() {
				So(coord.AdoptOrigin(peerOrigin), ShouldEqual, clocksync.ErrOriginAlreadySet)
			})

			Convey("Then its timestamps convert as well", func() {
				rel, err := coord.RelativeTime(model.DeviceVision, 12*time.Second)
				So(err, ShouldBeNil)
				So(rel, ShouldEqual, 2*time.Second)
			})
		})

		Convey("When a device has no origin", func() {
			_, err := coord.RelativeTime(model.DeviceVision, time.Second)

			So(err, ShouldEqual, clocksync.ErrNoOrigin)
		})
	})
}
