package service

import (
	"context"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/strokelab/courtsync/internal/domain/calib"
	"github.com/strokelab/courtsync/internal/domain/clocksync"
	"github.com/strokelab/courtsync/internal/domain/model"
	"github.com/strokelab/courtsync/internal/domain/spatial"
	"github.com/strokelab/courtsync/pkg/logger"
)

// fakeLink answers exchanges instantly with a fixed peer clock offset.
type fakeLink struct {
	offset time.Duration
}

func (f *fakeLink) Exchange(_ context.Context, req clocksync.Request) (*clocksync.Reply, error) {
	peer := req.T1 + f.offset
	return &clocksync.Reply{ExchangeID: req.ExchangeID, T1: req.T1, T2: peer, T3: peer}, nil
}

func init() {
	_ = logger.Init()
}

func newStartedService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	base := []Option{
		WithCoordinator(clocksync.New(&fakeLink{offset: 25 * time.Millisecond})),
	}
	s := New(append(base, opts...)...)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	t.Cleanup(s.Stop)
	return s
}

func staticSample(seq uint16) model.MotionSample {
	return model.MotionSample{
		Seq:          seq,
		Timestamp:    time.Duration(seq) * 10 * time.Millisecond,
		Acceleration: spatial.Vec3{Z: -9.8},
	}
}

// swingTrial builds a trial with peak angular velocity well above the
// activity threshold and enough magnitude spread for the frame estimator.
func swingTrial() []model.MotionSample {
	samples := make([]model.MotionSample, 25)
	for i := range samples {
		mag := 16.0 + float64(i)
		samples[i] = model.MotionSample{
			Timestamp:       time.Duration(i) * 5 * time.Millisecond,
			AngularVelocity: spatial.Vec3{X: mag, Y: 0.2},
		}
	}
	return samples
}

func waitForPhase(t *testing.T, s *Service, phase string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.CalibrationState().Phase == phase {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for phase %q, at %q", phase, s.CalibrationState().Phase)
}

func TestServiceStart(t *testing.T) {
	convey.Convey("Given a service without a coordinator", t, func() {
		s := New()

		convey.Convey("Then Start fails", func() {
			convey.So(s.Start(context.Background()), convey.ShouldEqual, ErrNoCoordinator)
		})
	})

	convey.Convey("Given a configured service", t, func() {
		s := New(WithCoordinator(clocksync.New(&fakeLink{})))

		convey.Convey("Then Start succeeds and is idempotent", func() {
			convey.So(s.Start(context.Background()), convey.ShouldBeNil)
			convey.So(s.Start(context.Background()), convey.ShouldBeNil)
			s.Stop()
		})
	})
}

func TestServiceIngest(t *testing.T) {
	convey.Convey("Given a started service", t, func() {
		s := newStartedService(t)
		ctx := context.Background()

		convey.Convey("When a sample is ingested", func() {
			ok := s.Ingest(ctx, model.DeviceHandheld, staticSample(1))

			convey.Convey("Then it is accepted", func() {
				convey.So(ok, convey.ShouldBeTrue)
			})

			convey.Convey("Then the same device and sequence is rejected", func() {
				convey.So(s.Ingest(ctx, model.DeviceHandheld, staticSample(1)), convey.ShouldBeFalse)
			})

			convey.Convey("Then the same sequence from the other device is accepted", func() {
				convey.So(s.Ingest(ctx, model.DeviceVision, staticSample(1)), convey.ShouldBeTrue)
			})
		})
	})
}

func TestServiceSynchronize(t *testing.T) {
	convey.Convey("Given a started service with a responsive peer", t, func() {
		s := newStartedService(t)

		convey.Convey("When synchronizing", func() {
			err := <-s.Synchronize(context.Background())

			convey.Convey("Then the offset converges on the peer's", func() {
				convey.So(err, convey.ShouldBeNil)
				state := s.SyncState()
				convey.So(state.IsSynchronized, convey.ShouldBeTrue)
				convey.So(state.TimeOffset, convey.ShouldAlmostEqual, 25*time.Millisecond, time.Millisecond)
			})
		})

		convey.Convey("When sync state is reset", func() {
			<-s.Synchronize(context.Background())
			s.ResetSync()

			convey.Convey("Then the state is cleared", func() {
				convey.So(s.SyncState().IsSynchronized, convey.ShouldBeFalse)
			})
		})
	})
}

func TestServiceCalibrationCycle(t *testing.T) {
	convey.Convey("Given a started service with a small static target", t, func() {
		engine := calib.New(calib.WithStaticTarget(10), calib.WithSwingTarget(3))
		s := newStartedService(t, WithEngine(engine))
		ctx := context.Background()

		convey.Convey("When a full calibration cycle runs through the pipeline", func() {
			convey.So(s.StartCalibration(), convey.ShouldBeNil)

			for seq := uint16(1); seq <= 10; seq++ {
				convey.So(s.Ingest(ctx, model.DeviceHandheld, staticSample(seq)), convey.ShouldBeTrue)
			}
			waitForPhase(t, s, "collecting-swings")

			for i := 0; i < 3; i++ {
				convey.So(s.SubmitSwingTrial(swingTrial()), convey.ShouldBeTrue)
			}

			convey.Convey("Then the engine completes with a usable result", func() {
				state := s.CalibrationState()
				convey.So(state.Phase, convey.ShouldEqual, "completed")
				convey.So(state.Result, convey.ShouldNotBeNil)
				convey.So(state.Result.Quality, convey.ShouldBeGreaterThan, 0.7)
				convey.So(state.Result.Usable(), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a weak swing trial is submitted", func() {
			convey.So(s.StartCalibration(), convey.ShouldBeNil)
			for seq := uint16(1); seq <= 10; seq++ {
				s.Ingest(ctx, model.DeviceHandheld, staticSample(seq))
			}
			waitForPhase(t, s, "collecting-swings")

			weak := []model.MotionSample{{AngularVelocity: spatial.Vec3{X: 1}}}

			convey.Convey("Then it is rejected", func() {
				convey.So(s.SubmitSwingTrial(weak), convey.ShouldBeFalse)
			})
		})

		convey.Convey("When calibration is reset mid-cycle", func() {
			convey.So(s.StartCalibration(), convey.ShouldBeNil)
			s.ResetCalibration()

			convey.Convey("Then the engine returns to idle", func() {
				convey.So(s.CalibrationState().Phase, convey.ShouldEqual, "idle")
			})
		})
	})
}

func TestServiceTapCorrection(t *testing.T) {
	convey.Convey("Given a started service", t, func() {
		s := newStartedService(t)
		ctx := context.Background()

		convey.Convey("When an audio peak and an inertial jerk are observed", func() {
			s.RecordAudioLevel(model.DeviceVision, 0.9, 100*time.Millisecond)

			// Two samples: a quiet one then a sharp acceleration change.
			s.Ingest(ctx, model.DeviceHandheld, model.MotionSample{Seq: 1, Timestamp: 90 * time.Millisecond})
			s.Ingest(ctx, model.DeviceHandheld, model.MotionSample{
				Seq:          2,
				Timestamp:    95 * time.Millisecond,
				Acceleration: spatial.Vec3{X: 12},
			})

			corr, err := s.ApplyTapCorrection(ctx)

			convey.Convey("Then the correction spans the two peak times", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(corr.Method, convey.ShouldEqual, model.MethodTapSync)
				convey.So(corr.Delta, convey.ShouldEqual, 5*time.Millisecond)
			})
		})

		convey.Convey("When no events are recorded", func() {
			_, err := s.ApplyTapCorrection(ctx)

			convey.Convey("Then the correction is refused", func() {
				convey.So(err, convey.ShouldEqual, clocksync.ErrInsufficientEvents)
			})
		})
	})
}
