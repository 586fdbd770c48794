package calib

import (
	"math"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/strokelab/courtsync/internal/domain/model"
	"github.com/strokelab/courtsync/internal/domain/spatial"
)

func stillSample() model.MotionSample {
	return model.MotionSample{Acceleration: spatial.Vec3{Z: -9.8}}
}

// wobblySamples alternates the Z acceleration so the per-axis population
// variance is exactly wobble squared.
func wobblySamples(n int, wobble float64) []model.MotionSample {
	samples := make([]model.MotionSample, n)
	for i := range samples {
		z := -9.8 + wobble
		if i%2 == 1 {
			z = -9.8 - wobble
		}
		samples[i] = model.MotionSample{Acceleration: spatial.Vec3{Z: z}}
	}
	return samples
}

// activeSwing builds a trial whose angular velocity ramps along X, giving
// the axis estimator spread to work with.
func activeSwing(n int) []model.MotionSample {
	samples := make([]model.MotionSample, n)
	for i := range samples {
		samples[i] = model.MotionSample{
			Timestamp:       time.Duration(i) * 5 * time.Millisecond,
			AngularVelocity: spatial.Vec3{X: 16 + float64(i), Y: 0.2},
		}
	}
	return samples
}

func fillStatic(e *Engine, samples []model.MotionSample) {
	for _, s := range samples {
		e.AddStaticSample(s)
	}
}

func TestEngineLifecycle(t *testing.T) {
	Convey("Given an idle engine", t, func() {
		e := New(WithStaticTarget(10), WithSwingTarget(3))

		Convey("Then it starts idle with zero progress", func() {
			So(e.Phase(), ShouldEqual, PhaseIdle)
			So(e.Progress(), ShouldEqual, 0)
			_, ok := e.Result()
			So(ok, ShouldBeFalse)
		})

		Convey("When a cycle starts", func() {
			So(e.Start(), ShouldBeNil)

			Convey("Then the static phase begins", func() {
				So(e.Phase(), ShouldEqual, PhaseCollectingStatic)
			})

			Convey("Then starting again is refused while collecting", func() {
				So(e.Start(), ShouldEqual, ErrCalibrationRunning)
			})

			Convey("Then progress tracks the static buffer", func() {
				for i := 0; i < 5; i++ {
					e.AddStaticSample(stillSample())
				}
				So(e.Progress(), ShouldEqual, 0.5)
			})
		})

		Convey("When samples arrive while idle", func() {
			e.AddStaticSample(stillSample())

			Convey("Then they are ignored", func() {
				So(e.Phase(), ShouldEqual, PhaseIdle)
				So(e.Progress(), ShouldEqual, 0)
			})
		})
	})
}

func TestStaticPhaseStability(t *testing.T) {
	Convey("Given an engine collecting static samples", t, func() {
		Convey("When the device wobbles beyond the variance ceiling", func() {
			e := New(WithStaticTarget(10), WithSwingTarget(3))
			So(e.Start(), ShouldBeNil)
			fillStatic(e, wobblySamples(10, math.Sqrt(0.011)))

			Convey("Then the run fails with an instability reason", func() {
				So(e.Phase(), ShouldEqual, PhaseFailed)
				So(e.FailureReason(), ShouldContainSubstring, "device moved")
			})
		})

		Convey("When the wobble stays within the ceiling", func() {
			e := New(WithStaticTarget(10), WithSwingTarget(3))
			So(e.Start(), ShouldBeNil)
			fillStatic(e, wobblySamples(10, math.Sqrt(0.009)))

			Convey("Then the swing phase begins", func() {
				So(e.Phase(), ShouldEqual, PhaseCollectingSwings)
			})
		})
	})
}

func TestSwingTrialGating(t *testing.T) {
	Convey("Given an engine collecting swings", t, func() {
		e := New(WithStaticTarget(4), WithSwingTarget(3))
		So(e.Start(), ShouldBeNil)
		fillStatic(e, wobblySamples(4, 0))

		Convey("When a trial is shorter than the minimum", func() {
			So(e.AddSwingTrial(activeSwing(19)), ShouldBeFalse)
		})

		Convey("When a trial peaks exactly at the activity threshold", func() {
			trial := make([]model.MotionSample, 20)
			for i := range trial {
				trial[i] = model.MotionSample{AngularVelocity: spatial.Vec3{X: 10.0}}
			}

			So(e.AddSwingTrial(trial), ShouldBeFalse)
		})

		Convey("When a trial peaks just above the threshold", func() {
			trial := make([]model.MotionSample, 20)
			for i := range trial {
				trial[i] = model.MotionSample{AngularVelocity: spatial.Vec3{X: 10.1}}
			}

			So(e.AddSwingTrial(trial), ShouldBeTrue)
		})

		Convey("When trials arrive outside the swing phase", func() {
			e2 := New()
			So(e2.AddSwingTrial(activeSwing(25)), ShouldBeFalse)
		})
	})
}

func TestEngineCompletion(t *testing.T) {
	Convey("Given a stable static phase and repeatable swings", t, func() {
		e := New(WithStaticTarget(10), WithSwingTarget(3))
		So(e.Start(), ShouldBeNil)
		fillStatic(e, wobblySamples(10, 0))

		var transitions []Transition
		e.Observe(func(tr Transition) { transitions = append(transitions, tr) })

		for i := 0; i < 3; i++ {
			So(e.AddSwingTrial(activeSwing(25)), ShouldBeTrue)
		}

		Convey("Then the engine completes with a usable result", func() {
			So(e.Phase(), ShouldEqual, PhaseCompleted)
			So(e.Progress(), ShouldEqual, 1)

			result, ok := e.Result()
			So(ok, ShouldBeTrue)
			So(result.GravityAlignmentErrorPct, ShouldAlmostEqual, 0, 1e-9)
			So(result.SwingPlaneConsistency, ShouldEqual, 1)
			So(result.Quality, ShouldBeGreaterThan, 0.7)
			So(result.Usable(), ShouldBeTrue)
		})

		Convey("Then the world frame's up axis opposes measured gravity", func() {
			result, _ := e.Result()
			up := result.WorldFrame.ColZ
			So(up.X, ShouldAlmostEqual, 0, 1e-9)
			So(up.Y, ShouldAlmostEqual, 0, 1e-9)
			So(up.Z, ShouldAlmostEqual, 1, 1e-9)
		})

		Convey("Then the racket frame's X axis follows the swing rotation", func() {
			result, _ := e.Result()
			x := result.RacketFrame.ColX
			So(math.Abs(x.X), ShouldBeGreaterThan, 0.999)

			Convey("And the frame is orthonormal", func() {
				So(x.Dot(result.RacketFrame.ColY), ShouldAlmostEqual, 0, 1e-9)
				So(x.Dot(result.RacketFrame.ColZ), ShouldAlmostEqual, 0, 1e-9)
				So(result.RacketFrame.ColY.Norm(), ShouldAlmostEqual, 1, 1e-9)
				So(result.RacketFrame.ColZ.Norm(), ShouldAlmostEqual, 1, 1e-9)
			})
		})

		Convey("Then the completion transition was observed", func() {
			last := transitions[len(transitions)-1]
			So(last.To, ShouldEqual, PhaseCompleted)
			So(last.Progress, ShouldEqual, 1)
		})

		Convey("Then a new cycle can start from the terminal state", func() {
			So(e.Start(), ShouldBeNil)
			So(e.Phase(), ShouldEqual, PhaseCollectingStatic)
			_, ok := e.Result()
			So(ok, ShouldBeFalse)
		})
	})
}

func TestEngineFailureModes(t *testing.T) {
	Convey("Given static samples with no gravity signal", t, func() {
		e := New(WithStaticTarget(4), WithSwingTarget(2))
		So(e.Start(), ShouldBeNil)
		for i := 0; i < 4; i++ {
			e.AddStaticSample(model.MotionSample{})
		}
		So(e.Phase(), ShouldEqual, PhaseCollectingSwings)

		Convey("When the swing phase completes", func() {
			for i := 0; i < 2; i++ {
				So(e.AddSwingTrial(activeSwing(25)), ShouldBeTrue)
			}

			Convey("Then finalization fails on the missing gravity vector", func() {
				So(e.Phase(), ShouldEqual, PhaseFailed)
				So(e.FailureReason(), ShouldEqual, ErrGravityNotDetected.Error())
				_, ok := e.Result()
				So(ok, ShouldBeFalse)
			})
		})
	})

	Convey("Given swings that pass the gate but lack estimator motion", t, func() {
		e := New(WithStaticTarget(4), WithSwingTarget(2))
		So(e.Start(), ShouldBeNil)
		fillStatic(e, wobblySamples(4, 0))

		// Peaks above the activity threshold but below the estimator's
		// per-sample motion threshold.
		lazy := make([]model.MotionSample, 20)
		for i := range lazy {
			lazy[i] = model.MotionSample{AngularVelocity: spatial.Vec3{X: 12}}
		}

		Convey("When the swing phase completes", func() {
			for i := 0; i < 2; i++ {
				So(e.AddSwingTrial(lazy), ShouldBeTrue)
			}

			Convey("Then finalization fails on insufficient motion", func() {
				So(e.Phase(), ShouldEqual, PhaseFailed)
				So(e.FailureReason(), ShouldEqual, ErrInsufficientMotion.Error())
			})
		})
	})
}

func TestEngineReset(t *testing.T) {
	Convey("Given an engine mid-cycle", t, func() {
		e := New(WithStaticTarget(10), WithSwingTarget(3))
		So(e.Start(), ShouldBeNil)
		for i := 0; i < 5; i++ {
			e.AddStaticSample(stillSample())
		}

		Convey("When it is reset", func() {
			e.Reset()

			Convey("Then it returns to idle with cleared buffers", func() {
				So(e.Phase(), ShouldEqual, PhaseIdle)
				So(e.Progress(), ShouldEqual, 0)
			})

			Convey("Then a fresh cycle starts from zero", func() {
				So(e.Start(), ShouldBeNil)
				So(e.Progress(), ShouldEqual, 0)
			})
		})
	})
}
