// Package calib converts a noisy device-relative motion stream into two
// orthonormal reference frames: a world frame aligned with gravity and a
// racket frame aligned with the dominant swing rotation axis. A four-phase
// state machine accumulates samples, validates each phase, and scores the
// result so downstream consumers can gate on its quality.
package calib

import (
	"sync"

	"github.com/strokelab/courtsync/internal/domain/model"
)

// Phase is the engine's lifecycle state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseCollectingStatic
	PhaseCollectingSwings
	PhaseCompleted
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseCollectingStatic:
		return "collecting-static"
	case PhaseCollectingSwings:
		return "collecting-swings"
	case PhaseCompleted:
		return "completed"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Default phase thresholds.
const (
	defaultStaticTarget      = 300
	defaultSwingTarget       = 5
	defaultMinTrialSamples   = 20
	defaultMaxStaticVariance = 0.01 // (m/s²)² per axis
	defaultSwingActivity     = 10.0 // rad/s peak, strict
	defaultPCAMotion         = 15.0 // rad/s per sample
	defaultMinPCASamples     = 20
	defaultMinGravity        = 0.5 // m/s²
	defaultExpectedGravity   = 9.8 // m/s²
	defaultPowerIterations   = 24
)

// Transition describes one state change, delivered to registered observers.
type Transition struct {
	From     Phase
	To       Phase
	Progress float64
	Reason   string // set on failure transitions
}

// Observer receives phase transitions. Callbacks run on the mutating
// goroutine after the engine lock is released; keep them cheap.
type Observer func(Transition)

// Engine is the calibration state machine. Buffers are private and guarded
// by a single mutex; producers interact only through the documented
// operations, and out-of-phase submissions are silent no-ops.
type Engine struct {
	mu        sync.Mutex
	phase     Phase
	staticBuf []model.MotionSample
	swings    [][]model.MotionSample
	result    *model.CalibrationResult
	reason    string
	observers []Observer

	staticTarget      int
	swingTarget       int
	minTrialSamples   int
	maxStaticVariance float64
	swingActivity     float64
	pcaMotion         float64
	minPCASamples     int
	minGravity        float64
	expectedGravity   float64
	powerIterations   int
}

// New creates an idle Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		phase:             PhaseIdle,
		staticTarget:      defaultStaticTarget,
		swingTarget:       defaultSwingTarget,
		minTrialSamples:   defaultMinTrialSamples,
		maxStaticVariance: defaultMaxStaticVariance,
		swingActivity:     defaultSwingActivity,
		pcaMotion:         defaultPCAMotion,
		minPCASamples:     defaultMinPCASamples,
		minGravity:        defaultMinGravity,
		expectedGravity:   defaultExpectedGravity,
		powerIterations:   defaultPowerIterations,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Observe registers an observer for phase transitions.
func (e *Engine) Observe(fn Observer) {
	if fn == nil {
		return
	}
	e.mu.Lock()
	e.observers = append(e.observers, fn)
	e.mu.Unlock()
}

// Start begins a calibration cycle. From idle or a terminal state it clears
// any previous buffers and result and enters the static phase. Returns
// ErrCalibrationRunning while a cycle is already collecting.
func (e *Engine) Start() error {
	e.mu.Lock()
	if e.phase == PhaseCollectingStatic || e.phase == PhaseCollectingSwings {
		e.mu.Unlock()
		return ErrCalibrationRunning
	}
	from := e.phase
	e.clearLocked()
	e.phase = PhaseCollectingStatic
	t := Transition{From: from, To: PhaseCollectingStatic, Progress: 0}
	obs := e.observersLocked()
	e.mu.Unlock()

	notify(obs, t)
	return nil
}

// AddStaticSample appends one sample to the static-phase buffer. Ignored
// unless the engine is collecting static samples. Reaching the target count
// triggers the stability check and either fails the run or advances to the
// swing phase.
func (e *Engine) AddStaticSample(s model.MotionSample) {
	e.mu.Lock()
	if e.phase != PhaseCollectingStatic {
		e.mu.Unlock()
		return
	}
	e.staticBuf = append(e.staticBuf, s)
	if len(e.staticBuf) < e.staticTarget {
		e.mu.Unlock()
		return
	}

	var t Transition
	if v := maxAxisVariance(e.staticBuf); v > e.maxStaticVariance {
		e.phase = PhaseFailed
		e.reason = "static phase unstable: device moved while it should be still"
		t = Transition{From: PhaseCollectingStatic, To: PhaseFailed, Reason: e.reason}
	} else {
		e.phase = PhaseCollectingSwings
		t = Transition{From: PhaseCollectingStatic, To: PhaseCollectingSwings, Progress: 0}
	}
	obs := e.observersLocked()
	e.mu.Unlock()

	notify(obs, t)
}

// AddSwingTrial submits one swing trial: an ordered burst of samples.
// Ignored unless the engine is collecting swings. Trials shorter than the
// minimum or without enough angular-velocity activity are silently
// discarded; the return value reports acceptance. Reaching the trial target
// triggers frame computation.
func (e *Engine) AddSwingTrial(samples []model.MotionSample) bool {
	e.mu.Lock()
	if e.phase != PhaseCollectingSwings {
		e.mu.Unlock()
		return false
	}
	if len(samples) < e.minTrialSamples || peakAngularVelocity(samples) <= e.swingActivity {
		e.mu.Unlock()
		return false
	}

	trial := make([]model.MotionSample, len(samples))
	copy(trial, samples)
	e.swings = append(e.swings, trial)
	if len(e.swings) < e.swingTarget {
		e.mu.Unlock()
		return true
	}

	t := e.finalizeLocked()
	obs := e.observersLocked()
	e.mu.Unlock()

	notify(obs, t)
	return true
}

// finalizeLocked computes both frames and the quality metrics. Any failure
// moves the engine to PhaseFailed instead of producing a partial result.
func (e *Engine) finalizeLocked() Transition {
	world, meanAccel, err := worldFrameFromStatic(e.staticBuf, e.minGravity)
	if err != nil {
		e.phase = PhaseFailed
		e.reason = err.Error()
		return Transition{From: PhaseCollectingSwings, To: PhaseFailed, Reason: e.reason}
	}

	racket, err := racketFrameFromSwings(e.swings, e.pcaMotion, e.minPCASamples, e.powerIterations)
	if err != nil {
		e.phase = PhaseFailed
		e.reason = err.Error()
		return Transition{From: PhaseCollectingSwings, To: PhaseFailed, Reason: e.reason}
	}

	errPct := gravityAlignmentError(meanAccel.Norm(), e.expectedGravity)
	consistency := swingPlaneConsistency(trialPeaks(e.swings))
	result := model.CalibrationResult{
		WorldFrame:               world,
		RacketFrame:              racket,
		GravityAlignmentErrorPct: errPct,
		SwingPlaneConsistency:    consistency,
		Quality:                  compositeQuality(errPct, consistency),
	}
	e.result = &result
	e.phase = PhaseCompleted
	return Transition{From: PhaseCollectingSwings, To: PhaseCompleted, Progress: 1}
}

// Reset returns the engine to idle from any state and clears all buffers. A
// subsequent Start behaves like a fresh session.
func (e *Engine) Reset() {
	e.mu.Lock()
	from := e.phase
	e.clearLocked()
	e.phase = PhaseIdle
	obs := e.observersLocked()
	e.mu.Unlock()

	if from != PhaseIdle {
		notify(obs, Transition{From: from, To: PhaseIdle})
	}
}

func (e *Engine) clearLocked() {
	e.staticBuf = nil
	e.swings = nil
	e.result = nil
	e.reason = ""
}

// Phase returns the current phase.
func (e *Engine) Phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

// Progress reports the current phase's completion fraction: samples
// collected over target during the static phase, accepted trials over
// target during the swing phase, 1 when completed.
func (e *Engine) Progress() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.phase {
	case PhaseCollectingStatic:
		return capped(len(e.staticBuf), e.staticTarget)
	case PhaseCollectingSwings:
		return capped(len(e.swings), e.swingTarget)
	case PhaseCompleted:
		return 1
	default:
		return 0
	}
}

func capped(n, target int) float64 {
	if n > target {
		n = target
	}
	return float64(n) / float64(target)
}

// Result returns the calibration result; ok is false unless the engine has
// completed successfully.
func (e *Engine) Result() (model.CalibrationResult, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.phase != PhaseCompleted || e.result == nil {
		return model.CalibrationResult{}, false
	}
	return *e.result, true
}

// FailureReason returns the human-readable reason after a failed run.
func (e *Engine) FailureReason() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reason
}

func (e *Engine) observersLocked() []Observer {
	obs := make([]Observer, len(e.observers))
	copy(obs, e.observers)
	return obs
}

func notify(obs []Observer, t Transition) {
	for _, fn := range obs {
		fn(t)
	}
}
