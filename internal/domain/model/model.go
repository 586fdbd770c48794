// Package model contains domain models passed between layers.
package model

import (
	"time"

	"github.com/strokelab/courtsync/internal/domain/spatial"
)

// DeviceID identifies one of the two participating devices.
type DeviceID string

// The two devices of a session: the handheld unit sampling motion and the
// companion vision unit.
const (
	DeviceHandheld DeviceID = "handheld"
	DeviceVision   DeviceID = "vision"
)

// MotionSample is a single timestamped 6-axis reading. Immutable once
// created; the atomic unit consumed by both the sync coordinator and the
// calibration engine. Timestamp is the monotonic reading on the producing
// device, Wallclock is informational only. Acceleration is in m/s², angular
// velocity in rad/s.
type MotionSample struct {
	Timestamp       time.Duration `json:"timestamp"`
	Wallclock       time.Time     `json:"wallclock"`
	Seq             uint16        `json:"seq"`
	Acceleration    spatial.Vec3  `json:"acceleration"`
	AngularVelocity spatial.Vec3  `json:"angular_velocity"`
}

// TimeOrigin anchors a device's monotonic clock to the session start. Set
// once per session and never overwritten.
type TimeOrigin struct {
	Device          DeviceID      `json:"device"`
	SessionID       string        `json:"session_id"`
	LocalOrigin     time.Duration `json:"local_origin"`
	WallclockOrigin time.Time     `json:"wallclock_origin"`
}

// SyncState is a read-only snapshot of the coordinator's synchronization
// status. IsSynchronized implies RoundTripQuality passed the acceptance
// threshold at the moment the offset was set.
type SyncState struct {
	TimeOffset       time.Duration `json:"time_offset"` // peer time minus local time
	RoundTripQuality time.Duration `json:"round_trip_quality"`
	IsSynchronized   bool          `json:"is_synchronized"`
	AttemptCount     int           `json:"attempt_count"`
}

// EventKind classifies a correlated impulse event.
type EventKind string

const (
	KindAudioPeak    EventKind = "audio-peak"
	KindInertialJerk EventKind = "inertial-jerk"
)

// CorrelatedEvent is a sharp physical event detected independently on one
// device, used to derive tap-sync corrections. Append-only history.
type CorrelatedEvent struct {
	Device     DeviceID      `json:"device"`
	PeakTime   time.Duration `json:"peak_time"`  // relative to the device's time origin
	Confidence float64       `json:"confidence"` // [0,1]
	Kind       EventKind     `json:"kind"`
}

// CorrectionMethod names how a clock correction was derived.
type CorrectionMethod string

const (
	MethodTapSync     CorrectionMethod = "tap-sync"
	MethodLinearDrift CorrectionMethod = "linear-drift"
)

// Correction is one entry of the append-only correction history. The most
// recent correction's Delta folds into the effective offset.
type Correction struct {
	Delta      time.Duration    `json:"delta"`
	Method     CorrectionMethod `json:"method"`
	Confidence float64          `json:"confidence"` // [0,1]
	AppliedAt  time.Time        `json:"applied_at"`
}

// CalibrationResult holds the two rotation frames and the quality metrics
// produced by a successful calibration run. Immutable once created.
type CalibrationResult struct {
	WorldFrame               spatial.Mat3 `json:"world_frame"`
	RacketFrame              spatial.Mat3 `json:"racket_frame"`
	GravityAlignmentErrorPct float64      `json:"gravity_alignment_error_pct"`
	SwingPlaneConsistency    float64      `json:"swing_plane_consistency"` // [0,1]
	Quality                  float64      `json:"quality"`                 // [0,1]
}

// CalibrationStatus is a read-only snapshot of the calibration engine's
// state as exposed to transport layers. Result is nil until a run completes.
type CalibrationStatus struct {
	Phase         string             `json:"phase"`
	Progress      float64            `json:"progress"`
	FailureReason string             `json:"failure_reason,omitempty"`
	Result        *CalibrationResult `json:"result,omitempty"`
}

// Usability gate thresholds for a calibration result.
const (
	MinUsableQuality       = 0.7
	MaxUsableGravityErrPct = 5.0
)

// Usable reports whether downstream consumers may trust this result.
func (r CalibrationResult) Usable() bool {
	return r.Quality > MinUsableQuality && r.GravityAlignmentErrorPct < MaxUsableGravityErrPct
}
