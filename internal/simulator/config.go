package simulator

import "time"

// Config holds configuration for a simulated sensor session.
type Config struct {
	BaseURL     string        // Base URL of the service
	StaticCount int           // Number of still samples to stream
	SwingTrials int           // Number of swing trials to submit
	SwingLength int           // Samples per swing trial
	Workers     int           // Number of concurrent submission workers
	Timeout     time.Duration // HTTP request timeout
	LogFile     string        // Log file for run output
	Verbose     bool          // Enable verbose logging
}

// Stats holds run statistics.
type Stats struct {
	SamplesGenerated int
	SamplesAccepted  int
	SamplesDropped   int
	SamplesFailed    int
	TrialsSubmitted  int
	TrialsAccepted   int
	SyncOffsetUS     int64
	Synchronized     bool
	FinalPhase       string
	Quality          float64
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
}

// motionSample is the wire form of one sensor reading.
type motionSample struct {
	Device          string `json:"device"`
	Seq             uint16 `json:"seq"`
	TimestampUS     int64  `json:"timestamp_us"`
	Acceleration    vec3   `json:"acceleration"`
	AngularVelocity vec3   `json:"angular_velocity"`
}

type vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type swingSample struct {
	TimestampUS     int64 `json:"timestamp_us"`
	Acceleration    vec3  `json:"acceleration"`
	AngularVelocity vec3  `json:"angular_velocity"`
}

type swingTrial struct {
	Samples []swingSample `json:"samples"`
}

// Response mirrors. Only the fields the run inspects are declared.
type sampleAck struct {
	Status   string `json:"status"`
	QueueLen int    `json:"queue_len"`
}

type swingAck struct {
	Accepted    bool              `json:"accepted"`
	Calibration calibrationStatus `json:"calibration"`
}

type calibrationStatus struct {
	Phase         string             `json:"phase"`
	Progress      float64            `json:"progress"`
	FailureReason string             `json:"failure_reason,omitempty"`
	Result        *calibrationResult `json:"result,omitempty"`
}

type calibrationResult struct {
	Quality                  float64 `json:"quality"`
	GravityAlignmentErrorPct float64 `json:"gravity_alignment_error_pct"`
	SwingPlaneConsistency    float64 `json:"swing_plane_consistency"`
}

type syncResponse struct {
	Sync struct {
		TimeOffset       int64 `json:"time_offset"` // nanoseconds
		RoundTripQuality int64 `json:"round_trip_quality"`
		IsSynchronized   bool  `json:"is_synchronized"`
		AttemptCount     int   `json:"attempt_count"`
	} `json:"sync"`
	EffectiveOffsetUS int64 `json:"effective_offset_us"`
}

type statusResponse struct {
	Calibration calibrationStatus `json:"calibration"`
	QueueLen    int               `json:"queue_len"`
}
