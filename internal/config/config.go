// Package config defines process configuration structures and loading hooks.
//
// Conventions:
// - Provide New(...) to build a Config with defaults.
// - External errors are wrapped via this package's sentinel kinds.
package config

import "context"

// Config contains process configuration. Durations are carried as integer
// milliseconds so they can be set from flat env/YAML keys.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9607".
	Addr string `koanf:"addr"`

	// Device is this process's role: "handheld" or "vision".
	Device string `koanf:"device"`

	// PeerWSURL is the WebSocket URL of the peer's exchange endpoint.
	// Empty disables the WebSocket link.
	PeerWSURL string `koanf:"peer_ws_url"`

	// MQTTBroker enables the broker-based link when set, e.g.
	// "tcp://localhost:1883". Ignored when PeerWSURL is set.
	MQTTBroker   string `koanf:"mqtt_broker"`
	MQTTClientID string `koanf:"mqtt_client_id"`

	// BLEDeviceName is the advertised name of the handheld sensor unit.
	// Empty disables the BLE source.
	BLEDeviceName string `koanf:"ble_device_name"`

	// SampleQueueSize bounds the in-memory motion sample queue.
	SampleQueueSize int `koanf:"sample_queue_size"`

	// DedupeSize bounds the seen-packet cache.
	DedupeSize int `koanf:"dedupe_size"`

	// Round-trip protocol tuning.
	MaxRoundTripMS  int `koanf:"max_round_trip_ms"`
	MaxSyncAttempts int `koanf:"max_sync_attempts"`
	RetryDelayMinMS int `koanf:"retry_delay_min_ms"`
	RetryDelayMaxMS int `koanf:"retry_delay_max_ms"`

	// Impulse fallback thresholds.
	AudioPeakThreshold float64 `koanf:"audio_peak_threshold"`
	JerkThreshold      float64 `koanf:"jerk_threshold"`

	// Calibration tuning.
	StaticSampleTarget     int     `koanf:"static_sample_target"`
	SwingTrialTarget       int     `koanf:"swing_trial_target"`
	MaxStaticVariance      float64 `koanf:"max_static_variance"`
	SwingActivityThreshold float64 `koanf:"swing_activity_threshold"`
	PCAMotionThreshold     float64 `koanf:"pca_motion_threshold"`
	ExpectedGravity        float64 `koanf:"expected_gravity"`
}

// New creates a Config with defaults. Context is accepted first to satisfy
// the project-wide convention; it is reserved for future use.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:               "info",
		Addr:                   ":9607",
		Device:                 "handheld",
		MQTTClientID:           "courtsync",
		SampleQueueSize:        8192,
		DedupeSize:             4096,
		MaxRoundTripMS:         100,
		MaxSyncAttempts:        5,
		RetryDelayMinMS:        300,
		RetryDelayMaxMS:        500,
		AudioPeakThreshold:     0.5,
		JerkThreshold:          8.0,
		StaticSampleTarget:     300,
		SwingTrialTarget:       5,
		MaxStaticVariance:      0.01,
		SwingActivityThreshold: 10.0,
		PCAMotionThreshold:     15.0,
		ExpectedGravity:        9.8,
	}
}
