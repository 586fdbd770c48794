package simulator

import (
	"crypto/rand"
	"math/big"
	"time"
)

// Signal shape constants. The still stream sits on gravity with sub-ceiling
// jitter; swing trials ramp the angular velocity well past the activity
// threshold so the service accepts them.
const (
	gravityMagnitude = 9.8
	stillJitter      = 0.05 // m/s², keeps per-axis variance far below the stability ceiling
	swingBaseRate    = 16.0 // rad/s, above the 10 rad/s activity threshold
	swingRampStep    = 0.5  // rad/s added per sample within a trial
	swingCrossTalk   = 0.2  // rad/s of off-axis rotation
	samplePeriod     = 5 * time.Millisecond

	randomFloatDivisor = 1000000
)

// randomFloat returns a random float64 between 0.0 and 1.0 using crypto/rand.
func randomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

// jitter returns a random value in [-scale, scale].
func jitter(scale float64) float64 {
	return (randomFloat()*2 - 1) * scale
}

// generateStillStream produces the static-phase readings: the device resting
// on a flat surface, gravity on -Z plus sensor noise.
func generateStillStream(count int, start time.Duration) []motionSample {
	samples := make([]motionSample, count)
	for i := range samples {
		ts := start + time.Duration(i)*samplePeriod
		samples[i] = motionSample{
			Device:      "handheld",
			Seq:         uint16(i),
			TimestampUS: ts.Microseconds(),
			Acceleration: vec3{
				X: jitter(stillJitter),
				Y: jitter(stillJitter),
				Z: -gravityMagnitude + jitter(stillJitter),
			},
		}
	}
	return samples
}

// generateSwingTrial produces one practice swing: rotation dominated by the
// shaft axis, ramping through the stroke so the axis estimator has spread.
func generateSwingTrial(length int, start time.Duration) swingTrial {
	trial := swingTrial{Samples: make([]swingSample, length)}
	for i := range trial.Samples {
		ts := start + time.Duration(i)*samplePeriod
		trial.Samples[i] = swingSample{
			TimestampUS: ts.Microseconds(),
			Acceleration: vec3{
				Z: -gravityMagnitude + jitter(stillJitter),
			},
			AngularVelocity: vec3{
				X: swingBaseRate + swingRampStep*float64(i) + jitter(swingCrossTalk),
				Y: jitter(swingCrossTalk),
			},
		}
	}
	return trial
}
