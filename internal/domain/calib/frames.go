package calib

import (
	"math"

	"github.com/strokelab/courtsync/internal/domain/model"
	"github.com/strokelab/courtsync/internal/domain/spatial"
)

// A canonical axis is rejected as a cross-product reference when it is this
// close to parallel with the axis being complemented.
const parallelLimit = 0.9

// maxAxisVariance returns the largest per-axis acceleration variance across
// the buffer.
func maxAxisVariance(samples []model.MotionSample) float64 {
	xs := make([]float64, len(samples))
	ys := make([]float64, len(samples))
	zs := make([]float64, len(samples))
	for i, s := range samples {
		xs[i] = s.Acceleration.X
		ys[i] = s.Acceleration.Y
		zs[i] = s.Acceleration.Z
	}
	return math.Max(spatial.Variance(xs), math.Max(spatial.Variance(ys), spatial.Variance(zs)))
}

// peakAngularVelocity returns the largest angular-velocity norm in a trial.
func peakAngularVelocity(samples []model.MotionSample) float64 {
	var peak float64
	for _, s := range samples {
		if n := s.AngularVelocity.Norm(); n > peak {
			peak = n
		}
	}
	return peak
}

// trialPeaks returns the peak angular velocity of each trial in order.
func trialPeaks(swings [][]model.MotionSample) []float64 {
	peaks := make([]float64, len(swings))
	for i, trial := range swings {
		peaks[i] = peakAngularVelocity(trial)
	}
	return peaks
}

// worldFrameFromStatic builds the gravity-aligned world frame from the
// static buffer. The averaged acceleration, negated and normalized, is the
// frame's up axis (gravity points down); a horizontal X is constructed from
// a canonical axis and Y completes the right-handed set. Also returns the
// averaged acceleration for quality scoring.
func worldFrameFromStatic(samples []model.MotionSample, minGravity float64) (spatial.Mat3, spatial.Vec3, error) {
	accels := make([]spatial.Vec3, len(samples))
	for i, s := range samples {
		accels[i] = s.Acceleration
	}
	mean := spatial.MeanVec(accels)
	if mean.Norm() < minGravity {
		return spatial.Mat3{}, spatial.Vec3{}, ErrGravityNotDetected
	}

	up, _ := mean.Scale(-1).Normalize()

	ref := spatial.Vec3{X: 1}
	if math.Abs(up.Dot(ref)) > parallelLimit {
		ref = spatial.Vec3{Y: 1}
	}
	x, ok := ref.Cross(up).Normalize()
	if !ok {
		return spatial.Mat3{}, spatial.Vec3{}, ErrDegenerateFrame
	}
	y := up.Cross(x)

	return spatial.Mat3{ColX: x, ColY: y, ColZ: up}, mean, nil
}

// racketFrameFromSwings estimates the racket frame from the accepted swing
// trials. Angular-velocity samples above the motion threshold are pooled
// and mean-centered; the dominant eigenvector of their covariance, found by
// power iteration, becomes the racket's X (shaft) axis. Y and Z complete an
// orthonormal right-handed frame.
func racketFrameFromSwings(swings [][]model.MotionSample, motionThreshold float64, minSamples, rounds int) (spatial.Mat3, error) {
	var active []spatial.Vec3
	for _, trial := range swings {
		for _, s := range trial {
			if s.AngularVelocity.Norm() > motionThreshold {
				active = append(active, s.AngularVelocity)
			}
		}
	}
	if len(active) < minSamples {
		return spatial.Mat3{}, ErrInsufficientMotion
	}

	cov := spatial.Covariance(active)
	x, ok := spatial.DominantEigenvector(cov, rounds)
	if !ok {
		return spatial.Mat3{}, ErrDegenerateFrame
	}

	ref := spatial.Vec3{Z: 1}
	if math.Abs(x.Dot(ref)) > parallelLimit {
		ref = spatial.Vec3{Y: 1}
	}
	y, ok := x.Cross(ref).Normalize()
	if !ok {
		return spatial.Mat3{}, ErrDegenerateFrame
	}
	z := x.Cross(y)

	return spatial.Mat3{ColX: x, ColY: y, ColZ: z}, nil
}
