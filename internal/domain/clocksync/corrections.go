package clocksync

import (
	"time"

	"github.com/strokelab/courtsync/internal/domain/model"
	"github.com/strokelab/courtsync/internal/domain/spatial"
)

// Confidence of a drift correction is fixed: the regression already
// aggregates many observations.
const driftConfidence = 0.8

// RecordAudioLevel feeds one normalized audio amplitude reading from the
// vision unit. Levels above the peak threshold are recorded as correlated
// events; the return value reports whether an event was recorded.
func (c *Coordinator) RecordAudioLevel(device model.DeviceID, level float64, at time.Duration) bool {
	if level <= c.audioThreshold {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, model.CorrelatedEvent{
		Device:     device,
		PeakTime:   at,
		Confidence: impulseConfidence(level, c.audioThreshold),
		Kind:       model.KindAudioPeak,
	})
	return true
}

// ObserveMotion feeds one motion sample from the handheld unit. The jerk,
// the norm of the acceleration delta against the previous sample, is
// recorded as a correlated event when it exceeds the threshold.
func (c *Coordinator) ObserveMotion(device model.DeviceID, sample model.MotionSample) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev, seen := c.prevAccel[device], c.prevSeen[device]
	c.prevAccel[device] = sample.Acceleration
	c.prevSeen[device] = true
	if !seen {
		return false
	}

	jerk := sample.Acceleration.Sub(prev).Norm()
	if jerk <= c.jerkThreshold {
		return false
	}
	c.events = append(c.events, model.CorrelatedEvent{
		Device:     device,
		PeakTime:   sample.Timestamp,
		Confidence: impulseConfidence(jerk, c.jerkThreshold),
		Kind:       model.KindInertialJerk,
	})
	return true
}

// impulseConfidence maps a detected magnitude to [0,1]: a reading at the
// threshold scores 0.5, twice the threshold saturates.
func impulseConfidence(magnitude, threshold float64) float64 {
	return spatial.Clamp01(magnitude / (2 * threshold))
}

// ApplyTapCorrection derives a correction from the most recent audio-peak
// and inertial-jerk events: delta = audio peak time − jerk peak time, with
// the confidence of the weaker event. Requires at least one event of each
// kind; otherwise no correction is produced.
func (c *Coordinator) ApplyTapCorrection() (model.Correction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	audio, okA := c.latestEventLocked(model.KindAudioPeak)
	jerk, okJ := c.latestEventLocked(model.KindInertialJerk)
	if !okA || !okJ {
		return model.Correction{}, ErrInsufficientEvents
	}

	corr := model.Correction{
		Delta:      audio.PeakTime - jerk.PeakTime,
		Method:     model.MethodTapSync,
		Confidence: min(audio.Confidence, jerk.Confidence),
		AppliedAt:  time.Now(),
	}
	c.corrections = append(c.corrections, corr)
	return corr, nil
}

func (c *Coordinator) latestEventLocked(kind model.EventKind) (model.CorrelatedEvent, bool) {
	for i := len(c.events) - 1; i >= 0; i-- {
		if c.events[i].Kind == kind {
			return c.events[i], true
		}
	}
	return model.CorrelatedEvent{}, false
}

// DriftPoint is one observation for the drift regression: the offset
// measured at a given elapsed time.
type DriftPoint struct {
	Elapsed time.Duration
	Offset  time.Duration
}

// ApplyDriftCorrection fits offset-vs-time by ordinary least squares over
// at least three points; the regression intercept becomes the correction
// delta. Fewer points, or a degenerate x spread, produce no correction.
func (c *Coordinator) ApplyDriftCorrection(points []DriftPoint) (model.Correction, error) {
	if len(points) < 3 {
		return model.Correction{}, ErrInsufficientData
	}

	var sumX, sumY, sumXY, sumX2 float64
	for _, p := range points {
		x := float64(p.Elapsed.Milliseconds())
		y := float64(p.Offset.Milliseconds())
		sumX += x
		sumY += y
		sumXY += x * y
		sumX2 += x * x
	}
	n := float64(len(points))
	denom := n*sumX2 - sumX*sumX
	if denom == 0 {
		return model.Correction{}, ErrInsufficientData
	}
	slope := (n*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / n

	c.mu.Lock()
	defer c.mu.Unlock()
	corr := model.Correction{
		Delta:      time.Duration(intercept * float64(time.Millisecond)),
		Method:     model.MethodLinearDrift,
		Confidence: driftConfidence,
		AppliedAt:  time.Now(),
	}
	c.corrections = append(c.corrections, corr)
	return corr, nil
}

// Corrections returns a copy of the correction history in application order.
func (c *Coordinator) Corrections() []model.Correction {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.Correction, len(c.corrections))
	copy(out, c.corrections)
	return out
}

// Events returns a copy of the correlated-event history.
func (c *Coordinator) Events() []model.CorrelatedEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.CorrelatedEvent, len(c.events))
	copy(out, c.events)
	return out
}
