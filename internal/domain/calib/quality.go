package calib

import (
	"math"

	"github.com/strokelab/courtsync/internal/domain/spatial"
)

// Consistency scoring maps the coefficient of variation of per-trial peaks
// onto [0,1]; a cv at or above this ceiling scores zero.
const consistencyCVCeiling = 0.5

// gravityAlignmentError is the percentage deviation of the measured gravity
// magnitude from the expected one.
func gravityAlignmentError(measured, expected float64) float64 {
	return math.Abs(measured-expected) / expected * 100
}

// swingPlaneConsistency scores how repeatable the swing peaks were: the
// population coefficient of variation across trials mapped to [0,1], where
// zero variability scores 1. Fewer than two trials score 0.
func swingPlaneConsistency(peaks []float64) float64 {
	if len(peaks) < 2 {
		return 0
	}
	mean := spatial.Mean(peaks)
	if mean == 0 {
		return 0
	}
	cv := spatial.StdDev(peaks) / mean
	return spatial.Clamp01(1 - cv/consistencyCVCeiling)
}

// compositeQuality combines gravity alignment and swing consistency into
// the overall [0,1] score.
func compositeQuality(gravityErrPct, consistency float64) float64 {
	return spatial.Clamp01((1 - gravityErrPct/10) * consistency)
}
