package model

import "testing"

func TestCalibrationResultUsable(t *testing.T) {
	cases := []struct {
		name       string
		quality    float64
		gravityErr float64
		want       bool
	}{
		{"good result", 0.9, 1.0, true},
		{"quality exactly at the gate", 0.7, 1.0, false},
		{"quality just above the gate", 0.701, 1.0, true},
		{"gravity error exactly at the gate", 0.9, 5.0, false},
		{"gravity error just below the gate", 0.9, 4.99, true},
		{"both out of range", 0.5, 8.0, false},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			r := CalibrationResult{Quality: c.quality, GravityAlignmentErrorPct: c.gravityErr}
			if got := r.Usable(); got != c.want {
				t.Errorf("Usable() = %v, want %v", got, c.want)
			}
		})
	}
}
