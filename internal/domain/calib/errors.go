package calib

import "errors"

// Sentinel kinds for calibration errors.
var (
	ErrCalibrationRunning = errors.New("calibration already running")
	ErrGravityNotDetected = errors.New("gravity not detected: static acceleration too weak")
	ErrDegenerateFrame    = errors.New("degenerate frame: axes could not be constructed")
	ErrInsufficientMotion = errors.New("insufficient swing motion for axis estimation")
)
