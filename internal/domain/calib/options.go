package calib

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithStaticTarget sets how many samples the static phase accumulates.
func WithStaticTarget(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.staticTarget = n
		}
	}
}

// WithSwingTarget sets how many accepted trials the swing phase needs.
func WithSwingTarget(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.swingTarget = n
		}
	}
}

// WithMinTrialSamples sets the minimum sample count per swing trial.
func WithMinTrialSamples(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.minTrialSamples = n
		}
	}
}

// WithMaxStaticVariance sets the per-axis acceleration variance ceiling for
// the stillness check.
func WithMaxStaticVariance(v float64) Option {
	return func(e *Engine) {
		if v > 0 {
			e.maxStaticVariance = v
		}
	}
}

// WithSwingActivityThreshold sets the peak angular velocity a trial must
// strictly exceed to count.
func WithSwingActivityThreshold(v float64) Option {
	return func(e *Engine) {
		if v > 0 {
			e.swingActivity = v
		}
	}
}

// WithPCAMotionThreshold sets the per-sample angular velocity norm above
// which a sample contributes to axis estimation.
func WithPCAMotionThreshold(v float64) Option {
	return func(e *Engine) {
		if v > 0 {
			e.pcaMotion = v
		}
	}
}

// WithExpectedGravity sets the gravity magnitude the alignment error is
// measured against.
func WithExpectedGravity(v float64) Option {
	return func(e *Engine) {
		if v > 0 {
			e.expectedGravity = v
		}
	}
}
