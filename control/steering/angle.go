package steering

import "math"

// AngleLimits bounds an angle-commanded steering rack, in degrees per control tick.
type AngleLimits struct {
	RateUp   float64 // wind-up: commanded magnitude growing in the measured direction
	RateDown float64 // wind-down or reversal

	// RateLimitedThreshold flags ticks where the output deviates from the
	// measured angle by more than this many degrees.
	RateLimitedThreshold float64
}

// IsWindup reports whether desired keeps the sign of measured while growing in magnitude.
func IsWindup(desired, measured float64) bool {
	return measured*desired >= 0 && math.Abs(desired) > math.Abs(measured)
}

// LimitAngle clips desired into a window around the measured angle. The window
// half-width is RateUp while winding up and RateDown otherwise.
func LimitAngle(desired, measured float64, l AngleLimits) (float64, bool) {
	limit := l.RateDown
	if IsWindup(desired, measured) {
		limit = l.RateUp
	}

	out := clip(desired, measured-limit, measured+limit)
	return out, math.Abs(out-measured) > l.RateLimitedThreshold
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
