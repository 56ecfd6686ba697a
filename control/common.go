package control

import "math"

const (
	msToKph = 3.6

	maxSpeedMS  = 90.0
	maxAngleDeg = 720.0
	maxAccel    = 10.0
)

// ClampFloat clamps value between min and max
func ClampFloat(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// BoolToFloat converts bool to float64 (for CAN encoding)
func BoolToFloat(b bool) float64 {
	if b {
		return 1.0
	}
	return 0.0
}

// Logger is the subset of utils.Logger the controller writes to.
type Logger interface {
	Trace(format string, args ...any)
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Trace(string, ...any) {}
func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}

// sanitize replaces non-finite values with fallback and clamps the rest to
// [lo, hi]. It reports whether v changed.
func sanitize(v *float64, lo, hi, fallback float64) bool {
	switch {
	case math.IsNaN(*v) || math.IsInf(*v, 0):
		*v = fallback
		return true
	case *v < lo:
		*v = lo
		return true
	case *v > hi:
		*v = hi
		return true
	}
	return false
}

// sanitizeInputs clamps out-of-range measurements and commands in place.
// It reports whether anything was clamped.
func sanitizeInputs(st *VehicleState, des *DesiredActuation) bool {
	clamped := false
	clamped = sanitize(&st.SpeedMS, 0, maxSpeedMS, 0) || clamped
	clamped = sanitize(&st.SpeedClusterMS, 0, maxSpeedMS, st.SpeedMS) || clamped
	clamped = sanitize(&st.SteeringAngleDeg, -maxAngleDeg, maxAngleDeg, 0) || clamped
	clamped = sanitize(&st.SteeringTorque, -math.MaxFloat64, math.MaxFloat64, 0) || clamped
	clamped = sanitize(&st.SteeringTorqueEps, -math.MaxFloat64, math.MaxFloat64, 0) || clamped
	clamped = sanitize(&st.StockLDPSteer, -math.MaxFloat64, math.MaxFloat64, 0) || clamped
	clamped = sanitize(&st.FollowDistance, 0, math.MaxFloat64, 0) || clamped

	clamped = sanitize(&des.SteerAngleDeg, -maxAngleDeg, maxAngleDeg, st.SteeringAngleDeg) || clamped
	clamped = sanitize(&des.SteerTorque, -1, 1, 0) || clamped
	clamped = sanitize(&des.Accel, -maxAccel, maxAccel, 0) || clamped
	clamped = sanitize(&des.SpeedMS, 0, maxSpeedMS, 0) || clamped
	return clamped
}
