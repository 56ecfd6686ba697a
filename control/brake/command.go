package brake

// Gains converts a planner acceleration into speed-controlled ACC commands.
type Gains struct {
	BrakeGain  float64 // brake magnitude per m/s^2 of deceleration
	BrakeMax   float64
	SpeedBoost float64 // seconds of accel folded into the desired speed
}

// ComputeBrake returns the brake magnitude for accel. Positive accel and a
// pressed gas pedal both yield zero.
func ComputeBrake(accel float64, gasPressed bool, g Gains) float64 {
	if gasPressed || accel >= 0 {
		return 0
	}
	b := -accel * g.BrakeGain
	if b > g.BrakeMax {
		return g.BrakeMax
	}
	return b
}

// DesiredSpeed is the speed target sent to a car that runs its own
// acceleration loop: v + accel*SpeedBoost, floored at zero.
func DesiredSpeed(speed, accel float64, g Gains) float64 {
	v := speed + accel*g.SpeedBoost
	if v < 0 {
		return 0
	}
	return v
}
