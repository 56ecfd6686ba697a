package steering

import "math"

// TorqueLimits bounds a torque-commanded EPS, in raw actuator units.
type TorqueLimits struct {
	SteerMax  float64
	DeltaUp   float64 // max magnitude increase per tick
	DeltaDown float64 // max magnitude decrease per tick

	// Driver torque is scaled by one of these gains to shrink the allowed
	// envelope when the driver pushes against the command. The lane-change
	// gain applies while a blinker is on.
	DriverOverrideGain     float64
	LaneChangeOverrideGain float64
}

// DriverEnvelope returns the [min, max] torque the driver currently allows.
func DriverEnvelope(driverTorque float64, laneChange bool, l TorqueLimits) (float64, float64) {
	gain := l.DriverOverrideGain
	if laneChange {
		gain = l.LaneChangeOverrideGain
	}
	maxAllowed := clip(l.SteerMax+driverTorque*gain, 0, l.SteerMax)
	minAllowed := clip(-l.SteerMax+driverTorque*gain, -l.SteerMax, 0)
	return minAllowed, maxAllowed
}

// LimitTorque clamps desired into the driver envelope and then slews it from
// last. Magnitude may grow by at most DeltaUp and shrink by at most DeltaDown
// per tick, on either side of zero.
func LimitTorque(desired, last, driverTorque float64, laneChange bool, l TorqueLimits) int {
	lo, hi := DriverEnvelope(driverTorque, laneChange, l)
	out := clip(desired, lo, hi)

	if last > 0 {
		out = clip(out, math.Max(last-l.DeltaDown, -l.DeltaUp), last+l.DeltaUp)
	} else {
		out = clip(out, last-l.DeltaUp, math.Min(last+l.DeltaDown, l.DeltaUp))
	}

	return int(math.RoundToEven(out))
}
