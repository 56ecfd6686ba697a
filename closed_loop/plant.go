package main

import (
	"math"

	"adas-actuation-core/control"
)

const (
	standstillMPS   = 0.05
	coastDecelMPS2  = 0.05
	defaultSteerDPS = 90.0
)

// Plant is a kinematic stand-in for the vehicle: speed integrates the
// accepted acceleration and the steering angle follows the applied command.
type Plant struct {
	SpeedMPS         float64
	SteeringAngleDeg float64

	angleMode bool
	steerDPS  float64
	held      bool
}

func NewPlant(v ScenarioVehicle, angleMode bool) *Plant {
	rate := v.SteerRatePerUnit
	if rate <= 0 {
		rate = defaultSteerDPS
	}
	return &Plant{SpeedMPS: math.Max(0, v.InitialSpeedMPS), angleMode: angleMode, steerDPS: rate}
}

// Standstill reports whether the car is stopped.
func (p *Plant) Standstill() bool {
	return p.SpeedMPS < standstillMPS
}

// State fills the measured fields of a VehicleState.
func (p *Plant) State(st *control.VehicleState) {
	st.SpeedMS = p.SpeedMPS
	st.SpeedClusterMS = p.SpeedMPS
	st.Standstill = p.Standstill()
	st.SteeringAngleDeg = p.SteeringAngleDeg
}

// Step advances the plant by dt seconds. accel is what the powertrain
// delivers; a held brake pins the car at standstill.
func (p *Plant) Step(dt, accel float64, echo control.ActuationEcho) {
	p.held = p.Standstill() && echo.Brake > 0 && accel <= 0
	if p.held {
		p.SpeedMPS = 0
	} else {
		p.SpeedMPS = math.Max(0, p.SpeedMPS+accel*dt)
	}

	switch {
	case !echo.SteerRequest:
	case p.angleMode:
		p.SteeringAngleDeg = echo.Steer
	default:
		p.SteeringAngleDeg += echo.Steer * p.steerDPS * dt
	}
}

// Held reports whether the last Step was pinned by the standstill brake.
func (p *Plant) Held() bool { return p.held }

// deliveredAccel is the acceleration the car follows for one tick: the
// planner's request while cruise is engaged, coasting otherwise.
func deliveredAccel(des control.DesiredActuation, echo control.ActuationEcho, speed float64) float64 {
	if echo.CruiseEngaged && des.LongActive {
		return des.Accel
	}
	if speed <= 0 {
		return 0
	}
	return -coastDecelMPS2
}
