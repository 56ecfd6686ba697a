package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"adas-actuation-core/control"
)

func TestPlant_IntegratesSpeed(t *testing.T) {
	p := NewPlant(ScenarioVehicle{InitialSpeedMPS: 1}, false)
	for i := 0; i < 100; i++ {
		p.Step(0.01, 1, control.ActuationEcho{})
	}
	assert.InDelta(t, 2, p.SpeedMPS, 1e-9)

	for i := 0; i < 500; i++ {
		p.Step(0.01, -1, control.ActuationEcho{})
	}
	assert.Equal(t, 0.0, p.SpeedMPS, "speed floors at zero")
	assert.True(t, p.Standstill())
}

func TestPlant_HeldAtStandstill(t *testing.T) {
	p := NewPlant(ScenarioVehicle{}, false)
	p.Step(0.01, 0, control.ActuationEcho{Brake: 0.9})
	assert.True(t, p.Held())

	p.Step(0.01, 1, control.ActuationEcho{Brake: 0.9})
	assert.False(t, p.Held(), "positive accel pulls away")
	assert.Greater(t, p.SpeedMPS, 0.0)
}

func TestPlant_Steering(t *testing.T) {
	torque := NewPlant(ScenarioVehicle{SteerRatePerUnit: 100}, false)
	torque.Step(0.1, 0, control.ActuationEcho{Steer: 0.5, SteerRequest: true})
	assert.InDelta(t, 5, torque.SteeringAngleDeg, 1e-9)
	torque.Step(0.1, 0, control.ActuationEcho{Steer: 0.5})
	assert.InDelta(t, 5, torque.SteeringAngleDeg, 1e-9, "no request, no motion")

	angle := NewPlant(ScenarioVehicle{}, true)
	angle.Step(0.01, 0, control.ActuationEcho{Steer: 13, SteerRequest: true})
	assert.Equal(t, 13.0, angle.SteeringAngleDeg)

	var st control.VehicleState
	angle.State(&st)
	assert.Equal(t, 13.0, st.SteeringAngleDeg)
	assert.True(t, st.Standstill)
}

func TestDeliveredAccel(t *testing.T) {
	engaged := control.ActuationEcho{CruiseEngaged: true}
	assert.Equal(t, -2.0, deliveredAccel(control.DesiredActuation{LongActive: true, Accel: -2}, engaged, 5))
	assert.Equal(t, -coastDecelMPS2, deliveredAccel(control.DesiredActuation{Accel: -2}, engaged, 5))
	assert.Equal(t, 0.0, deliveredAccel(control.DesiredActuation{}, control.ActuationEcho{}, 0))
}
