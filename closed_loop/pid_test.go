package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testPIDConfig() PIDConfig {
	return PIDConfig{
		TargetVelocityMPS: 20,
		Kp:                0.5,
		Ki:                0.1,
		MaxAccelMPS2:      2,
		MinAccelMPS2:      -3,
		IntegralLimit:     10,
	}
}

func TestPIDController_Saturates(t *testing.T) {
	pid := NewPIDController(testPIDConfig())

	assert.Equal(t, 2.0, pid.Update(0, 0.01), "far below target")
	pid.SetTargetVelocity(0)
	assert.Equal(t, -3.0, pid.Update(30, 0.01), "far above target")
}

func TestPIDController_ProportionalNearTarget(t *testing.T) {
	pid := NewPIDController(testPIDConfig())
	accel := pid.Update(19, 0.01)
	assert.InDelta(t, 0.5*1+0.1*0.01, accel, 1e-9)

	diag := pid.GetDiagnostics()
	assert.Equal(t, 1.0, diag.Error)
	assert.InDelta(t, 0.01, diag.Integral, 1e-12)
}

func TestPIDController_BackCalculation(t *testing.T) {
	pid := NewPIDController(testPIDConfig())
	for i := 0; i < 500; i++ {
		pid.Update(0, 0.01)
	}
	// integral stays where p + i hits the limit
	assert.InDelta(t, (2-0.5*20)/0.1, pid.GetDiagnostics().Integral, 1e-9)

	pid.Reset()
	assert.Equal(t, PIDDiagnostics{}, pid.GetDiagnostics())
}

func TestPIDController_ZeroKi(t *testing.T) {
	cfg := testPIDConfig()
	cfg.Ki = 0
	pid := NewPIDController(cfg)
	assert.Equal(t, 2.0, pid.Update(0, 0.01))
}

func TestPIDController_Feedforward(t *testing.T) {
	pid := NewPIDController(PIDConfig{
		TargetVelocityMPS: 10, FeedforwardGain: 0.5,
		MaxAccelMPS2: 10, MinAccelMPS2: -10, IntegralLimit: 10,
	})
	assert.Equal(t, 0.0, pid.Update(10, 0.1), "no feedforward on the first sample")

	pid.SetTargetVelocity(10.1)
	assert.InDelta(t, 0.5, pid.Update(10.1, 0.1), 1e-9)
	assert.InDelta(t, 0, pid.Update(10.1, 0.1), 1e-12)
}

func TestPIDController_OvershootHalvesIntegral(t *testing.T) {
	pid := NewPIDController(PIDConfig{
		Ki: 1, OvershootResetS: 0.045,
		MaxAccelMPS2: 100, MinAccelMPS2: -100, IntegralLimit: 100,
	})
	for i := 0; i < 4; i++ {
		pid.Update(1, 0.01)
	}
	assert.InDelta(t, -0.04, pid.GetDiagnostics().Integral, 1e-12)

	pid.Update(1, 0.01)
	assert.InDelta(t, -0.025, pid.GetDiagnostics().Integral, 1e-12)

	pid.Update(-1, 0.01)
	assert.InDelta(t, -0.015, pid.GetDiagnostics().Integral, 1e-12, "below target resets the timer")
}
