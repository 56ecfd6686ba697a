// Package control turns planner commands into the CAN frames a vehicle's
// actuators accept.
//
// A Controller is driven by one synchronous Tick per control period (100 Hz
// in the shipped calibrations). Each tick it updates the cruise latch,
// limits the steering command, shapes the brake request on longitudinal
// ticks, and emits the frames whose cadence is due, each stamped with its
// integrity byte. Per-tick failures are reported through ActuationEcho and
// never leave the tick.
package control

import (
	"fmt"
	"math"

	"adas-actuation-core/control/brake"
	"adas-actuation-core/control/calibration"
	"adas-actuation-core/control/cruise"
	"adas-actuation-core/control/steering"
)

// Option configures a Controller.
type Option func(*Controller)

// WithLogger routes controller logging to l.
func WithLogger(l Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.log = l
		}
	}
}

// Controller owns all state carried between ticks. It is not safe for
// concurrent use.
type Controller struct {
	cal     calibration.VehicleCalibration
	codec   FrameCodec
	log     Logger
	cadence Cadence

	limiter *steering.Limiter
	hyst    *brake.Hysteresis
	pump    *brake.PumpShaper
	latch   *cruise.Latch

	steerCounter  rollingCounter
	longCounter   rollingCounter
	buttonCounter rollingCounter

	dtcClear      []byte
	tick          uint64
	lastSteerSent float64

	// Longitudinal outputs are refreshed on longitudinal ticks only.
	lastBrake    float64
	lastPump     float64
	lastBrakeReq bool
	lastDesSpeed float64
}

// NewController validates cal and builds a Controller. A nil codec or an
// invalid calibration is a configuration error.
func NewController(cal calibration.VehicleCalibration, codec FrameCodec, opts ...Option) (*Controller, error) {
	if err := cal.Validate(); err != nil {
		return nil, fmt.Errorf("new controller: %w", err)
	}
	if codec == nil {
		return nil, fmt.Errorf("new controller: %w", &calibration.ConfigError{Field: "codec", Reason: "is nil"})
	}

	c := &Controller{
		cal:   cal,
		codec: codec,
		log:   nopLogger{},
		cadence: Cadence{
			Steer:  cal.SteerDivisor,
			Long:   cal.LongDivisor,
			Resume: cal.ResumeDivisor,
		},
		hyst:          brake.NewHysteresis(cal.BrakeTiming()),
		pump:          brake.NewPumpShaper(cal.PumpLimits()),
		latch:         cruise.NewLatch(cal.CruiseLimits()),
		steerCounter:  rollingCounter{modulo: cal.CounterModulo},
		longCounter:   rollingCounter{modulo: cal.CounterModulo},
		buttonCounter: rollingCounter{modulo: cal.CounterModulo},
	}

	if cal.Mode() == steering.ModeAngle {
		c.limiter = steering.NewAngleLimiter(cal.AngleLimits())
	} else {
		c.limiter = steering.NewTorqueLimiter(cal.TorqueLimits())
	}

	if cal.DTCClear != nil {
		b, err := cal.DTCClear.Bytes()
		if err != nil {
			return nil, fmt.Errorf("new controller: %w", err)
		}
		c.dtcClear = b
	}

	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Calibration returns the calibration the controller was built with.
func (c *Controller) Calibration() calibration.VehicleCalibration { return c.cal }

// Ticks returns how many ticks have run.
func (c *Controller) Ticks() uint64 { return c.tick }

// LimiterState, HysteresisState and LatchState expose component state for
// logging and tests.
func (c *Controller) LimiterState() steering.LimiterState     { return c.limiter.State() }
func (c *Controller) HysteresisState() brake.HysteresisState { return c.hyst.State() }
func (c *Controller) LatchState() cruise.LatchState          { return c.latch.State() }

// tickContext carries per-tick values between the stages of Tick.
type tickContext struct {
	in      TickInput
	tick    uint64
	latch   cruise.LatchState
	longOn  bool
	steer   steerResult
	stockLD bool
	out     *TickOutput
}

// Tick runs one control period and returns the frames to send this tick.
// The tick counter advances even when every frame is dropped.
func (c *Controller) Tick(in TickInput) TickOutput {
	out := TickOutput{Tick: c.tick}
	defer func() { c.tick++ }()

	if sanitizeInputs(&in.State, &in.Desired) {
		out.Echo.Diagnostics |= DiagInputClamped
		c.log.Debug("tick %d: clamped out-of-range input", out.Tick)
	}

	tc := &tickContext{in: in, tick: out.Tick, out: &out}
	tc.latch = c.updateLatch(in)
	tc.longOn = in.Desired.LongActive && tc.latch.Engaged
	tc.stockLD = in.State.StockLaneDepart

	tc.steer = c.limitSteering(tc)

	if c.dtcClear != nil && tc.tick <= c.cal.DTCClearTicks {
		c.emitRaw(tc, "DTC_CLEAR", c.cal.DTCClear.ID, c.dtcClear)
	}
	if c.cadence.SteerDue(tc.tick) {
		c.emitSteering(tc)
	}
	if c.cadence.LongDue(tc.tick) {
		c.runLongitudinal(tc)
	}
	if c.cadence.ResumeDue(tc.tick) && in.State.Standstill && tc.latch.Engaged {
		c.emitResume(tc)
	}

	out.Echo.Steer = tc.steer.echo
	out.Echo.SteerRequest = tc.steer.request
	out.Echo.RateLimited = tc.steer.rateLimited
	out.Echo.Brake = c.lastBrake
	out.Echo.Pump = c.lastPump
	out.Echo.BrakeRequest = c.lastBrakeReq
	out.Echo.BrakeStatus = c.hyst.State().Status
	out.Echo.DesiredSpeed = c.lastDesSpeed
	out.Echo.CruiseEngaged = tc.latch.Engaged
	out.Echo.CruiseTargetKph = tc.latch.TargetKph
	out.Echo.LaneKeepLatch = tc.latch.LaneKeepLatch
	return out
}

func (c *Controller) updateLatch(in TickInput) cruise.LatchState {
	st := in.State
	res := c.latch.Update(cruise.Inputs{
		Now:               in.Now,
		Buttons:           st.Buttons,
		ClusterSpeedKph:   st.SpeedClusterMS * msToKph,
		BrakePressed:      st.BrakePressed,
		BrakeHold:         st.BrakeHoldActive,
		SetSignal:         st.CruiseSetSignal,
		DoorOpen:          st.DoorOpen,
		SeatbeltUnlatched: st.SeatbeltUnlatched,
		CruiseAvailable:   st.CruiseAvailable,
	})

	switch res.Transition {
	case cruise.TransitionEngaged:
		c.log.Info("cruise engaged: target=%.1f kph", res.State.TargetKph)
	case cruise.TransitionDisengaged:
		reason := res.Interlock.String()
		if res.Cancelled {
			reason = "cancel"
		}
		c.log.Info("cruise disengaged: reason=%s", reason)
	}
	return res.State
}

type steerResult struct {
	applied     float64 // raw actuator units or degrees
	echo        float64
	request     bool
	rateLimited bool
}

func (c *Controller) limitSteering(tc *tickContext) steerResult {
	st, des := tc.in.State, tc.in.Desired

	if c.limiter.Mode() == steering.ModeAngle {
		desired := st.SteeringAngleDeg
		if des.LatActive {
			desired = des.SteerAngleDeg
		}
		applied, rateLimited := c.limiter.Angle(desired, st.SteeringAngleDeg)
		if st.SteeringTorqueEps > c.cal.DriverOverrideTorqueEps {
			applied = st.SteeringAngleDeg
			c.limiter.Override(applied)
		}
		req := des.LatActive && tc.latch.LaneKeepLatch &&
			math.Abs(st.SteeringAngleDeg) < c.cal.MaxSteerAngleDeg && !st.Standstill
		return steerResult{applied: applied, echo: applied, request: req, rateLimited: rateLimited}
	}

	steerMax := c.cal.SteerMax()
	desired := 0.0
	if des.LatActive {
		desired = math.RoundToEven(des.SteerTorque * steerMax)
	}
	applied, rateLimited := c.limiter.Torque(steering.TorqueInput{
		Desired:         desired,
		DriverTorque:    st.SteeringTorque,
		LaneChange:      st.LeftBlinker != st.RightBlinker,
		SteeringPressed: st.SteeringPressed,
	})

	res := steerResult{applied: float64(applied), rateLimited: rateLimited}
	if tc.stockLD {
		res.applied = ClampFloat(-st.StockLDPSteer, -steerMax, steerMax)
		res.rateLimited = false
		c.limiter.Override(res.applied)
	}
	res.request = (des.LatActive || tc.stockLD) && tc.latch.LaneKeepLatch
	res.echo = res.applied / steerMax
	return res
}

func (c *Controller) runLongitudinal(tc *tickContext) {
	st, des := tc.in.State, tc.in.Desired
	gains := c.cal.BrakeGains()

	prevPump := c.pump.LastPump()
	requested := brake.ComputeBrake(des.Accel, st.GasPressed, gains)
	active := tc.longOn && requested > 0 && st.Standstill && !c.cal.StopAndGo
	applied := c.hyst.Update(requested, active, tc.in.Now)
	pump, req := c.pump.Shape(applied)

	c.lastBrake = applied
	c.lastPump = pump
	c.lastBrakeReq = req
	c.lastDesSpeed = brake.DesiredSpeed(st.SpeedMS, des.Accel, gains)
	if des.SpeedMS > 0 && des.Accel >= 0 {
		c.lastDesSpeed = math.Min(c.lastDesSpeed, des.SpeedMS)
	}

	if !c.emitLongitudinal(tc) {
		c.pump.Restore(prevPump)
		c.lastPump = prevPump
	}
}
