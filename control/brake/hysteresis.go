// Package brake shapes longitudinal brake requests for pump-actuated brake
// systems.
//
// At standstill the pump is periodically released and re-applied instead of
// being held continuously. Every request is also mapped through a pump duty
// table and rate limited per longitudinal tick.
package brake

import (
	"fmt"
	"time"
)

// Status is the standstill hold cycle position.
type Status int

const (
	StatusStandstillInit Status = iota
	StatusBrakeHold
	StatusPumpReset
)

func (s Status) String() string {
	switch s {
	case StatusStandstillInit:
		return "standstill_init"
	case StatusBrakeHold:
		return "brake_hold"
	case StatusPumpReset:
		return "pump_reset"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// dwell is how long the cycle stays in s before advancing.
func (s Status) dwell(t Timing) time.Duration {
	if s == StatusPumpReset {
		return t.PumpResetDuration
	}
	return t.PumpResetInterval
}

func (s Status) next() Status {
	if s == StatusPumpReset {
		return StatusBrakeHold
	}
	return StatusPumpReset
}

// Timing holds the standstill cycle constants.
type Timing struct {
	PumpResetInterval time.Duration
	PumpResetDuration time.Duration

	// MinAccelMargin is added to the first standstill request to form the
	// brake level held for the rest of the stop.
	MinAccelMargin float64
}

// HysteresisState is the persisted standstill cycle.
type HysteresisState struct {
	Status             Status
	MinStandstillAccel float64
	LastTransition     time.Duration
}

// StandstillBrake advances the cycle by at most one transition and returns the
// brake level to command. A transition fires once the dwell for the current
// status has fully elapsed. PumpReset always commands zero.
func StandstillBrake(minAccel float64, st HysteresisState, now time.Duration, t Timing) (float64, HysteresisState) {
	if now-st.LastTransition >= st.Status.dwell(t) {
		st.Status = st.Status.next()
		st.LastTransition = now
	}

	if st.Status == StatusPumpReset {
		return 0, st
	}
	return minAccel, st
}

// Hysteresis owns a HysteresisState across longitudinal ticks.
// It is not safe for concurrent use.
type Hysteresis struct {
	timing Timing
	state  HysteresisState
}

func NewHysteresis(t Timing) *Hysteresis {
	return &Hysteresis{timing: t}
}

func (h *Hysteresis) State() HysteresisState { return h.state }

// Update returns the brake to command this tick. active is true while the
// vehicle is stopped under system braking on a car without stop-and-go; when
// it is false brake passes through and the cycle restarts from
// StandstillInit.
func (h *Hysteresis) Update(brake float64, active bool, now time.Duration) float64 {
	if !active {
		h.state.Status = StatusStandstillInit
		h.state.LastTransition = now
		return brake
	}

	if h.state.Status == StatusStandstillInit {
		h.state.MinStandstillAccel = brake + h.timing.MinAccelMargin
	}

	out, next := StandstillBrake(h.state.MinStandstillAccel, h.state, now, h.timing)
	h.state = next
	return out
}

// Reset returns the cycle to StandstillInit anchored at now.
func (h *Hysteresis) Reset(now time.Duration) {
	h.state = HysteresisState{LastTransition: now}
}
