// Package cruise implements the driver-facing cruise engagement latch.
//
// The latch turns raw steering-wheel button levels into engage, disengage and
// set-speed changes. Hard interlocks (doors, seatbelt, brake, availability)
// always win over button edges within the same tick. All timing comes from
// the caller's monotonic clock.
package cruise

import (
	"math"
	"time"
)

// Buttons are the raw button levels for one tick.
type Buttons struct {
	Set      bool // SET/minus: engage at current speed, or step down
	Resume   bool // RES/plus: engage at previous target, or step up
	Cancel   bool
	LaneKeep bool
}

// Inputs is the latch's view of the vehicle for one tick.
type Inputs struct {
	Now     time.Duration
	Buttons Buttons

	ClusterSpeedKph float64

	BrakePressed      bool
	BrakeHold         bool
	SetSignal         bool // ACC set flag that keeps a light brake press from disengaging
	DoorOpen          bool
	SeatbeltUnlatched bool
	CruiseAvailable   bool
}

// Limits configures target speed range and button timing.
type Limits struct {
	MinKph      float64
	MaxKph      float64
	TapStepKph  float64
	HoldStepKph float64
	HoldStep    time.Duration // repeat period while a button is held
	TapWindow   time.Duration // press-to-release under this counts as a tap
}

// Interlock names the condition that forced a disengage.
type Interlock int

const (
	InterlockNone Interlock = iota
	InterlockDoorOpen
	InterlockSeatbelt
	InterlockBrakeHold
	InterlockBrakePressed
	InterlockUnavailable
)

func (i Interlock) String() string {
	switch i {
	case InterlockNone:
		return "none"
	case InterlockDoorOpen:
		return "door_open"
	case InterlockSeatbelt:
		return "seatbelt_unlatched"
	case InterlockBrakeHold:
		return "brake_hold"
	case InterlockBrakePressed:
		return "brake_pressed"
	case InterlockUnavailable:
		return "cruise_unavailable"
	default:
		return "unknown"
	}
}

// ButtonState tracks one button across ticks.
type ButtonState struct {
	Pressed bool
	Since   time.Duration // rising edge time of the current or last press
	Steps   int           // hold steps already taken in the current press
}

// LatchState is the persisted latch.
type LatchState struct {
	Engaged   bool
	TargetKph float64

	Plus     ButtonState
	Minus    ButtonState
	LaneKeep bool // lane-keep button level last tick

	// LaneKeepLatch gates the steering request. It starts on and toggles on
	// each lane-keep button release.
	LaneKeepLatch bool
}

// Transition reports what changed in one Update.
type Transition int

const (
	TransitionNone Transition = iota
	TransitionEngaged
	TransitionDisengaged
)

// Result is the outcome of one Update.
type Result struct {
	State      LatchState
	Transition Transition
	Interlock  Interlock
	Cancelled  bool
}

// Latch is the cruise engagement state machine. It is not safe for
// concurrent use.
type Latch struct {
	limits Limits
	state  LatchState
}

func NewLatch(l Limits) *Latch {
	return &Latch{
		limits: l,
		state: LatchState{
			TargetKph:     l.MinKph,
			LaneKeepLatch: true,
		},
	}
}

func (l *Latch) State() LatchState { return l.state }

// Update applies one tick of inputs. Precedence within a tick: interlocks
// disengage and block engaging; a SET or RESUME release engages; taps and
// holds adjust the target only if the latch was engaged when the tick began;
// a cancel press disengages.
func (l *Latch) Update(in Inputs) Result {
	s := &l.state
	wasEngaged := s.Engaged

	plus := s.Plus.track(in.Buttons.Resume, in.Now, l.limits)
	minus := s.Minus.track(in.Buttons.Set, in.Now, l.limits)
	cancelPressed := in.Buttons.Cancel

	if s.LaneKeep && !in.Buttons.LaneKeep {
		s.LaneKeepLatch = !s.LaneKeepLatch
	}
	s.LaneKeep = in.Buttons.LaneKeep

	res := Result{Interlock: interlock(in)}

	switch {
	case res.Interlock != InterlockNone:
		s.Engaged = false
	case !s.Engaged && minus.released:
		s.TargetKph = math.Max(l.limits.MinKph, in.ClusterSpeedKph)
		s.Engaged = true
	case !s.Engaged && plus.released:
		s.Engaged = true
	}

	if wasEngaged && s.Engaged {
		l.adjust(plus, minus)
	}

	if cancelPressed && s.Engaged {
		s.Engaged = false
		res.Cancelled = true
	}

	s.TargetKph = clamp(s.TargetKph, l.limits.MinKph, l.limits.MaxKph)

	switch {
	case !wasEngaged && s.Engaged:
		res.Transition = TransitionEngaged
	case wasEngaged && !s.Engaged:
		res.Transition = TransitionDisengaged
	}
	res.State = *s
	return res
}

func (l *Latch) adjust(plus, minus edge) {
	s := &l.state
	if plus.tap {
		s.TargetKph += l.limits.TapStepKph
	}
	for i := 0; i < plus.steps; i++ {
		s.TargetKph = stepUp(s.TargetKph, l.limits.HoldStepKph)
	}
	if minus.tap {
		s.TargetKph -= l.limits.TapStepKph
	}
	for i := 0; i < minus.steps; i++ {
		s.TargetKph = math.Max(l.limits.MinKph, stepDown(s.TargetKph, l.limits.HoldStepKph))
	}
}

func interlock(in Inputs) Interlock {
	switch {
	case in.DoorOpen:
		return InterlockDoorOpen
	case in.SeatbeltUnlatched:
		return InterlockSeatbelt
	case in.BrakeHold:
		return InterlockBrakeHold
	case in.BrakePressed && !in.SetSignal:
		return InterlockBrakePressed
	case !in.CruiseAvailable:
		return InterlockUnavailable
	}
	return InterlockNone
}

type edge struct {
	released bool
	tap      bool
	steps    int
}

func (b *ButtonState) track(pressed bool, now time.Duration, l Limits) edge {
	var e edge
	switch {
	case pressed && !b.Pressed:
		b.Since = now
		b.Steps = 0
	case !pressed && b.Pressed:
		e.released = true
		e.tap = b.Steps == 0 && now-b.Since < l.TapWindow
	case pressed && l.HoldStep > 0:
		due := int((now - b.Since) / l.HoldStep)
		e.steps = due - b.Steps
		b.Steps = due
	}
	b.Pressed = pressed
	return e
}

// stepUp moves to the next multiple of step strictly above kph.
func stepUp(kph, step float64) float64 {
	return math.Floor(kph/step)*step + step
}

// stepDown moves to the next multiple of step strictly below kph.
func stepDown(kph, step float64) float64 {
	return math.Ceil(kph/step)*step - step
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
