// Package steering bounds steering commands before they reach the actuator.
//
// Angle-commanded racks are limited to a window around the measured angle;
// torque-commanded EPS units are limited to a driver-dependent envelope and an
// asymmetric per-tick slew. Both limit functions are pure. Limiter carries the
// only state they need across ticks.
package steering

// Mode selects which limiting strategy a vehicle uses.
type Mode int

const (
	ModeTorque Mode = iota
	ModeAngle
)

func (m Mode) String() string {
	switch m {
	case ModeTorque:
		return "torque"
	case ModeAngle:
		return "angle"
	default:
		return "unknown"
	}
}

// LimiterState is what a Limiter remembers between ticks.
type LimiterState struct {
	LastApplied float64
	RateLimited bool
	Ticks       uint64
}

// Limiter threads LimiterState through LimitTorque or LimitAngle.
// It is not safe for concurrent use.
type Limiter struct {
	mode   Mode
	torque TorqueLimits
	angle  AngleLimits
	state  LimiterState
}

func NewTorqueLimiter(l TorqueLimits) *Limiter {
	return &Limiter{mode: ModeTorque, torque: l}
}

func NewAngleLimiter(l AngleLimits) *Limiter {
	return &Limiter{mode: ModeAngle, angle: l}
}

func (l *Limiter) Mode() Mode { return l.mode }

// State returns a copy of the current state.
func (l *Limiter) State() LimiterState { return l.state }

// TorqueInput is one tick of torque-limiter input.
type TorqueInput struct {
	Desired         float64 // raw actuator units
	DriverTorque    float64
	LaneChange      bool
	SteeringPressed bool
}

// Torque limits one tick of a torque command. RateLimited is set when the
// limiter altered a non-zero output while the driver was not steering.
func (l *Limiter) Torque(in TorqueInput) (int, bool) {
	applied := LimitTorque(in.Desired, l.state.LastApplied, in.DriverTorque, in.LaneChange, l.torque)
	rateLimited := float64(applied) != in.Desired && applied != 0 && !in.SteeringPressed

	l.state.LastApplied = float64(applied)
	l.state.RateLimited = rateLimited
	l.state.Ticks++
	return applied, rateLimited
}

// Angle limits one tick of an angle command against the measured angle.
func (l *Limiter) Angle(desired, measured float64) (float64, bool) {
	applied, rateLimited := LimitAngle(desired, measured, l.angle)

	l.state.LastApplied = applied
	l.state.RateLimited = rateLimited
	l.state.Ticks++
	return applied, rateLimited
}

// Override records an output chosen outside the limiter (stock passthrough,
// driver override) so the next tick slews from it. Torque outputs are
// clamped to SteerMax.
func (l *Limiter) Override(applied float64) {
	if l.mode == ModeTorque {
		applied = clip(applied, -l.torque.SteerMax, l.torque.SteerMax)
	}
	l.state.LastApplied = applied
	l.state.RateLimited = false
}

// Reset clears the remembered output.
func (l *Limiter) Reset() {
	l.state = LimiterState{Ticks: l.state.Ticks}
}
