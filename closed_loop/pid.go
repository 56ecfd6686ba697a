package main

// PIDConfig holds PID controller parameters
type PIDConfig struct {
	TargetVelocityMPS float64 `json:"target_velocity_mps"`
	Kp                float64 `json:"kp"`
	Ki                float64 `json:"ki"`
	Kd                float64 `json:"kd"`
	MaxAccelMPS2      float64 `json:"max_accel_mps2"`
	MinAccelMPS2      float64 `json:"min_accel_mps2"`
	IntegralLimit     float64 `json:"integral_limit"`

	// FeedforwardGain scales the target's rate of change into the output.
	FeedforwardGain float64 `json:"kff_accel,omitempty"`
	// OvershootResetS halves the integral every sample once the speed has
	// stayed above target this long. Zero disables it.
	OvershootResetS float64 `json:"overshoot_reset_s,omitempty"`
}

// PIDController is a discrete velocity PID that outputs an acceleration
// request for the planner side of the controller.
type PIDController struct {
	cfg PIDConfig

	integral    float64
	prevError   float64
	prevTarget  float64
	overshoot   float64
	initialized bool
}

func NewPIDController(cfg PIDConfig) *PIDController {
	return &PIDController{cfg: cfg}
}

// Reset clears the PID state
func (pid *PIDController) Reset() {
	pid.integral = 0.0
	pid.prevError = 0.0
	pid.prevTarget = 0.0
	pid.overshoot = 0.0
	pid.initialized = false
}

// Update computes the acceleration command (m/s^2) for the current velocity.
func (pid *PIDController) Update(currentVelocity float64, dt float64) float64 {
	err := pid.cfg.TargetVelocityMPS - currentVelocity
	if !pid.initialized {
		// no derivative kick on the first sample
		pid.prevError = err
		pid.prevTarget = pid.cfg.TargetVelocityMPS
		pid.initialized = true
	}

	p := pid.cfg.Kp * err

	// Integral term with anti-windup
	pid.integral += err * dt
	if pid.integral > pid.cfg.IntegralLimit {
		pid.integral = pid.cfg.IntegralLimit
	} else if pid.integral < -pid.cfg.IntegralLimit {
		pid.integral = -pid.cfg.IntegralLimit
	}
	if err < 0 {
		pid.overshoot += dt
		if pid.cfg.OvershootResetS > 0 && pid.overshoot > pid.cfg.OvershootResetS {
			pid.integral *= 0.5
		}
	} else {
		pid.overshoot = 0
	}
	i := pid.cfg.Ki * pid.integral

	var d, ff float64
	if dt > 0 {
		d = pid.cfg.Kd * (err - pid.prevError) / dt
		ff = pid.cfg.FeedforwardGain * (pid.cfg.TargetVelocityMPS - pid.prevTarget) / dt
	}

	accel := p + i + d + ff

	// Saturate and back-calculate the integral
	if accel > pid.cfg.MaxAccelMPS2 {
		accel = pid.cfg.MaxAccelMPS2
		if pid.cfg.Ki != 0 {
			pid.integral = (accel - p - d - ff) / pid.cfg.Ki
		}
	} else if accel < pid.cfg.MinAccelMPS2 {
		accel = pid.cfg.MinAccelMPS2
		if pid.cfg.Ki != 0 {
			pid.integral = (accel - p - d - ff) / pid.cfg.Ki
		}
	}

	pid.prevError = err
	pid.prevTarget = pid.cfg.TargetVelocityMPS
	return accel
}

// GetDiagnostics returns current PID state for logging/debugging
func (pid *PIDController) GetDiagnostics() PIDDiagnostics {
	return PIDDiagnostics{
		Error:    pid.prevError,
		Integral: pid.integral,
		P:        pid.cfg.Kp * pid.prevError,
		I:        pid.cfg.Ki * pid.integral,
	}
}

// PIDDiagnostics contains PID internal state for monitoring
type PIDDiagnostics struct {
	Error    float64
	Integral float64
	P        float64
	I        float64
}

// SetTargetVelocity updates the target velocity
func (pid *PIDController) SetTargetVelocity(target float64) {
	pid.cfg.TargetVelocityMPS = target
}
