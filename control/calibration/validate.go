package calibration

import (
	"errors"
	"fmt"
)

var ErrInvalidCalibration = errors.New("invalid calibration")

// ConfigError reports one invalid calibration field. It unwraps to
// ErrInvalidCalibration.
type ConfigError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("calibration field %s: %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("calibration field %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrInvalidCalibration, e.Err}
	}
	return []error{ErrInvalidCalibration}
}

func invalid(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Validate reports the first invalid field as a *ConfigError.
func (c VehicleCalibration) Validate() error {
	switch c.SteerMode {
	case "torque":
		if err := c.validateTorque(); err != nil {
			return err
		}
	case "angle":
		if err := c.validateAngle(); err != nil {
			return err
		}
	default:
		return invalid("steer_mode", "must be torque or angle, got %q", c.SteerMode)
	}

	if err := c.validateLongitudinal(); err != nil {
		return err
	}
	if err := c.validateCruise(); err != nil {
		return err
	}
	return c.validateFrames()
}

func (c VehicleCalibration) validateTorque() error {
	if len(c.SteerTorqueV) != 1 {
		return invalid("steer_torque_v", "expected a single max torque value, got %d", len(c.SteerTorqueV))
	}
	if len(c.SteerTorqueBP) != len(c.SteerTorqueV) {
		return invalid("steer_torque_bp", "has %d breakpoints for %d values", len(c.SteerTorqueBP), len(c.SteerTorqueV))
	}
	if c.SteerMax() <= 0 {
		return invalid("steer_torque_v", "max torque must be positive, got %v", c.SteerMax())
	}
	if c.SteerDeltaUp <= 0 {
		return invalid("steer_delta_up", "must be positive, got %v", c.SteerDeltaUp)
	}
	if c.SteerDeltaDown <= 0 {
		return invalid("steer_delta_down", "must be positive, got %v", c.SteerDeltaDown)
	}
	if c.DriverOverrideGain < 0 {
		return invalid("driver_override_gain", "must not be negative, got %v", c.DriverOverrideGain)
	}
	if c.LaneChangeOverrideGain < 0 {
		return invalid("lane_change_override_gain", "must not be negative, got %v", c.LaneChangeOverrideGain)
	}
	return nil
}

func (c VehicleCalibration) validateAngle() error {
	if c.AngleRateLimitUp <= 0 {
		return invalid("angle_rate_limit_up", "must be positive, got %v", c.AngleRateLimitUp)
	}
	if c.AngleRateLimitDown <= 0 {
		return invalid("angle_rate_limit_down", "must be positive, got %v", c.AngleRateLimitDown)
	}
	if c.MaxSteerAngleDeg <= 0 {
		return invalid("max_steer_angle_deg", "must be positive, got %v", c.MaxSteerAngleDeg)
	}
	if c.SteerAngleScale <= 0 {
		return invalid("steer_angle_scale", "must be positive, got %v", c.SteerAngleScale)
	}
	return nil
}

func (c VehicleCalibration) validateLongitudinal() error {
	if c.BrakeGain < 0 {
		return invalid("brake_gain", "must not be negative, got %v", c.BrakeGain)
	}
	if c.BrakeMax < 0 {
		return invalid("brake_max", "must not be negative, got %v", c.BrakeMax)
	}
	if err := c.PumpTable.Validate(); err != nil {
		return &ConfigError{Field: "pump_table", Reason: "bad lookup table", Err: err}
	}
	if c.PumpRateLimit <= 0 {
		return invalid("pump_rate_limit", "must be positive, got %v", c.PumpRateLimit)
	}
	if c.PumpResetInterval <= 0 {
		return invalid("pump_reset_interval", "must be positive, got %v", c.PumpResetInterval.Std())
	}
	if c.PumpResetDuration <= 0 {
		return invalid("pump_reset_duration", "must be positive, got %v", c.PumpResetDuration.Std())
	}
	return nil
}

func (c VehicleCalibration) validateCruise() error {
	if c.CruiseMinKph < 0 || c.CruiseMaxKph <= c.CruiseMinKph {
		return invalid("cruise_max_kph", "range [%v, %v] is empty", c.CruiseMinKph, c.CruiseMaxKph)
	}
	if c.HoldStepKph <= 0 {
		return invalid("hold_step_kph", "must be positive, got %v", c.HoldStepKph)
	}
	if c.HoldStep <= 0 {
		return invalid("hold_step", "must be positive, got %v", c.HoldStep.Std())
	}
	if c.TapWindow <= 0 {
		return invalid("tap_window", "must be positive, got %v", c.TapWindow.Std())
	}
	return nil
}

func (c VehicleCalibration) validateFrames() error {
	if c.SteerDivisor < 1 {
		return invalid("steer_divisor", "must be at least 1, got %d", c.SteerDivisor)
	}
	if c.LongDivisor < 1 {
		return invalid("long_divisor", "must be at least 1, got %d", c.LongDivisor)
	}
	if c.ResumeDivisor < 0 {
		return invalid("resume_divisor", "must not be negative, got %d", c.ResumeDivisor)
	}
	if c.CounterModulo < 1 || c.CounterModulo > 256 {
		return invalid("counter_modulo", "must be in [1, 256], got %d", c.CounterModulo)
	}
	if c.Messages.Steering == "" {
		return invalid("messages.steering", "is required")
	}
	if c.ResumeDivisor > 0 && c.Messages.Buttons == "" {
		return invalid("messages.buttons", "is required when resume_divisor is set")
	}
	if c.DTCClear != nil {
		if _, err := c.DTCClear.Bytes(); err != nil {
			return &ConfigError{Field: "dtc_clear.data", Reason: "not hex", Err: err}
		}
	}
	return nil
}
