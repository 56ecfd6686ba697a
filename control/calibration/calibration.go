// Package calibration holds the per-vehicle constants the actuation layer
// needs: steering limits, brake and pump shaping, cruise button timing, frame
// cadence and checksum selection.
//
// A VehicleCalibration is loaded once, validated, and then only read.
package calibration

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"adas-actuation-core/control/brake"
	"adas-actuation-core/control/checksum"
	"adas-actuation-core/control/cruise"
	"adas-actuation-core/control/steering"
)

// Duration is a time.Duration that reads "1.5s" style strings or plain
// seconds from JSON.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(v)
		return nil
	}
	var secs float64
	if err := json.Unmarshal(b, &secs); err != nil {
		return fmt.Errorf("duration must be a string or seconds: %w", err)
	}
	*d = Duration(secs * float64(time.Second))
	return nil
}

// RawFrame is a frame sent verbatim, bypassing the codec.
type RawFrame struct {
	ID   uint32 `json:"id"`
	Data string `json:"data"` // hex payload
}

func (r RawFrame) Bytes() ([]byte, error) {
	return hex.DecodeString(r.Data)
}

// Messages names the codec messages for each frame family. An empty name
// disables that family.
type Messages struct {
	Steering   string `json:"steering"`
	AccCommand string `json:"acc_command,omitempty"`
	Brake      string `json:"brake,omitempty"`
	HUD        string `json:"hud,omitempty"`
	Buttons    string `json:"buttons,omitempty"`
}

// VehicleCalibration is the complete tuning for one vehicle family.
type VehicleCalibration struct {
	Name      string `json:"name"`
	SteerMode string `json:"steer_mode"` // "torque" or "angle"

	// Torque steering. SteerTorqueV must hold exactly one value, the
	// magnitude limit used at every speed.
	SteerTorqueBP          []float64 `json:"steer_torque_bp"`
	SteerTorqueV           []float64 `json:"steer_torque_v"`
	SteerDeltaUp           float64   `json:"steer_delta_up"`
	SteerDeltaDown         float64   `json:"steer_delta_down"`
	DriverOverrideGain     float64   `json:"driver_override_gain"`
	LaneChangeOverrideGain float64   `json:"lane_change_override_gain"`

	// Angle steering.
	AngleRateLimitUp        float64 `json:"angle_rate_limit_up"`
	AngleRateLimitDown      float64 `json:"angle_rate_limit_down"`
	RateLimitedThresholdDeg float64 `json:"rate_limited_threshold_deg"`
	DriverOverrideTorqueEps float64 `json:"driver_override_torque_eps"`
	MaxSteerAngleDeg        float64 `json:"max_steer_angle_deg"`
	SteerAngleScale         float64 `json:"steer_angle_scale"` // rack angle per commanded degree

	// Longitudinal.
	BrakeGain                float64         `json:"brake_gain"`
	BrakeMax                 float64         `json:"brake_max"`
	BrakeThreshold           float64         `json:"brake_threshold"`
	SpeedBoost               float64         `json:"speed_boost"`
	PumpTable                brake.PumpTable `json:"pump_table"`
	PumpRateLimit            float64         `json:"pump_rate_limit"`
	PumpResetInterval        Duration        `json:"pump_reset_interval"`
	PumpResetDuration        Duration        `json:"pump_reset_duration"`
	StandstillMinAccelMargin float64         `json:"standstill_min_accel_margin"`
	StopAndGo                bool            `json:"stop_and_go"`

	// Cruise buttons.
	CruiseMinKph float64  `json:"cruise_min_kph"`
	CruiseMaxKph float64  `json:"cruise_max_kph"`
	TapStepKph   float64  `json:"tap_step_kph"`
	HoldStepKph  float64  `json:"hold_step_kph"`
	HoldStep     Duration `json:"hold_step"`
	TapWindow    Duration `json:"tap_window"`

	// Cadence, in control ticks. ResumeDivisor 0 disables the standstill
	// resume button frame.
	SteerDivisor  int `json:"steer_divisor"`
	LongDivisor   int `json:"long_divisor"`
	ResumeDivisor int `json:"resume_divisor"`
	CounterModulo int `json:"counter_modulo"`

	// DTCClear is sent every tick while the tick counter is at most
	// DTCClearTicks.
	DTCClear      *RawFrame `json:"dtc_clear,omitempty"`
	DTCClearTicks uint64    `json:"dtc_clear_ticks,omitempty"`

	Messages  Messages                 `json:"messages"`
	Checksums map[string]checksum.Spec `json:"checksums"`
}

// Mode maps SteerMode onto the limiter strategy.
func (c VehicleCalibration) Mode() steering.Mode {
	if c.SteerMode == "angle" {
		return steering.ModeAngle
	}
	return steering.ModeTorque
}

// SteerMax is the single torque magnitude limit.
func (c VehicleCalibration) SteerMax() float64 {
	if len(c.SteerTorqueV) == 0 {
		return 0
	}
	return c.SteerTorqueV[0]
}

func (c VehicleCalibration) TorqueLimits() steering.TorqueLimits {
	return steering.TorqueLimits{
		SteerMax:               c.SteerMax(),
		DeltaUp:                c.SteerDeltaUp,
		DeltaDown:              c.SteerDeltaDown,
		DriverOverrideGain:     c.DriverOverrideGain,
		LaneChangeOverrideGain: c.LaneChangeOverrideGain,
	}
}

func (c VehicleCalibration) AngleLimits() steering.AngleLimits {
	return steering.AngleLimits{
		RateUp:               c.AngleRateLimitUp,
		RateDown:             c.AngleRateLimitDown,
		RateLimitedThreshold: c.RateLimitedThresholdDeg,
	}
}

func (c VehicleCalibration) BrakeTiming() brake.Timing {
	return brake.Timing{
		PumpResetInterval: c.PumpResetInterval.Std(),
		PumpResetDuration: c.PumpResetDuration.Std(),
		MinAccelMargin:    c.StandstillMinAccelMargin,
	}
}

func (c VehicleCalibration) PumpLimits() brake.PumpLimits {
	return brake.PumpLimits{
		Table:     c.PumpTable,
		RateLimit: c.PumpRateLimit,
		Threshold: c.BrakeThreshold,
	}
}

func (c VehicleCalibration) BrakeGains() brake.Gains {
	return brake.Gains{
		BrakeGain:  c.BrakeGain,
		BrakeMax:   c.BrakeMax,
		SpeedBoost: c.SpeedBoost,
	}
}

func (c VehicleCalibration) CruiseLimits() cruise.Limits {
	return cruise.Limits{
		MinKph:      c.CruiseMinKph,
		MaxKph:      c.CruiseMaxKph,
		TapStepKph:  c.TapStepKph,
		HoldStepKph: c.HoldStepKph,
		HoldStep:    c.HoldStep.Std(),
		TapWindow:   c.TapWindow.Std(),
	}
}

// Checksum returns the checksum selection for a message, KindNone if unset.
func (c VehicleCalibration) Checksum(message string) checksum.Spec {
	return c.Checksums[message]
}

// Defaults returns the speed-controlled, torque-steered tuning: a 255-unit
// EPS, pump-actuated brakes without stop-and-go and additive checksums.
func Defaults() VehicleCalibration {
	return VehicleCalibration{
		Name:      "torque_psd",
		SteerMode: "torque",

		SteerTorqueBP:          []float64{0},
		SteerTorqueV:           []float64{255},
		SteerDeltaUp:           10,
		SteerDeltaDown:         30,
		DriverOverrideGain:     1.5,
		LaneChangeOverrideGain: 10,

		AngleRateLimitUp:        3,
		AngleRateLimitDown:      3,
		RateLimitedThresholdDeg: 2.5,
		DriverOverrideTorqueEps: 15,
		MaxSteerAngleDeg:        90,
		SteerAngleScale:         1,

		BrakeGain:      1 / 1.4,
		BrakeMax:       1.56,
		BrakeThreshold: 0.01,
		SpeedBoost:     1.4,
		PumpTable: brake.PumpTable{
			BrakeMag: []float64{0.01, .32, .46, .61, .76, .90, 1.06, 1.21, 1.35, 1.51, 4.0},
			PumpVals: []float64{0, .1, .2, .3, .4, .5, .6, .7, .8, .9, 1.0},
		},
		PumpRateLimit:            0.1,
		PumpResetInterval:        Duration(1500 * time.Millisecond),
		PumpResetDuration:        Duration(100 * time.Millisecond),
		StandstillMinAccelMargin: 0.2,

		CruiseMinKph: 30,
		CruiseMaxKph: 120,
		TapStepKph:   1,
		HoldStepKph:  5,
		HoldStep:     Duration(600 * time.Millisecond),
		TapWindow:    Duration(time.Second),

		SteerDivisor:  2,
		LongDivisor:   5,
		CounterModulo: 16,

		DTCClear:      &RawFrame{ID: 2015, Data: "0104000000000000"},
		DTCClearTicks: 1000,

		Messages: Messages{
			Steering:   "STEERING_LKAS",
			AccCommand: "ACC_CMD_HUD",
			Brake:      "ACC_BRAKE",
			HUD:        "LKAS_HUD",
			Buttons:    "PCM_BUTTONS",
		},
		Checksums: map[string]checksum.Spec{
			"STEERING_LKAS": {Kind: checksum.KindAdditive, Offset: 2},
			"ACC_CMD_HUD":   {Kind: checksum.KindAdditive, Offset: 3},
			"ACC_BRAKE":     {Kind: checksum.KindAdditive, Offset: 3},
			"LKAS_HUD":      {Kind: checksum.KindAdditive, Offset: 3},
			"PCM_BUTTONS":   {Kind: checksum.KindAdditive, Offset: 3},
		},
	}
}

// PresetTorque is Defaults.
func PresetTorque() VehicleCalibration { return Defaults() }

// PresetAngle is an angle-steered vehicle with its own longitudinal
// control: lateral frames only, CRC-8 protected, plus the standstill resume
// button frame.
func PresetAngle() VehicleCalibration {
	c := Defaults()
	c.Name = "angle_crc8"
	c.SteerMode = "angle"
	c.SteerAngleScale = 1.02
	c.StopAndGo = true
	c.ResumeDivisor = 29
	c.DTCClear = nil
	c.DTCClearTicks = 0
	c.Messages = Messages{
		Steering: "STEERING_MODULE_ADAS",
		Buttons:  "PCM_BUTTONS",
	}
	c.Checksums = map[string]checksum.Spec{
		"STEERING_MODULE_ADAS": {Kind: checksum.KindCRC8H2F},
		"PCM_BUTTONS":          {Kind: checksum.KindCRC8H2F},
	}
	return c
}
