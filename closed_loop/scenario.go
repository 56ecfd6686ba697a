package main

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"time"

	"adas-actuation-core/control"
)

const (
	modeOpenLoop    = "open_loop"
	modeVelocityPID = "velocity_pid"
)

// Scenario scripts planner commands and driver events over time.
type Scenario struct {
	Meta      ScenarioMeta      `json:"meta"`
	Timing    ScenarioTiming    `json:"timing"`
	Vehicle   ScenarioVehicle   `json:"vehicle"`
	Defaults  PlannerCmd        `json:"defaults"`
	Segments  []ScenarioSegment `json:"segments"`
	Events    []ScenarioEvent   `json:"events"`
	PIDConfig *PIDConfig        `json:"pid_config,omitempty"`
}

type ScenarioMeta struct {
	Name        string `json:"name"`
	Version     int    `json:"version"`
	Description string `json:"description"`
	ControlMode string `json:"control_mode,omitempty"` // "open_loop" or "velocity_pid"
}

type ScenarioTiming struct {
	DtS          float64 `json:"dt_s"`
	DurationS    float64 `json:"duration_s"`
	RealTimeMode bool    `json:"real_time_mode"`
}

// Period is the control period. Zero dt_s means 100 Hz.
func (t ScenarioTiming) Period() time.Duration {
	if t.DtS <= 0 {
		return 10 * time.Millisecond
	}
	return time.Duration(math.Round(t.DtS * float64(time.Second)))
}

func (t ScenarioTiming) Duration() time.Duration {
	return time.Duration(t.DurationS * float64(time.Second))
}

// ScenarioVehicle seeds the simulated plant and the static vehicle flags.
type ScenarioVehicle struct {
	InitialSpeedMPS  float64 `json:"initial_speed_mps"`
	SteerRatePerUnit float64 `json:"steer_rate_deg_s,omitempty"` // torque racks: deg/s at full command
	CruiseAvailable  *bool   `json:"cruise_available,omitempty"`
}

// PlannerCmd is what the planner asks for while a segment is active.
type PlannerCmd struct {
	LatActive     bool    `json:"lat_active"`
	LongActive    bool    `json:"long_active"`
	SteerTorque   float64 `json:"steer_torque"`
	SteerAngleDeg float64 `json:"steer_angle_deg"`
	AccelMPS2     float64 `json:"accel_mps2"`
	LeadVisible   bool    `json:"lead_visible"`
}

// ScenarioSegment overrides the defaults within [T0, T1). A negative T1 runs
// to the end. Only the fields present in the JSON override.
type ScenarioSegment struct {
	T0            float64  `json:"t0"`
	T1            float64  `json:"t1"`
	LatActive     *bool    `json:"lat_active,omitempty"`
	LongActive    *bool    `json:"long_active,omitempty"`
	SteerTorque   *float64 `json:"steer_torque,omitempty"`
	SteerAngleDeg *float64 `json:"steer_angle_deg,omitempty"`
	AccelMPS2     *float64 `json:"accel_mps2,omitempty"`
	TargetMPS     *float64 `json:"target_velocity_mps,omitempty"` // velocity_pid only
	Comment       string   `json:"comment,omitempty"`
}

// ScenarioEvent holds a button or a vehicle flag over [T0, T1).
type ScenarioEvent struct {
	T0      float64 `json:"t0"`
	T1      float64 `json:"t1"`
	Button  string  `json:"button,omitempty"` // set|resume|cancel|lane_keep
	Flag    string  `json:"flag,omitempty"`   // brake|gas|door|seatbelt|brake_hold|steering_pressed|left_blinker|right_blinker|stock_ldw
	Value   float64 `json:"value,omitempty"`  // stock_ldw steer command
	Comment string  `json:"comment,omitempty"`
}

var (
	validButtons = map[string]bool{"set": true, "resume": true, "cancel": true, "lane_keep": true}
	validFlags   = map[string]bool{
		"brake": true, "gas": true, "door": true, "seatbelt": true, "brake_hold": true,
		"steering_pressed": true, "left_blinker": true, "right_blinker": true, "stock_ldw": true,
	}
)

func LoadScenario(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("read file: %w", err)
	}
	return ParseScenario(data)
}

func ParseScenario(data []byte) (Scenario, error) {
	var scen Scenario
	if err := json.Unmarshal(data, &scen); err != nil {
		return Scenario{}, fmt.Errorf("unmarshal: %w", err)
	}

	if scen.Timing.DurationS <= 0 {
		return Scenario{}, fmt.Errorf("invalid duration_s: %f", scen.Timing.DurationS)
	}
	if scen.Timing.DtS < 0 {
		return Scenario{}, fmt.Errorf("invalid dt_s: %f", scen.Timing.DtS)
	}

	if scen.Meta.ControlMode == "" {
		scen.Meta.ControlMode = modeOpenLoop
	}
	switch scen.Meta.ControlMode {
	case modeOpenLoop:
	case modeVelocityPID:
		if scen.PIDConfig == nil {
			return Scenario{}, fmt.Errorf("velocity_pid mode requires pid_config")
		}
		if scen.PIDConfig.TargetVelocityMPS <= 0 {
			return Scenario{}, fmt.Errorf("invalid target_velocity_mps: %f", scen.PIDConfig.TargetVelocityMPS)
		}
	default:
		return Scenario{}, fmt.Errorf("unknown control_mode %q", scen.Meta.ControlMode)
	}

	for i, ev := range scen.Events {
		switch {
		case ev.Button != "" && ev.Flag != "":
			return Scenario{}, fmt.Errorf("event %d: button and flag are exclusive", i)
		case ev.Button != "" && !validButtons[ev.Button]:
			return Scenario{}, fmt.Errorf("event %d: unknown button %q", i, ev.Button)
		case ev.Flag != "" && !validFlags[ev.Flag]:
			return Scenario{}, fmt.Errorf("event %d: unknown flag %q", i, ev.Flag)
		case ev.Button == "" && ev.Flag == "":
			return Scenario{}, fmt.Errorf("event %d: needs a button or a flag", i)
		}
	}

	return scen, nil
}

func (s *Scenario) end(t1 float64) float64 {
	if t1 < 0 {
		return s.Timing.DurationS
	}
	return t1
}

// EvalPlanner returns the planner command at time t. The first matching
// segment wins.
func EvalPlanner(scen *Scenario, t float64) PlannerCmd {
	cmd := scen.Defaults

	for _, seg := range scen.Segments {
		if t < seg.T0 || t >= scen.end(seg.T1) {
			continue
		}
		if seg.LatActive != nil {
			cmd.LatActive = *seg.LatActive
		}
		if seg.LongActive != nil {
			cmd.LongActive = *seg.LongActive
		}
		if seg.SteerTorque != nil {
			cmd.SteerTorque = *seg.SteerTorque
		}
		if seg.SteerAngleDeg != nil {
			cmd.SteerAngleDeg = *seg.SteerAngleDeg
		}
		if seg.AccelMPS2 != nil {
			cmd.AccelMPS2 = *seg.AccelMPS2
		}
		break
	}
	return cmd
}

// EvalTarget returns the velocity_pid target at time t.
func EvalTarget(scen *Scenario, t float64) float64 {
	for _, seg := range scen.Segments {
		if t >= seg.T0 && t < scen.end(seg.T1) && seg.TargetMPS != nil {
			return *seg.TargetMPS
		}
	}
	if scen.PIDConfig != nil {
		return scen.PIDConfig.TargetVelocityMPS
	}
	return 0
}

// ApplyEvents sets the buttons and flags active at time t on st.
func ApplyEvents(scen *Scenario, t float64, st *control.VehicleState) {
	st.CruiseAvailable = scen.Vehicle.CruiseAvailable == nil || *scen.Vehicle.CruiseAvailable

	for _, ev := range scen.Events {
		if t < ev.T0 || t >= scen.end(ev.T1) {
			continue
		}
		switch ev.Button {
		case "set":
			st.Buttons.Set = true
		case "resume":
			st.Buttons.Resume = true
		case "cancel":
			st.Buttons.Cancel = true
		case "lane_keep":
			st.Buttons.LaneKeep = true
		}
		switch ev.Flag {
		case "brake":
			st.BrakePressed = true
		case "gas":
			st.GasPressed = true
		case "door":
			st.DoorOpen = true
		case "seatbelt":
			st.SeatbeltUnlatched = true
		case "brake_hold":
			st.BrakeHoldActive = true
		case "steering_pressed":
			st.SteeringPressed = true
		case "left_blinker":
			st.LeftBlinker = true
		case "right_blinker":
			st.RightBlinker = true
		case "stock_ldw":
			st.StockLaneDepart = true
			st.StockLDPSteer = ev.Value
		}
	}
}
