package control

import (
	"strings"
	"time"

	"go.einride.tech/can"

	"adas-actuation-core/control/brake"
	"adas-actuation-core/control/cruise"
)

// Signals maps signal names to physical values for one frame.
type Signals = map[string]float64

// FrameCodec packs named signals into a message's byte layout.
// Encode must return exactly FrameLength(name) bytes; the last byte is
// reserved for the integrity byte when the message carries one.
type FrameCodec interface {
	Encode(name string, signals Signals) (id uint32, data []byte, err error)
	FrameLength(name string) (int, error)
}

// VehicleState is the measured vehicle, replaced wholesale every tick.
type VehicleState struct {
	SpeedMS        float64
	SpeedClusterMS float64 // dash speed
	Standstill     bool

	SteeringAngleDeg  float64
	SteeringTorque    float64 // driver
	SteeringTorqueEps float64 // EPS sensor
	SteeringPressed   bool

	GasPressed        bool
	BrakePressed      bool
	BrakeHoldActive   bool
	DoorOpen          bool
	SeatbeltUnlatched bool
	LeftBlinker       bool
	RightBlinker      bool

	CruiseAvailable bool
	CruiseSetSignal bool
	Buttons         cruise.Buttons

	// Stock ADAS state passed through to our frames.
	StockLaneDepart bool
	StockLDPSteer   float64
	StockAEB        bool
	StockFCW        bool
	StockAEBRequest bool
	FrontDepart     bool
	StockLKCOff     bool
	StockFCWOff     bool
	FollowDistance  float64
}

// DesiredActuation is the planner command for one tick.
type DesiredActuation struct {
	SteerAngleDeg float64
	SteerTorque   float64 // normalized to [-1, 1]
	Accel         float64 // m/s^2
	SpeedMS       float64 // planner speed target, m/s; zero when the planner sets none
	LatActive     bool
	LongActive    bool

	LeadVisible      bool
	LeftLaneVisible  bool
	RightLaneVisible bool
}

// TickInput is everything one Tick consumes. Now is a monotonic timestamp
// supplied by the caller.
type TickInput struct {
	Now     time.Duration
	State   VehicleState
	Desired DesiredActuation
}

// OutboundFrame is one encoded frame ready for transport.
type OutboundFrame struct {
	Name     string
	ID       uint32
	Signals  Signals
	Data     []byte
	Checksum *byte
}

// CANFrame converts f to a classic CAN frame.
func (f OutboundFrame) CANFrame() can.Frame {
	frame := can.Frame{ID: f.ID, Length: uint8(len(f.Data))}
	if f.ID > 0x7FF {
		frame.IsExtended = true
	}
	copy(frame.Data[:], f.Data)
	return frame
}

// Diagnostics is a set of per-tick problem flags.
type Diagnostics uint8

const (
	DiagInputClamped Diagnostics = 1 << iota
	DiagFrameDropped
	DiagCodecError
)

func (d Diagnostics) Has(flag Diagnostics) bool { return d&flag != 0 }

func (d Diagnostics) String() string {
	if d == 0 {
		return "none"
	}
	var parts []string
	if d.Has(DiagInputClamped) {
		parts = append(parts, "input_clamped")
	}
	if d.Has(DiagFrameDropped) {
		parts = append(parts, "frame_dropped")
	}
	if d.Has(DiagCodecError) {
		parts = append(parts, "codec_error")
	}
	return strings.Join(parts, "|")
}

// ActuationEcho reports what was actually commanded this tick.
type ActuationEcho struct {
	// Steer is the applied angle in degrees for angle-steered vehicles, or
	// the applied torque normalized by the steer limit otherwise.
	Steer        float64
	SteerRequest bool
	RateLimited  bool

	Brake        float64
	Pump         float64
	BrakeRequest bool
	BrakeStatus  brake.Status
	DesiredSpeed float64 // m/s

	CruiseEngaged   bool
	CruiseTargetKph float64
	LaneKeepLatch   bool

	Diagnostics   Diagnostics
	DroppedFrames []string
}

// TickOutput is the result of one Tick.
type TickOutput struct {
	Tick   uint64
	Frames []OutboundFrame
	Echo   ActuationEcho
}
