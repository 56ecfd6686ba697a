package utils

import (
	"errors"
	"sort"
)

var (
	ErrUnknownFrame  = errors.New("unknown CAN frame")
	ErrUnknownSignal = errors.New("unknown CAN signal")
)

type SignalDef struct {
	Name       string
	StartBit   int
	BitLength  int
	Signed     bool
	Factor     float64
	Offset     float64
	Min        float64
	Max        float64
	Default    float64
	Unit       string
	Comment    string
	Endianness string // only "little" supported
}

// Scale converts a physical value into the clamped raw integer sent on the bus.
func (s SignalDef) Scale(v float64) int64 {
	v = clamp(v, s.Min, s.Max)
	return clampRaw(roundRaw((v-s.Offset)/s.Factor), s.BitLength, s.Signed)
}

// Unscale converts a raw integer back into physical units.
func (s SignalDef) Unscale(raw int64) float64 {
	return float64(raw)*s.Factor + s.Offset
}

type FrameDef struct {
	ID        uint32
	Name      string
	DLC       int
	Direction string
	CycleMS   int
	Signals   []SignalDef
}

func (f *FrameDef) Signal(name string) (SignalDef, bool) {
	for _, s := range f.Signals {
		if s.Name == name {
			return s, true
		}
	}
	return SignalDef{}, false
}

type CANMap struct {
	ByID   map[uint32]*FrameDef
	ByName map[string]*FrameDef
}

func (m *CANMap) FrameNames() []string {
	out := make([]string, 0, len(m.ByName))
	for k := range m.ByName {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
