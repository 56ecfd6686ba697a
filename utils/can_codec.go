package utils

import (
	"fmt"
	"sort"

	"go.einride.tech/can"
)

// Encode packs values into the named frame. Signals missing from values take
// their CSV default. Names the frame does not define are rejected with
// ErrUnknownSignal.
func (m *CANMap) Encode(frameName string, values map[string]float64) (uint32, []byte, error) {
	fd, err := m.FrameByName(frameName)
	if err != nil {
		return 0, nil, err
	}
	if err := fd.checkSignals(values); err != nil {
		return 0, nil, err
	}

	var data can.Data
	for _, s := range fd.Signals {
		v, ok := values[s.Name]
		if !ok {
			v = s.Default
		}
		raw := s.Scale(v)
		if s.Signed {
			data.SetSignedBitsLittleEndian(uint8(s.StartBit), uint8(s.BitLength), raw)
		} else {
			data.SetUnsignedBitsLittleEndian(uint8(s.StartBit), uint8(s.BitLength), uint64(raw))
		}
	}

	out := make([]byte, fd.DLC)
	copy(out, data[:fd.DLC])
	return fd.ID, out, nil
}

// FrameLength is the DLC declared for the named frame.
func (m *CANMap) FrameLength(frameName string) (int, error) {
	fd, err := m.FrameByName(frameName)
	if err != nil {
		return 0, err
	}
	return fd.DLC, nil
}

// EncodeEinrideFrame produces an einride can.Frame ready to transmit.
func (m *CANMap) EncodeEinrideFrame(frameName string, values map[string]float64) (can.Frame, error) {
	id, payload, err := m.Encode(frameName, values)
	if err != nil {
		return can.Frame{}, err
	}

	f := can.Frame{ID: id, Length: uint8(len(payload)), IsExtended: id > 0x7FF}
	copy(f.Data[:], payload)
	return f, nil
}

func (m *CANMap) DecodeFrame(frameID uint32, data []byte) (map[string]float64, error) {
	fd, err := m.FrameByID(frameID)
	if err != nil {
		return nil, err
	}
	if len(data) < fd.DLC {
		return nil, fmt.Errorf("frame 0x%X expects DLC %d, got %d", frameID, fd.DLC, len(data))
	}

	var payload can.Data
	copy(payload[:], data[:fd.DLC])

	out := make(map[string]float64, len(fd.Signals))
	for _, s := range fd.Signals {
		var raw int64
		if s.Signed {
			raw = payload.SignedBitsLittleEndian(uint8(s.StartBit), uint8(s.BitLength))
		} else {
			raw = int64(payload.UnsignedBitsLittleEndian(uint8(s.StartBit), uint8(s.BitLength)))
		}
		out[s.Name] = s.Unscale(raw)
	}
	return out, nil
}

// DecodeEinrideFrame decodes a frame read from a transport.
func (m *CANMap) DecodeEinrideFrame(f can.Frame) (map[string]float64, error) {
	return m.DecodeFrame(f.ID, f.Data[:f.Length])
}

func (f *FrameDef) checkSignals(values map[string]float64) error {
	var unknown []string
	for name := range values {
		if _, ok := f.Signal(name); !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return fmt.Errorf("frame %s: %w: %v", f.Name, ErrUnknownSignal, unknown)
}
