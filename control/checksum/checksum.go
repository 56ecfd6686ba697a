// Package checksum computes the integrity byte appended to safety-relevant
// outbound CAN frames.
//
// Two families are supported: an additive checksum over the message id,
// payload length and payload bytes, and a table-driven CRC-8 (poly 0x2F).
// The integrity byte always occupies the last byte of the frame and is
// computed over every byte before it.
package checksum

import (
	"errors"
	"fmt"
	"strings"
)

// Kind selects the checksum algorithm for a message.
type Kind int

const (
	KindNone Kind = iota
	KindAdditive
	KindCRC8H2F
)

var ErrLengthMismatch = errors.New("checksum: payload length does not match frame length")

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindAdditive:
		return "additive"
	case KindCRC8H2F:
		return "crc8_h2f"
	default:
		return "unknown"
	}
}

// ParseKind maps a config string onto a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return KindNone, nil
	case "additive", "sum":
		return KindAdditive, nil
	case "crc8", "crc8_h2f", "crc8h2f":
		return KindCRC8H2F, nil
	}
	return KindNone, fmt.Errorf("checksum: unknown kind %q", s)
}

// MarshalText lets Kind round-trip through JSON calibration files.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// Additive returns (id + len(payload) + offset + sum(payload)) mod 256.
func Additive(id uint32, payload []byte, offset uint8) byte {
	sum := id + uint32(len(payload)) + uint32(offset)
	for _, b := range payload {
		sum += uint32(b)
	}
	return byte(sum & 0xFF)
}

// Compute dispatches on kind. KindNone yields 0.
func Compute(kind Kind, id uint32, payload []byte, offset uint8) byte {
	switch kind {
	case KindAdditive:
		return Additive(id, payload, offset)
	case KindCRC8H2F:
		return CRC8H2F(payload)
	}
	return 0
}

// Spec is the per-message checksum selection carried by calibration.
type Spec struct {
	Kind   Kind  `json:"kind"`
	Offset uint8 `json:"offset,omitempty"` // additive family only
}

// Enabled reports whether frames using this spec carry an integrity byte.
func (s Spec) Enabled() bool {
	return s.Kind != KindNone
}

// Compute returns the integrity byte for a payload that excludes the checksum byte.
func (s Spec) Compute(id uint32, payload []byte) byte {
	return Compute(s.Kind, id, payload, s.Offset)
}

// Stamp writes the integrity byte into the last byte of frame.
// The frame must be exactly dlc bytes long; it is never truncated or padded.
func (s Spec) Stamp(id uint32, frame []byte, dlc int) (byte, error) {
	if err := checkLength(id, frame, dlc); err != nil {
		return 0, err
	}
	if !s.Enabled() {
		return 0, nil
	}
	c := s.Compute(id, frame[:dlc-1])
	frame[dlc-1] = c
	return c, nil
}

// Verify recomputes the integrity byte of a received frame and compares it
// with the trailing byte.
func (s Spec) Verify(id uint32, frame []byte, dlc int) (bool, error) {
	if err := checkLength(id, frame, dlc); err != nil {
		return false, err
	}
	if !s.Enabled() {
		return true, nil
	}
	return s.Compute(id, frame[:dlc-1]) == frame[dlc-1], nil
}

func checkLength(id uint32, frame []byte, dlc int) error {
	if dlc < 1 || len(frame) != dlc {
		return fmt.Errorf("%w: id 0x%X has %d bytes, frame length %d", ErrLengthMismatch, id, len(frame), dlc)
	}
	return nil
}
