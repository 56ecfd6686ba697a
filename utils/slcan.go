package utils

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"go.bug.st/serial"
	"go.einride.tech/can"
)

// slcanBitrates maps a bus bitrate to the Lawicel "Sn" setup code.
var slcanBitrates = map[int]byte{
	10000:   '0',
	20000:   '1',
	50000:   '2',
	100000:  '3',
	125000:  '4',
	250000:  '5',
	500000:  '6',
	800000:  '7',
	1000000: '8',
}

// SLCANWriter transmits frames through a serial-line CAN adapter speaking
// the Lawicel ASCII protocol.
type SLCANWriter struct {
	mu   sync.Mutex
	port io.ReadWriteCloser
}

// NewSLCANWriter opens the serial device, sets the bus bitrate and opens
// the channel.
func NewSLCANWriter(path string, bitrate int) (*SLCANWriter, error) {
	mode := &serial.Mode{
		BaudRate: 115200,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open slcan %s: %w", path, err)
	}

	w, err := NewSLCANWriterFrom(port, bitrate)
	if err != nil {
		_ = port.Close()
		return nil, err
	}
	return w, nil
}

// NewSLCANWriterFrom runs the channel setup over an already open port.
func NewSLCANWriterFrom(port io.ReadWriteCloser, bitrate int) (*SLCANWriter, error) {
	code, ok := slcanBitrates[bitrate]
	if !ok {
		return nil, fmt.Errorf("slcan: unsupported bitrate %d", bitrate)
	}
	for _, cmd := range []string{"C\r", "S" + string(code) + "\r", "O\r"} {
		if _, err := io.WriteString(port, cmd); err != nil {
			return nil, fmt.Errorf("slcan setup %q: %w", strings.TrimSpace(cmd), err)
		}
	}
	return &SLCANWriter{port: port}, nil
}

func (w *SLCANWriter) WriteFrame(ctx context.Context, frame can.Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	line, err := FormatSLCAN(frame)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := io.WriteString(w.port, line); err != nil {
		return fmt.Errorf("slcan tx 0x%X: %w", frame.ID, err)
	}
	return nil
}

// Close closes the channel and the port.
func (w *SLCANWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, _ = io.WriteString(w.port, "C\r")
	return w.port.Close()
}

// FormatSLCAN renders a data frame as one carriage-return terminated
// transmit command.
func FormatSLCAN(f can.Frame) (string, error) {
	if f.Length > 8 {
		return "", fmt.Errorf("slcan: invalid length %d", f.Length)
	}
	var b strings.Builder
	if f.IsExtended {
		if f.ID > 0x1FFFFFFF {
			return "", fmt.Errorf("slcan: extended id 0x%X out of range", f.ID)
		}
		fmt.Fprintf(&b, "T%08X", f.ID)
	} else {
		if f.ID > 0x7FF {
			return "", fmt.Errorf("slcan: standard id 0x%X out of range", f.ID)
		}
		fmt.Fprintf(&b, "t%03X", f.ID)
	}
	b.WriteByte('0' + f.Length)
	b.WriteString(strings.ToUpper(hex.EncodeToString(f.Data[:f.Length])))
	b.WriteByte('\r')
	return b.String(), nil
}

// ParseSLCAN decodes a "t" or "T" line as produced by FormatSLCAN. The
// trailing carriage return is optional.
func ParseSLCAN(line string) (can.Frame, error) {
	line = strings.TrimRight(line, "\r")
	if line == "" {
		return can.Frame{}, fmt.Errorf("slcan: empty line")
	}

	var f can.Frame
	idLen := 3
	switch line[0] {
	case 't':
	case 'T':
		idLen = 8
		f.IsExtended = true
	default:
		return can.Frame{}, fmt.Errorf("slcan: unsupported command %q", line[0])
	}
	if len(line) < 1+idLen+1 {
		return can.Frame{}, fmt.Errorf("slcan: short frame %q", line)
	}

	id, err := strconv.ParseUint(line[1:1+idLen], 16, 32)
	if err != nil {
		return can.Frame{}, fmt.Errorf("slcan: bad id: %w", err)
	}
	f.ID = uint32(id)

	n := line[1+idLen]
	if n < '0' || n > '8' {
		return can.Frame{}, fmt.Errorf("slcan: bad length %q", n)
	}
	f.Length = n - '0'

	payload := line[2+idLen:]
	if len(payload) != int(f.Length)*2 {
		return can.Frame{}, fmt.Errorf("slcan: length %d does not match %d hex digits", f.Length, len(payload))
	}
	if _, err := hex.Decode(f.Data[:f.Length], []byte(payload)); err != nil {
		return can.Frame{}, fmt.Errorf("slcan: bad payload: %w", err)
	}
	return f, nil
}
