package recorder

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adas-actuation-core/control"
	"adas-actuation-core/control/brake"
)

func openTemp(t *testing.T) *Recorder {
	t.Helper()
	r, err := Open(filepath.Join(t.TempDir(), "ticks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func sampleOutput(tick uint64) control.TickOutput {
	sum := byte(0x5A)
	return control.TickOutput{
		Tick: tick,
		Frames: []control.OutboundFrame{
			{Name: "STEERING_LKAS", ID: 0x1D0, Data: []byte{1, 2, 3, 4, 5, 6, 7, 0x5A}, Checksum: &sum},
			{Name: "DTC_CLEAR", ID: 2015, Data: []byte{1, 4, 0, 0, 0, 0, 0, 0}},
		},
		Echo: control.ActuationEcho{
			Steer:         0.25,
			SteerRequest:  true,
			Brake:         0.9,
			BrakeStatus:   brake.StatusBrakeHold,
			CruiseEngaged: true,
			Diagnostics:   control.DiagFrameDropped,
			DroppedFrames: []string{"ACC_BRAKE"},
		},
	}
}

// ============================================================
// Sessions
// ============================================================

func TestRecorder_SessionLifecycle(t *testing.T) {
	r := openTemp(t)
	ctx := context.Background()
	clock := time.Unix(1700000000, 0)
	r.now = func() time.Time { return clock }

	id, err := r.StartSession(ctx, "stop_and_hold", "torque_psd")
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	require.NoError(t, err)

	clock = clock.Add(time.Minute)
	require.NoError(t, r.EndSession(ctx, id))

	sessions, err := r.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "stop_and_hold", sessions[0].Name)
	assert.Equal(t, "torque_psd", sessions[0].Calibration)
	require.NotNil(t, sessions[0].EndedAt)
	assert.Equal(t, time.Minute, sessions[0].EndedAt.Sub(sessions[0].StartedAt))

	err = r.EndSession(ctx, "missing")
	assert.True(t, errors.Is(err, ErrUnknownSession))
}

// ============================================================
// Ticks and frames
// ============================================================

func TestRecorder_RecordAndLoad(t *testing.T) {
	r := openTemp(t)
	ctx := context.Background()
	id, err := r.StartSession(ctx, "run", "torque_psd")
	require.NoError(t, err)

	for i := uint64(0); i < 3; i++ {
		require.NoError(t, r.Record(ctx, id, time.Duration(i)*10*time.Millisecond, sampleOutput(i)))
	}

	ticks, err := r.Ticks(ctx, id)
	require.NoError(t, err)
	require.Len(t, ticks, 3)
	assert.Equal(t, uint64(2), ticks[2].Tick)
	assert.Equal(t, 20*time.Millisecond, ticks[2].Now)
	if diff := cmp.Diff(sampleOutput(2).Echo, ticks[2].Echo); diff != "" {
		t.Errorf("echo mismatch (-want +got):\n%s", diff)
	}

	frames, err := r.Frames(ctx, id, "")
	require.NoError(t, err)
	require.Len(t, frames, 6)
	assert.Equal(t, "STEERING_LKAS", frames[0].Name)
	require.NotNil(t, frames[0].Checksum)
	assert.Equal(t, byte(0x5A), *frames[0].Checksum)
	assert.Nil(t, frames[1].Checksum)

	dtc, err := r.Frames(ctx, id, "DTC_CLEAR")
	require.NoError(t, err)
	require.Len(t, dtc, 3)
	assert.Equal(t, uint32(2015), dtc[0].ID)
	assert.Equal(t, []byte{1, 4, 0, 0, 0, 0, 0, 0}, dtc[0].Data)
}

func TestRecorder_DuplicateTickRollsBack(t *testing.T) {
	r := openTemp(t)
	ctx := context.Background()
	id, err := r.StartSession(ctx, "run", "torque_psd")
	require.NoError(t, err)

	require.NoError(t, r.Record(ctx, id, 0, sampleOutput(0)))
	require.Error(t, r.Record(ctx, id, 0, sampleOutput(0)))

	frames, err := r.Frames(ctx, id, "")
	require.NoError(t, err)
	assert.Len(t, frames, 2)
}

func TestRecorder_SessionsAreIsolated(t *testing.T) {
	r := openTemp(t)
	ctx := context.Background()
	a, err := r.StartSession(ctx, "a", "torque_psd")
	require.NoError(t, err)
	b, err := r.StartSession(ctx, "b", "angle_crc8")
	require.NoError(t, err)

	require.NoError(t, r.Record(ctx, a, 0, sampleOutput(0)))

	ticks, err := r.Ticks(ctx, b)
	require.NoError(t, err)
	assert.Empty(t, ticks)
}

// ============================================================
// Summary
// ============================================================

func TestSummarize(t *testing.T) {
	ticks := []TickRecord{
		{Echo: control.ActuationEcho{Steer: 0.5, RateLimited: true, Pump: 0.2, Brake: 0.4, CruiseEngaged: true}},
		{Echo: control.ActuationEcho{Steer: -1, Pump: 0.6, Brake: 1.1, BrakeStatus: brake.StatusPumpReset}},
		{Echo: control.ActuationEcho{Steer: 0.5, Diagnostics: control.DiagInputClamped, DroppedFrames: []string{"A", "B"}}},
		{Echo: control.ActuationEcho{Steer: 0, CruiseEngaged: true}},
	}

	s := Summarize(ticks)
	assert.Equal(t, 4, s.Ticks)
	assert.InDelta(t, 0, s.SteerMean, 1e-12)
	assert.InDelta(t, 0.7071067811865476, s.SteerStdDev, 1e-12)
	assert.Equal(t, 1.0, s.SteerMaxAbs)
	assert.Equal(t, 0.25, s.RateLimited)
	assert.Equal(t, 1.1, s.BrakeMax)
	assert.InDelta(t, 0.2, s.PumpMean, 1e-12)
	assert.Equal(t, 0.6, s.PumpMax)
	assert.Equal(t, 1, s.PumpResetTicks)
	assert.Equal(t, 0.5, s.EngagedFraction)
	assert.Equal(t, 1, s.ClampedTicks)
	assert.Equal(t, 2, s.DroppedFrames)

	var buf bytes.Buffer
	_, err := s.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "dropped frames   2\n")
}

func TestSummarize_Small(t *testing.T) {
	assert.Equal(t, Summary{}, Summarize(nil))

	s := Summarize([]TickRecord{{Echo: control.ActuationEcho{Steer: 0.3}}})
	assert.Equal(t, 0.0, s.SteerStdDev)
	assert.Equal(t, 0.3, s.SteerMaxAbs)
}
