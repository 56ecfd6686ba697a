package brake

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTiming = Timing{
	PumpResetInterval: 1500 * time.Millisecond,
	PumpResetDuration: 100 * time.Millisecond,
	MinAccelMargin:    0.2,
}

var testPump = PumpLimits{
	Table: PumpTable{
		BrakeMag: []float64{0.01, .32, .46, .61, .76, .90, 1.06, 1.21, 1.35, 1.51, 4.0},
		PumpVals: []float64{0, .1, .2, .3, .4, .5, .6, .7, .8, .9, 1.0},
	},
	RateLimit: 0.1,
	Threshold: 0.01,
}

const longTick = 50 * time.Millisecond

// ============================================================
// Standstill cycle
// ============================================================

func TestHysteresis_Schedule(t *testing.T) {
	h := NewHysteresis(testTiming)

	type change struct {
		at     time.Duration
		status Status
	}
	var changes []change
	prev := h.State().Status

	for i := 0; i <= 80; i++ {
		now := time.Duration(i) * longTick
		h.Update(0.5, true, now)
		if s := h.State().Status; s != prev {
			changes = append(changes, change{now, s})
			prev = s
		}
	}

	require.GreaterOrEqual(t, len(changes), 3)
	assert.Equal(t, change{1500 * time.Millisecond, StatusPumpReset}, changes[0])
	assert.Equal(t, change{1600 * time.Millisecond, StatusBrakeHold}, changes[1])
	assert.Equal(t, change{3100 * time.Millisecond, StatusPumpReset}, changes[2])
}

func TestHysteresis_BrakeLevels(t *testing.T) {
	h := NewHysteresis(testTiming)

	assert.InDelta(t, 0.7, h.Update(0.5, true, 0), 1e-9, "init holds request plus margin")
	assert.InDelta(t, 0.9, h.Update(0.7, true, longTick), 1e-9, "margin tracks request while in init")
	assert.Equal(t, 0.0, h.Update(0.7, true, 1500*time.Millisecond), "pump reset releases")
	assert.InDelta(t, 0.9, h.Update(0.1, true, 1600*time.Millisecond), 1e-9, "hold keeps the captured level")
	assert.InDelta(t, 0.9, h.State().MinStandstillAccel, 1e-9)
}

func TestHysteresis_InactiveResets(t *testing.T) {
	h := NewHysteresis(testTiming)
	h.Update(0.5, true, 0)
	h.Update(0.5, true, 1500*time.Millisecond)
	require.Equal(t, StatusPumpReset, h.State().Status)

	out := h.Update(0.3, false, 2*time.Second)
	assert.Equal(t, 0.3, out, "inactive passes brake through")
	assert.Equal(t, StatusStandstillInit, h.State().Status)
	assert.Equal(t, 2*time.Second, h.State().LastTransition)

	h.Update(0.3, true, 3*time.Second)
	assert.Equal(t, StatusStandstillInit, h.State().Status, "interval restarts from the reset")
	h.Update(0.3, true, 3500*time.Millisecond)
	assert.Equal(t, StatusPumpReset, h.State().Status)
}

func TestStandstillBrake_OneTransitionPerCall(t *testing.T) {
	st := HysteresisState{Status: StatusStandstillInit}
	_, next := StandstillBrake(1, st, 10*time.Second, testTiming)
	assert.Equal(t, StatusPumpReset, next.Status)
	assert.Equal(t, 10*time.Second, next.LastTransition)
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "standstill_init", StatusStandstillInit.String())
	assert.Equal(t, "brake_hold", StatusBrakeHold.String())
	assert.Equal(t, "pump_reset", StatusPumpReset.String())
	assert.Equal(t, "status(9)", Status(9).String())
}

// ============================================================
// Pump shaping
// ============================================================

func TestPSDBrake(t *testing.T) {
	tests := []struct {
		name     string
		brake    float64
		lastPump float64
		pump     float64
		req      bool
	}{
		{"rise is rate limited", 0.5, 0, 0.1, true},
		{"settled", 0.5, 0.3, 0.3, true},
		{"below threshold", 0.005, 0, 0, false},
		{"at threshold", 0.01, 0, 0, true},
		{"exact table entry", 0.32, 0, 0.1, true},
		{"beyond table saturates", 5.0, 0.95, 1.0, true},
		{"fall is rate limited", 0, 0.5, 0.4, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pump, req := PSDBrake(tt.brake, tt.lastPump, testPump)
			assert.InDelta(t, tt.pump, pump, 1e-9)
			assert.Equal(t, tt.req, req)
		})
	}
}

func TestPSDBrake_Idempotent(t *testing.T) {
	for _, last := range []float64{0, 0.15, 0.3, 0.9} {
		p1, r1 := PSDBrake(0.5, last, testPump)
		p2, r2 := PSDBrake(0.5, last, testPump)
		assert.Equal(t, p1, p2)
		assert.Equal(t, r1, r2)
	}
}

func TestPumpShaper_RateBound(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	p := NewPumpShaper(testPump)

	last := 0.0
	for i := 0; i < 2000; i++ {
		pump, _ := p.Shape(rng.Float64() * 2)
		require.LessOrEqual(t, math.Abs(pump-last), testPump.RateLimit+1e-9, "tick %d", i)
		require.GreaterOrEqual(t, pump, -1e-9)
		require.LessOrEqual(t, pump, 1+1e-9)
		last = pump
	}
	assert.Equal(t, last, p.LastPump())
}

func TestPumpShaper_Restore(t *testing.T) {
	p := NewPumpShaper(testPump)
	first, _ := p.Shape(2)
	require.Greater(t, first, 0.0)

	p.Restore(0)
	again, _ := p.Shape(2)
	assert.Equal(t, first, again, "shaping restarts from the restored value")
}

func TestPumpShaper_ConvergesToTable(t *testing.T) {
	p := NewPumpShaper(testPump)
	var pump float64
	for i := 0; i < 10; i++ {
		pump, _ = p.Shape(1.0)
	}
	assert.InDelta(t, 0.6, pump, 1e-9)

	p.Reset()
	assert.Equal(t, 0.0, p.LastPump())
}

func TestPumpTable_Validate(t *testing.T) {
	assert.NoError(t, testPump.Table.Validate())

	tests := []struct {
		name  string
		table PumpTable
	}{
		{"empty", PumpTable{}},
		{"length mismatch", PumpTable{BrakeMag: []float64{1, 2}, PumpVals: []float64{0}}},
		{"not ascending", PumpTable{BrakeMag: []float64{1, 1}, PumpVals: []float64{0, 0.5}}},
		{"pump out of range", PumpTable{BrakeMag: []float64{1}, PumpVals: []float64{1.5}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.table.Validate(), ErrPumpTable)
		})
	}
}

// ============================================================
// Accel conversion
// ============================================================

func TestComputeBrake(t *testing.T) {
	g := Gains{BrakeGain: 1 / 1.4, BrakeMax: 1.56, SpeedBoost: 1.4}

	assert.InDelta(t, 1.0, ComputeBrake(-1.4, false, g), 1e-9)
	assert.Equal(t, 1.56, ComputeBrake(-3, false, g))
	assert.Equal(t, 0.0, ComputeBrake(-1, true, g))
	assert.Equal(t, 0.0, ComputeBrake(0.5, false, g))
	assert.Equal(t, 0.0, ComputeBrake(0, false, g))
}

func TestDesiredSpeed(t *testing.T) {
	g := Gains{SpeedBoost: 1.4}
	assert.InDelta(t, 11.4, DesiredSpeed(10, 1, g), 1e-9)
	assert.Equal(t, 0.0, DesiredSpeed(1, -2, g))
}
