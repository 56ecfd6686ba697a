package cruise

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLimits = Limits{
	MinKph:      30,
	MaxKph:      120,
	TapStepKph:  1,
	HoldStepKph: 5,
	HoldStep:    600 * time.Millisecond,
	TapWindow:   time.Second,
}

const tick = 10 * time.Millisecond

// driver steps a Latch through time at the control rate.
type driver struct {
	t     *testing.T
	latch *Latch
	now   time.Duration
	base  Inputs
}

func newDriver(t *testing.T) *driver {
	return &driver{
		t:     t,
		latch: NewLatch(testLimits),
		base:  Inputs{CruiseAvailable: true, ClusterSpeedKph: 50},
	}
}

func (d *driver) step(b Buttons) Result {
	in := d.base
	in.Now = d.now
	in.Buttons = b
	d.now += tick
	return d.latch.Update(in)
}

// press holds b for the given duration then releases it.
func (d *driver) press(b Buttons, hold time.Duration) Result {
	for held := time.Duration(0); held <= hold; held += tick {
		d.step(b)
	}
	return d.step(Buttons{})
}

func (d *driver) engageAt(kph float64) {
	d.base.ClusterSpeedKph = kph
	res := d.press(Buttons{Set: true}, 50*time.Millisecond)
	require.True(d.t, res.State.Engaged)
}

// ============================================================
// Engage
// ============================================================

func TestLatch_SetCapturesClusterSpeed(t *testing.T) {
	d := newDriver(t)

	res := d.step(Buttons{Set: true})
	assert.False(t, res.State.Engaged, "engages on release, not press")

	res = d.step(Buttons{})
	assert.True(t, res.State.Engaged)
	assert.Equal(t, TransitionEngaged, res.Transition)
	assert.Equal(t, 50.0, res.State.TargetKph)
}

func TestLatch_SetBelowFloor(t *testing.T) {
	d := newDriver(t)
	d.engageAt(12)
	assert.Equal(t, 30.0, d.latch.State().TargetKph)
}

func TestLatch_ResumeKeepsTarget(t *testing.T) {
	d := newDriver(t)
	d.engageAt(60)

	res := d.press(Buttons{Cancel: true}, 0)
	require.False(t, res.State.Engaged)

	d.base.ClusterSpeedKph = 80
	res = d.press(Buttons{Resume: true}, 50*time.Millisecond)
	assert.True(t, res.State.Engaged)
	assert.Equal(t, 60.0, res.State.TargetKph, "resume does not step or recapture")
}

func TestLatch_DoorOpenOnEngageTickWins(t *testing.T) {
	d := newDriver(t)
	d.step(Buttons{Set: true})

	d.base.DoorOpen = true
	res := d.step(Buttons{})
	assert.False(t, res.State.Engaged)
	assert.Equal(t, TransitionNone, res.Transition)
	assert.Equal(t, InterlockDoorOpen, res.Interlock)
}

// ============================================================
// Interlocks
// ============================================================

func TestLatch_Interlocks(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Inputs)
		interlock Interlock
	}{
		{"door", func(in *Inputs) { in.DoorOpen = true }, InterlockDoorOpen},
		{"seatbelt", func(in *Inputs) { in.SeatbeltUnlatched = true }, InterlockSeatbelt},
		{"brake hold", func(in *Inputs) { in.BrakeHold = true }, InterlockBrakeHold},
		{"brake pressed", func(in *Inputs) { in.BrakePressed = true }, InterlockBrakePressed},
		{"unavailable", func(in *Inputs) { in.CruiseAvailable = false }, InterlockUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newDriver(t)
			d.engageAt(50)

			tt.mutate(&d.base)
			res := d.step(Buttons{})
			assert.False(t, res.State.Engaged)
			assert.Equal(t, TransitionDisengaged, res.Transition)
			assert.Equal(t, tt.interlock, res.Interlock)

			res = d.press(Buttons{Resume: true}, 50*time.Millisecond)
			assert.False(t, res.State.Engaged, "interlock blocks engaging")
		})
	}
}

func TestLatch_BrakeWithSetSignalKeepsEngaged(t *testing.T) {
	d := newDriver(t)
	d.engageAt(50)

	d.base.BrakePressed = true
	d.base.SetSignal = true
	res := d.step(Buttons{})
	assert.True(t, res.State.Engaged)
	assert.Equal(t, InterlockNone, res.Interlock)
}

func TestLatch_GasDoesNotDisengage(t *testing.T) {
	d := newDriver(t)
	d.engageAt(50)
	assert.True(t, d.step(Buttons{}).State.Engaged)
}

func TestLatch_Cancel(t *testing.T) {
	d := newDriver(t)
	d.engageAt(50)

	res := d.step(Buttons{Cancel: true})
	assert.False(t, res.State.Engaged)
	assert.True(t, res.Cancelled)
	assert.Equal(t, TransitionDisengaged, res.Transition)

	res = d.step(Buttons{Cancel: true})
	assert.False(t, res.Cancelled)
	assert.Equal(t, TransitionNone, res.Transition)
}

// ============================================================
// Target adjustment
// ============================================================

func TestLatch_Taps(t *testing.T) {
	d := newDriver(t)
	d.engageAt(50)

	res := d.press(Buttons{Resume: true}, 200*time.Millisecond)
	assert.Equal(t, 51.0, res.State.TargetKph)

	res = d.press(Buttons{Set: true}, 200*time.Millisecond)
	res = d.press(Buttons{Set: true}, 200*time.Millisecond)
	assert.Equal(t, 49.0, res.State.TargetKph)
}

func TestLatch_HoldStepsUp(t *testing.T) {
	d := newDriver(t)
	d.engageAt(52)

	var targets []float64
	last := d.latch.State().TargetKph
	for held := time.Duration(0); held <= 1800*time.Millisecond; held += tick {
		res := d.step(Buttons{Resume: true})
		if res.State.TargetKph != last {
			last = res.State.TargetKph
			targets = append(targets, last)
		}
	}
	res := d.step(Buttons{})

	assert.Equal(t, []float64{55, 60, 65}, targets)
	assert.Equal(t, 65.0, res.State.TargetKph, "release after a hold is not a tap")
}

func TestLatch_HoldStepsDown(t *testing.T) {
	d := newDriver(t)
	d.engageAt(52)

	res := d.press(Buttons{Set: true}, 1200*time.Millisecond)
	assert.Equal(t, 45.0, res.State.TargetKph)
	assert.True(t, res.State.Engaged)
}

func TestLatch_TargetClamped(t *testing.T) {
	d := newDriver(t)
	d.engageAt(118)

	res := d.press(Buttons{Resume: true}, 1300*time.Millisecond)
	assert.Equal(t, 120.0, res.State.TargetKph)

	d2 := newDriver(t)
	d2.engageAt(31)
	res = d2.press(Buttons{Set: true}, 1300*time.Millisecond)
	assert.Equal(t, 30.0, res.State.TargetKph)
}

func TestLatch_NoAdjustWhileDisengaged(t *testing.T) {
	d := newDriver(t)
	d.engageAt(50)
	d.press(Buttons{Cancel: true}, 0)

	d.base.DoorOpen = true
	res := d.press(Buttons{Resume: true}, 1300*time.Millisecond)
	assert.False(t, res.State.Engaged)
	assert.Equal(t, 50.0, res.State.TargetKph)
}

func TestLatch_Idempotent(t *testing.T) {
	d := newDriver(t)
	d.engageAt(50)

	before := d.latch.State()
	for i := 0; i < 100; i++ {
		res := d.step(Buttons{})
		require.Equal(t, TransitionNone, res.Transition)
	}
	assert.Equal(t, before, d.latch.State())
}

// ============================================================
// Lane keep toggle
// ============================================================

func TestLatch_LaneKeepToggle(t *testing.T) {
	d := newDriver(t)
	assert.True(t, d.latch.State().LaneKeepLatch)

	res := d.step(Buttons{LaneKeep: true})
	assert.True(t, res.State.LaneKeepLatch, "toggles on release")

	res = d.step(Buttons{})
	assert.False(t, res.State.LaneKeepLatch)

	res = d.press(Buttons{LaneKeep: true}, 500*time.Millisecond)
	assert.True(t, res.State.LaneKeepLatch)
}

func TestStepHelpers(t *testing.T) {
	assert.Equal(t, 55.0, stepUp(50, 5))
	assert.Equal(t, 55.0, stepUp(52, 5))
	assert.Equal(t, 45.0, stepDown(50, 5))
	assert.Equal(t, 50.0, stepDown(52, 5))
	assert.Equal(t, 45.0, stepDown(47.3, 5))
}
