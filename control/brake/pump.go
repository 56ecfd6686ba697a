package brake

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var ErrPumpTable = errors.New("brake: invalid pump table")

// PumpTable maps brake magnitude to pump duty. BrakeMag must be strictly
// ascending and the same length as PumpVals.
type PumpTable struct {
	BrakeMag []float64 `json:"brake_mag"`
	PumpVals []float64 `json:"pump_vals"`
}

func (t PumpTable) Validate() error {
	if len(t.BrakeMag) == 0 {
		return fmt.Errorf("%w: empty", ErrPumpTable)
	}
	if len(t.BrakeMag) != len(t.PumpVals) {
		return fmt.Errorf("%w: %d magnitudes for %d pump values", ErrPumpTable, len(t.BrakeMag), len(t.PumpVals))
	}
	for i := 1; i < len(t.BrakeMag); i++ {
		if t.BrakeMag[i] <= t.BrakeMag[i-1] {
			return fmt.Errorf("%w: brake_mag not ascending at index %d", ErrPumpTable, i)
		}
	}
	for i, v := range t.PumpVals {
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: pump value %v at index %d outside [0,1]", ErrPumpTable, v, i)
		}
	}
	return nil
}

// Lookup returns the pump value of the first magnitude >= brake. Requests
// beyond the table saturate at the last entry.
func (t PumpTable) Lookup(brake float64) float64 {
	i := sort.SearchFloat64s(t.BrakeMag, brake)
	if i >= len(t.PumpVals) {
		i = len(t.PumpVals) - 1
	}
	return t.PumpVals[i]
}

// PumpLimits configures PSDBrake.
type PumpLimits struct {
	Table     PumpTable
	RateLimit float64 // max pump change per longitudinal tick
	Threshold float64 // brake request asserted at or above this magnitude
}

// PSDBrake maps a brake magnitude to a pump value no further than RateLimit
// from lastPump, and reports whether the brake request bit should be set.
func PSDBrake(brake, lastPump float64, l PumpLimits) (float64, bool) {
	pump := l.Table.Lookup(brake)
	if diff := pump - lastPump; math.Abs(diff) > l.RateLimit {
		pump = lastPump + math.Copysign(l.RateLimit, diff)
	}
	return pump, brake >= l.Threshold
}

// PumpShaper remembers the last commanded pump value.
type PumpShaper struct {
	limits   PumpLimits
	lastPump float64
}

func NewPumpShaper(l PumpLimits) *PumpShaper {
	return &PumpShaper{limits: l}
}

// Shape runs PSDBrake against the remembered pump value and stores the result.
func (p *PumpShaper) Shape(brake float64) (float64, bool) {
	pump, req := PSDBrake(brake, p.lastPump, p.limits)
	p.lastPump = pump
	return pump, req
}

func (p *PumpShaper) LastPump() float64 { return p.lastPump }

// Restore puts back a previously commanded pump value, for when the shaped
// value never reached the bus.
func (p *PumpShaper) Restore(pump float64) { p.lastPump = pump }

func (p *PumpShaper) Reset() { p.lastPump = 0 }
