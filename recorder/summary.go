package recorder

import (
	"fmt"
	"io"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"adas-actuation-core/control"
	"adas-actuation-core/control/brake"
)

// Summary aggregates a session's echoes.
type Summary struct {
	Ticks int

	SteerMean   float64
	SteerStdDev float64
	SteerMaxAbs float64
	RateLimited float64 // fraction of ticks

	BrakeMax        float64
	PumpMean        float64
	PumpMax         float64
	PumpResetTicks  int
	EngagedFraction float64

	ClampedTicks  int
	DroppedFrames int
}

// Summarize computes statistics over ticks. An empty slice yields a zero Summary.
func Summarize(ticks []TickRecord) Summary {
	n := len(ticks)
	if n == 0 {
		return Summary{}
	}

	steer := make([]float64, n)
	absSteer := make([]float64, n)
	brakes := make([]float64, n)
	pumps := make([]float64, n)
	s := Summary{Ticks: n}

	var rateLimited, engaged int
	for i, t := range ticks {
		e := t.Echo
		steer[i] = e.Steer
		absSteer[i] = math.Abs(e.Steer)
		brakes[i] = e.Brake
		pumps[i] = e.Pump
		if e.RateLimited {
			rateLimited++
		}
		if e.CruiseEngaged {
			engaged++
		}
		if e.BrakeStatus == brake.StatusPumpReset {
			s.PumpResetTicks++
		}
		if e.Diagnostics.Has(control.DiagInputClamped) {
			s.ClampedTicks++
		}
		s.DroppedFrames += len(e.DroppedFrames)
	}

	s.SteerMean = stat.Mean(steer, nil)
	if n > 1 {
		s.SteerStdDev = stat.StdDev(steer, nil)
	}
	s.SteerMaxAbs = floats.Max(absSteer)
	s.RateLimited = float64(rateLimited) / float64(n)
	s.BrakeMax = floats.Max(brakes)
	s.PumpMean = stat.Mean(pumps, nil)
	s.PumpMax = floats.Max(pumps)
	s.EngagedFraction = float64(engaged) / float64(n)
	return s
}

// WriteTo prints the summary as aligned key/value lines.
func (s Summary) WriteTo(w io.Writer) (int64, error) {
	n, err := fmt.Fprintf(w,
		"ticks            %d\n"+
			"steer mean       %.4f\n"+
			"steer stddev     %.4f\n"+
			"steer max |x|    %.4f\n"+
			"rate limited     %.1f%%\n"+
			"brake max        %.3f\n"+
			"pump mean        %.3f\n"+
			"pump max         %.3f\n"+
			"pump reset ticks %d\n"+
			"cruise engaged   %.1f%%\n"+
			"clamped ticks    %d\n"+
			"dropped frames   %d\n",
		s.Ticks, s.SteerMean, s.SteerStdDev, s.SteerMaxAbs, s.RateLimited*100,
		s.BrakeMax, s.PumpMean, s.PumpMax, s.PumpResetTicks, s.EngagedFraction*100,
		s.ClampedTicks, s.DroppedFrames)
	return int64(n), err
}
