package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"adas-actuation-core/control"
	"adas-actuation-core/control/steering"
	"adas-actuation-core/recorder"
	"adas-actuation-core/utils"
)

// Sink consumes every tick's output.
type Sink interface {
	Emit(ctx context.Context, now time.Duration, out control.TickOutput) error
	Close() error
}

// canSink transmits frames on a CAN transport.
type canSink struct {
	w utils.CANWriter
}

func (s canSink) Emit(ctx context.Context, _ time.Duration, out control.TickOutput) error {
	for _, f := range out.Frames {
		if err := s.w.WriteFrame(ctx, f.CANFrame()); err != nil {
			return fmt.Errorf("tick %d: %w", out.Tick, err)
		}
	}
	return nil
}

func (s canSink) Close() error { return s.w.Close() }

// recorderSink stores ticks in a recorder session.
type recorderSink struct {
	rec     *recorder.Recorder
	session string
}

func newRecorderSink(ctx context.Context, rec *recorder.Recorder, name, cal string) (*recorderSink, error) {
	id, err := rec.StartSession(ctx, name, cal)
	if err != nil {
		return nil, err
	}
	return &recorderSink{rec: rec, session: id}, nil
}

func (s *recorderSink) Emit(ctx context.Context, now time.Duration, out control.TickOutput) error {
	return s.rec.Record(ctx, s.session, now, out)
}

func (s *recorderSink) Close() error {
	if err := s.rec.EndSession(context.Background(), s.session); err != nil {
		_ = s.rec.Close()
		return err
	}
	return s.rec.Close()
}

type RunnerConfig struct {
	Realtime bool
}

// RunStats counts what a run produced.
type RunStats struct {
	Ticks   uint64
	Frames  uint64
	Dropped uint64
	Clamped uint64
}

// SensorFeedback contains decoded vehicle data from CAN RX
type SensorFeedback struct {
	VelocityMPS float64
	Timestamp   time.Time
}

// Runner drives a Controller through a scenario at the scenario's control
// period against the kinematic plant.
type Runner struct {
	cfg   RunnerConfig
	log   *utils.Logger
	ctrl  *control.Controller
	scen  Scenario
	plant *Plant
	pid   *PIDController
	sinks []Sink

	reader   utils.CANReader
	cmap     *utils.CANMap
	feedback chan SensorFeedback
}

func NewRunner(cfg RunnerConfig, ctrl *control.Controller, scen Scenario, log *utils.Logger, sinks ...Sink) *Runner {
	if log == nil {
		log = utils.Discard()
	}
	angle := ctrl.Calibration().Mode() == steering.ModeAngle
	r := &Runner{
		cfg:   cfg,
		log:   log,
		ctrl:  ctrl,
		scen:  scen,
		plant: NewPlant(scen.Vehicle, angle),
		sinks: sinks,
	}

	if scen.Meta.ControlMode == modeVelocityPID && scen.PIDConfig != nil {
		r.pid = NewPIDController(*scen.PIDConfig)
		log.Info("PID controller initialized: target=%.2f m/s, Kp=%.2f, Ki=%.2f, Kd=%.2f",
			scen.PIDConfig.TargetVelocityMPS, scen.PIDConfig.Kp, scen.PIDConfig.Ki, scen.PIDConfig.Kd)
	}
	return r
}

// WithFeedback makes the runner take vehicle speed from VEHICLE_STATE_1
// frames read off reader instead of integrating it.
func (r *Runner) WithFeedback(reader utils.CANReader, cmap *utils.CANMap) *Runner {
	r.reader = reader
	r.cmap = cmap
	return r
}

func (r *Runner) Close() error {
	var errs []error
	for _, s := range r.sinks {
		errs = append(errs, s.Close())
	}
	if r.reader != nil {
		errs = append(errs, r.reader.Close())
	}
	return errors.Join(errs...)
}

func (r *Runner) Run(ctx context.Context) (RunStats, error) {
	period := r.scen.Timing.Period()
	endAfter := r.scen.Timing.Duration()
	realtime := r.cfg.Realtime || r.scen.Timing.RealTimeMode
	dt := period.Seconds()

	r.log.Info("Starting run: scenario=%s calibration=%s period=%s duration=%s mode=%s realtime=%v",
		r.scen.Meta.Name, r.ctrl.Calibration().Name, period, endAfter, r.scen.Meta.ControlMode, realtime)

	var ticks <-chan time.Time
	if realtime {
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		ticks = ticker.C
	}

	if r.reader != nil {
		rxCtx, stopRx := context.WithCancel(ctx)
		var wg sync.WaitGroup
		r.feedback = make(chan SensorFeedback, 100)
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.receiveLoop(rxCtx, r.feedback)
		}()
		defer func() {
			stopRx()
			wg.Wait()
		}()
	}

	var stats RunStats
	lastRx := time.Now()
	for now := time.Duration(0); now <= endAfter; now += period {
		if ticks != nil {
			select {
			case <-ctx.Done():
				r.log.Warn("Context canceled; stopping run")
				return stats, ctx.Err()
			case <-ticks:
			}
		} else if err := ctx.Err(); err != nil {
			return stats, err
		}

		if r.feedback != nil {
			r.drainFeedback(&lastRx)
			if age := time.Since(lastRx); age > 500*time.Millisecond && r.pid != nil {
				r.log.Warn("No speed feedback for %.1f ms - PID may be unreliable", age.Seconds()*1000)
			}
		}

		in := r.input(now, dt)
		out := r.ctrl.Tick(in)

		stats.Ticks++
		stats.Frames += uint64(len(out.Frames))
		stats.Dropped += uint64(len(out.Echo.DroppedFrames))
		if out.Echo.Diagnostics.Has(control.DiagInputClamped) {
			stats.Clamped++
		}

		for _, s := range r.sinks {
			if err := s.Emit(ctx, now, out); err != nil {
				r.log.Critical("Sink failed at t=%s: %v", now, err)
				return stats, err
			}
		}

		if r.feedback == nil {
			r.plant.Step(dt, deliveredAccel(in.Desired, out.Echo, r.plant.SpeedMPS), out.Echo)
		}

		if out.Tick%100 == 0 {
			r.log.Debug("t=%s v=%.2f steer=%.3f brake=%.3f pump=%.2f status=%s cruise=%v target=%.0f",
				now, r.plant.SpeedMPS, out.Echo.Steer, out.Echo.Brake, out.Echo.Pump,
				out.Echo.BrakeStatus, out.Echo.CruiseEngaged, out.Echo.CruiseTargetKph)
		}
	}

	r.log.Info("Completed run. ticks=%d frames=%d dropped=%d clamped=%d",
		stats.Ticks, stats.Frames, stats.Dropped, stats.Clamped)
	return stats, nil
}

// input builds the tick's input from the scenario and the plant.
func (r *Runner) input(now time.Duration, dt float64) control.TickInput {
	t := now.Seconds()
	plan := EvalPlanner(&r.scen, t)

	var st control.VehicleState
	r.plant.State(&st)
	ApplyEvents(&r.scen, t, &st)

	des := control.DesiredActuation{
		LatActive:     plan.LatActive,
		LongActive:    plan.LongActive,
		SteerTorque:   plan.SteerTorque,
		SteerAngleDeg: plan.SteerAngleDeg,
		Accel:         plan.AccelMPS2,
		LeadVisible:   plan.LeadVisible,
	}

	if r.pid != nil {
		r.pid.SetTargetVelocity(EvalTarget(&r.scen, t))
		des.Accel = r.pid.Update(r.plant.SpeedMPS, dt)
		des.SpeedMS = EvalTarget(&r.scen, t)
		if r.ctrl.Ticks()%100 == 0 {
			diag := r.pid.GetDiagnostics()
			r.log.Debug("PID: v=%.2f err=%.3f accel=%.2f P=%.2f I=%.2f",
				r.plant.SpeedMPS, diag.Error, des.Accel, diag.P, diag.I)
		}
	}

	return control.TickInput{Now: now, State: st, Desired: des}
}

func (r *Runner) drainFeedback(lastRx *time.Time) {
	for {
		select {
		case fb := <-r.feedback:
			r.plant.SpeedMPS = fb.VelocityMPS
			*lastRx = fb.Timestamp
			r.log.Trace("RX velocity=%.3f m/s", fb.VelocityMPS)
		default:
			return
		}
	}
}

const (
	feedbackFrame  = "VEHICLE_STATE_1"
	feedbackSignal = "VEHICLE_SPEED"
)

// receiveLoop decodes speed feedback frames until ctx is done.
func (r *Runner) receiveLoop(ctx context.Context, feedback chan<- SensorFeedback) {
	r.log.Debug("RX loop started")
	defer r.log.Debug("RX loop stopped")

	fd, err := r.cmap.FrameByName(feedbackFrame)
	if err != nil {
		r.log.Error("RX disabled: %v", err)
		return
	}

	for {
		frame, err := r.reader.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			r.log.Error("RX stopped: %v", err)
			return
		}
		if frame.ID != fd.ID {
			continue
		}

		values, err := r.cmap.DecodeEinrideFrame(frame)
		if err != nil {
			r.log.Warn("RX decode 0x%X: %v", frame.ID, err)
			continue
		}
		select {
		case feedback <- SensorFeedback{VelocityMPS: values[feedbackSignal], Timestamp: time.Now()}:
		default:
		}
		r.log.Trace("RX id=0x%X len=%d data=% X", frame.ID, frame.Length, frame.Data[:frame.Length])
	}
}
