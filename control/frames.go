package control

import (
	"errors"

	"adas-actuation-core/control/checksum"
	"adas-actuation-core/control/steering"
)

const (
	sigCounter  = "COUNTER"
	sigChecksum = "CHECKSUM"
)

// encode builds one frame through the codec and stamps its integrity byte.
// On failure the frame is recorded as dropped and false is returned.
func (c *Controller) encode(tc *tickContext, name string, sig Signals) bool {
	id, data, err := c.codec.Encode(name, sig)
	if err != nil {
		c.drop(tc, name, DiagCodecError, err)
		return false
	}
	dlc, err := c.codec.FrameLength(name)
	if err != nil {
		c.drop(tc, name, DiagCodecError, err)
		return false
	}

	frame := OutboundFrame{Name: name, ID: id, Signals: sig, Data: data}
	spec := c.cal.Checksum(name)
	if spec.Enabled() {
		sum, err := spec.Stamp(id, data, dlc)
		if err != nil {
			c.drop(tc, name, 0, err)
			return false
		}
		sig[sigChecksum] = float64(sum)
		frame.Checksum = &sum
	} else if len(data) != dlc {
		c.drop(tc, name, 0, checksum.ErrLengthMismatch)
		return false
	}

	tc.out.Frames = append(tc.out.Frames, frame)
	c.log.Trace("TX tick=%d %s id=0x%X data=% X", tc.tick, name, id, data)
	return true
}

func (c *Controller) drop(tc *tickContext, name string, diag Diagnostics, err error) {
	tc.out.Echo.Diagnostics |= DiagFrameDropped | diag
	tc.out.Echo.DroppedFrames = append(tc.out.Echo.DroppedFrames, name)
	if errors.Is(err, checksum.ErrLengthMismatch) {
		c.log.Warn("tick %d: dropped %s: length mismatch: %v", tc.tick, name, err)
		return
	}
	c.log.Warn("tick %d: dropped %s: %v", tc.tick, name, err)
}

// emitRaw sends a fixed payload that bypasses the codec.
func (c *Controller) emitRaw(tc *tickContext, name string, id uint32, payload []byte) {
	data := make([]byte, len(payload))
	copy(data, payload)
	tc.out.Frames = append(tc.out.Frames, OutboundFrame{Name: name, ID: id, Data: data})
}

func (c *Controller) emitSteering(tc *tickContext) {
	s := tc.steer
	sig := Signals{
		"STEER_REQ": BoolToFloat(s.request),
		sigCounter:  float64(c.steerCounter.value),
	}

	if c.limiter.Mode() == steering.ModeAngle {
		setMeXE := 0xB
		if tc.in.State.Standstill {
			setMeXE = 0xE
		}
		sig["STEER_REQ_ACTIVE_LOW"] = BoolToFloat(!s.request)
		sig["STEER_ANGLE"] = s.applied * c.cal.SteerAngleScale
		sig["SET_ME_X01"] = BoolToFloat(s.request)
		sig["SET_ME_XE"] = 0
		if s.request {
			sig["SET_ME_XE"] = float64(setMeXE)
		}
	} else {
		sig["STEER_CMD"] = 0
		if s.request {
			sig["STEER_CMD"] = -s.applied
		}
	}

	switch {
	case c.encode(tc, c.cal.Messages.Steering, sig):
		c.steerCounter.advance()
		c.lastSteerSent = s.applied
	case c.limiter.Mode() == steering.ModeTorque:
		// slew the next command from what the rack last received
		c.limiter.Override(c.lastSteerSent)
	}
}

// emitLongitudinal sends the ACC and HUD frames. It reports false when the
// brake frame was due but dropped.
func (c *Controller) emitLongitudinal(tc *tickContext) bool {
	st, des := tc.in.State, tc.in.Desired
	msgs := c.cal.Messages
	enabled := tc.longOn
	sent := false

	if msgs.AccCommand != "" {
		braking := c.lastBrake > 0 || c.lastPump > 0
		accCmd := 0.0
		if enabled {
			accCmd = c.lastDesSpeed * msToKph
		}
		sent = c.encode(tc, msgs.AccCommand, Signals{
			"SET_SPEED":         tc.latch.TargetKph,
			"FOLLOW_DISTANCE":   st.FollowDistance,
			"IS_LEAD":           BoolToFloat(des.LeadVisible),
			"IS_ACCEL":          BoolToFloat(!braking && enabled),
			"IS_DECEL":          BoolToFloat(braking && enabled),
			"SET_ME_1_2":        BoolToFloat(st.CruiseAvailable),
			"SET_0_WHEN_ENGAGE": BoolToFloat(!enabled),
			"SET_1_WHEN_ENGAGE": BoolToFloat(enabled),
			"ACC_CMD":           accCmd,
			sigCounter:          float64(c.longCounter.value),
		}) || sent
	}

	brakeSent := true
	if msgs.Brake != "" {
		pump := ClampFloat(c.lastPump, 0, 1)
		req := c.lastBrakeReq && enabled
		magnitude := 0.0
		if req {
			magnitude = -c.lastBrake
		}
		pumpCmd := 0.0
		if enabled {
			pumpCmd = pump
		}
		aeb := BoolToFloat(!enabled && st.StockAEBRequest)
		brakeSent = c.encode(tc, msgs.Brake, Signals{
			sigCounter:             float64(c.longCounter.value),
			"PUMP_REACTION1":       pumpCmd,
			"BRAKE_REQ":            BoolToFloat(req),
			"MAGNITUDE":            magnitude,
			"SET_ME_1_WHEN_ENGAGE": BoolToFloat(enabled),
			"PUMP_REACTION2":       -pumpCmd,
			"AEB_REQ1":             aeb,
			"AEB_REQ2":             aeb,
			"AEB_REQ3":             aeb,
			"AEB_1019":             aeb,
		})
		sent = brakeSent || sent
	}

	if msgs.HUD != "" {
		sent = c.encode(tc, msgs.HUD, Signals{
			"LKAS_SET":          BoolToFloat(st.CruiseAvailable && tc.latch.LaneKeepLatch),
			"LKAS_ENGAGED":      BoolToFloat(tc.latch.Engaged),
			"LDA_ALERT":         BoolToFloat(tc.stockLD),
			"LDA_OFF":           BoolToFloat(st.StockLKCOff),
			"LANE_RIGHT_DETECT": BoolToFloat(des.RightLaneVisible),
			"LANE_LEFT_DETECT":  BoolToFloat(des.LeftLaneVisible),
			"AEB_ALARM":         BoolToFloat(st.StockFCW),
			"AEB_BRAKE":         BoolToFloat(st.StockAEB),
			"FRONT_DEPART":      BoolToFloat(st.FrontDepart),
			"FCW_DISABLE":       BoolToFloat(st.StockFCWOff),
			sigCounter:          float64(c.longCounter.value),
		}) || sent
	}

	if sent {
		c.longCounter.advance()
	}
	return brakeSent
}

// emitResume presses RES+ so a car without stop-and-go pulls away again.
func (c *Controller) emitResume(tc *tickContext) {
	sig := Signals{
		"RES_PLUS":  1,
		"SET_MINUS": 0,
		sigCounter:  float64(c.buttonCounter.value),
	}
	if c.encode(tc, c.cal.Messages.Buttons, sig) {
		c.buttonCounter.advance()
	}
}
