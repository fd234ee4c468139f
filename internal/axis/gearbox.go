// Package axis composes an encoder and an H-bridge motor into a velocity-
// controlled gearmotor (C4), and wraps that with a position PID to form a
// complete axis (C5): mm setpoint in, RPM commanded to the velocity loop,
// PWM commanded to the bridge.
package axis

import (
	"sledctl/core"
	"sledctl/internal/encoder"
	"sledctl/internal/motor"
	"sledctl/internal/pid"
)

// Gearbox is the velocity-controlled composite of an encoder and a motor:
// the RPM estimator plus the velocity PID that imitates a continuous-
// rotation servo's speed interface over a plain gear motor.
type Gearbox struct {
	Encoder *encoder.Reader
	Motor   *motor.Driver

	controller *pid.Controller

	currentSpeed, pidOutput, targetSpeed float64
	kp, ki, kd, propWeight               *float64

	encoderStepsToRPMScale float64

	lastPosition   float64
	lastTimeStamp  uint32
	lastDistMoved  float64
	rpm            float64

	name byte
}

// NewGearbox wires the encoder/motor pair and the velocity PID. Output
// limits default to [-255,255] and sample time to loopIntervalUs/1000 ms,
// matching the original's millisecond-scaled SampleTime.
func NewGearbox(enc *encoder.Reader, m *motor.Driver, loopIntervalUs uint32, encoderStepsPerRev float64) *Gearbox {
	g := &Gearbox{
		Encoder: enc,
		Motor:   m,
	}
	zero, one := new(float64), new(float64)
	*one = 1.0
	g.kp, g.ki, g.kd, g.propWeight = new(float64), new(float64), zero, one

	g.controller = pid.New(&g.currentSpeed, &g.pidOutput, &g.targetSpeed, g.kp, g.ki, g.kd, g.propWeight, pid.Direct)
	g.controller.SetMode(pid.Automatic)
	g.controller.SetOutputLimits(-255, 255)
	g.controller.SetSampleTime(float64(loopIntervalUs) / 1000)
	g.SetEncoderResolution(encoderStepsPerRev)
	return g
}

// Write commands a target speed in RPM.
func (g *Gearbox) Write(speed float64) {
	g.targetSpeed = speed
}

// ComputePID estimates current RPM, runs the velocity PID, and writes the
// result to the motor as an additive PWM delta (the velocity PID is an
// outer integrating stage on top of whatever PWM is already commanded;
// this is intentional, not a bug — see the project's design notes).
func (g *Gearbox) ComputePID() {
	g.currentSpeed = g.computeSpeed()
	g.controller.Compute()
	_ = g.Motor.AdditiveWrite(int16(g.pidOutput))
}

// SetPIDValues retunes the velocity PID in place.
func (g *Gearbox) SetPIDValues(kp, ki, kd, propWeight *float64) {
	g.kp, g.ki, g.kd, g.propWeight = kp, ki, kd, propWeight
	g.controller.SetTunings(kp, ki, kd, propWeight)
}

// SetPIDAggressiveness scales Kp by a factor to compensate for a load
// change, forcing pOn back to pure P-on-error (propWeight=1).
func (g *Gearbox) SetPIDAggressiveness(aggressiveness float64) {
	adjusted := aggressiveness * (*g.kp)
	one := 1.0
	g.controller.SetTunings(&adjusted, g.ki, g.kd, &one)
}

// SetEncoderResolution changes the steps-per-revolution used to scale raw
// encoder delta into RPM.
func (g *Gearbox) SetEncoderResolution(stepsPerRev float64) {
	// 6e7 microseconds per minute divided by steps-per-revolution.
	g.encoderStepsToRPMScale = 60000000.0 / stepsPerRev
}

// CachedSpeed returns the last RPM estimate without recomputing it.
func (g *Gearbox) CachedSpeed() float64 { return g.rpm }

// computeSpeed estimates RPM since the previous call. It must only be
// called from the tick (via ComputePID); calling it elsewhere measures
// distance over an inconsistent time base.
func (g *Gearbox) computeSpeed() float64 {
	currentPosition := float64(g.Encoder.Read())
	currentMicros := core.GetTime()

	distMoved := currentPosition - g.lastPosition
	if distMoved > 3 || distMoved < -3 {
		// Dampen quantization noise: if the delta differs from the
		// previous delta by a full step or more, nudge it half a step
		// back toward the previous delta.
		saveDistMoved := distMoved
		if distMoved-g.lastDistMoved <= -1 {
			distMoved += 0.5
		} else if distMoved-g.lastDistMoved >= 1 {
			distMoved -= 0.5
		}
		g.lastDistMoved = saveDistMoved

		timeElapsed := currentMicros - g.lastTimeStamp
		g.rpm = (g.encoderStepsToRPMScale * distMoved) / float64(timeElapsed)
	} else {
		// Too little motion to trust distMoved's timing: fall back to the
		// interval between the two most recent edges, or the time since
		// the last edge if that has grown longer, so RPM can still
		// approach zero smoothly while the shaft is nearly still.
		elapsedTime := g.Encoder.ElapsedTime()
		sinceLastEdge := currentMicros - g.Encoder.LastStepTime()
		if sinceLastEdge > elapsedTime {
			elapsedTime = sinceLastEdge
		}

		g.rpm = 0
		if elapsedTime != 0 {
			g.rpm = g.encoderStepsToRPMScale / float64(elapsedTime)
		}
		if distMoved < 0 {
			g.rpm = -g.rpm
		}
	}
	g.rpm = -g.rpm

	g.lastTimeStamp = currentMicros
	g.lastPosition = currentPosition
	return g.rpm
}

// SetName tags the gearbox for diagnostics (e.g. "L", "R", "Z").
func (g *Gearbox) SetName(n byte) { g.name = n }

// Name returns the gearbox's diagnostic tag.
func (g *Gearbox) Name() byte { return g.name }
