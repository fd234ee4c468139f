package axis

import (
	"sledctl/core"
	"sledctl/internal/pid"
)

// Axis is a complete position-controlled chain axis: a position PID whose
// setpoint/measurement are in motor revolutions (millimeters of chain
// divided by mmPerRevolution), driving a
// Gearbox's RPM setpoint in turn. Direction is Reverse because paying out
// chain (increasing length) corresponds to the motor turning in the
// negative encoder direction in this rigging.
type Axis struct {
	Gearbox *Gearbox

	controller *pid.Controller

	pidInput, pidOutput, pidSetpoint float64
	kp, ki, kd, propWeight           *float64

	mmPerRevolution float64
	encoderSteps    float64

	timeLastMoved  uint32
	detachTimeUs   uint32

	name byte
}

// NewAxis wires a Gearbox into a position-controlled Axis. mmPerRevolution
// converts motor shaft revolutions to mm of chain; encoderSteps is the
// encoder's steps-per-revolution (shared with the Gearbox's RPM scaling).
func NewAxis(gearbox *Gearbox, mmPerRevolution, encoderSteps float64, loopIntervalUs, detachTimeUs uint32) *Axis {
	a := &Axis{
		Gearbox:         gearbox,
		mmPerRevolution: mmPerRevolution,
		encoderSteps:    encoderSteps,
		detachTimeUs:    detachTimeUs,
	}
	zero, one := new(float64), new(float64)
	*one = 1.0
	a.kp, a.ki, a.kd, a.propWeight = new(float64), new(float64), zero, one

	a.controller = pid.New(&a.pidInput, &a.pidOutput, &a.pidSetpoint, a.kp, a.ki, a.kd, a.propWeight, pid.Reverse)
	a.controller.SetOutputLimits(-20, 20) // RPM commanded to the velocity loop
	a.controller.SetSampleTime(float64(loopIntervalUs) / 1000)
	a.controller.SetMode(pid.Automatic)
	return a
}

// SetName tags the axis for diagnostics (e.g. "L", "R", "Z").
func (a *Axis) SetName(n byte) {
	a.name = n
	a.Gearbox.SetName(n)
}

// Name returns the axis's diagnostic tag.
func (a *Axis) Name() byte { return a.name }

// SetPIDValues retunes the position PID in place.
func (a *Axis) SetPIDValues(kp, ki, kd, propWeight *float64) {
	a.kp, a.ki, a.kd, a.propWeight = kp, ki, kd, propWeight
	a.controller.SetTunings(kp, ki, kd, propWeight)
}

// Read returns the current position in millimeters of chain paid out.
func (a *Axis) Read() float64 {
	return (float64(a.Gearbox.Encoder.Read()) / a.encoderSteps) * a.mmPerRevolution
}

// Write commands a new target position in millimeters and marks the axis
// as having just moved, for idle-detach timing.
func (a *Axis) Write(targetPosition float64) {
	a.pidSetpoint = targetPosition / a.mmPerRevolution
	a.timeLastMoved = core.GetTime()
}

// Setpoint returns the current target position in millimeters.
func (a *Axis) Setpoint() float64 {
	return a.pidSetpoint * a.mmPerRevolution
}

// Error returns the position PID's current tracking error in
// millimeters (setpoint minus measured position), matching Axis.cpp's
// error() used by the host report encoder's position-error watchdog.
func (a *Axis) Error() float64 {
	return a.Setpoint() - a.Read()
}

// EndMove snaps the setpoint directly to a final target without going
// through the planner's feed-rate interpolation; used to land exactly on
// the commanded endpoint once a move's last tick point has been issued.
func (a *Axis) EndMove(finalTarget float64) {
	a.pidSetpoint = finalTarget / a.mmPerRevolution
}

// Stop freezes the axis in place by setting the setpoint to the current
// read position, cancelling any in-flight motion without a hard brake.
func (a *Axis) Stop() {
	a.pidSetpoint = a.Read() / a.mmPerRevolution
}

// ComputePID runs the position loop: if the position PID produces a new
// velocity command, it is written to the Gearbox as an RPM setpoint; the
// Gearbox's own velocity PID then always runs, every tick, regardless of
// whether the position loop updated it this cycle.
func (a *Axis) ComputePID() {
	a.pidInput = a.Read() / a.mmPerRevolution
	if a.controller.Compute() {
		a.Gearbox.Write(a.pidOutput)
	}
	a.Gearbox.ComputePID()
}

// DetachIfIdle detaches the motor once no move has been commanded for
// longer than the configured idle timeout, letting the chain go slack
// rather than holding position indefinitely against a stalled load.
func (a *Axis) DetachIfIdle() {
	if core.GetTime()-a.timeLastMoved > a.detachTimeUs {
		a.Gearbox.Motor.Detach()
	}
}

// Attach re-enables the motor and resets the idle-detach timer, as if a
// move had just been commanded.
func (a *Axis) Attach() {
	a.Gearbox.Motor.Attach()
	a.timeLastMoved = core.GetTime()
}

// Test commands a small fixed motion directly to the motor (bypassing the
// PID) and reports whether the encoder observed the shaft actually turn,
// used by the B04 axis self-test command.
func (a *Axis) Test() bool {
	before := a.Gearbox.Encoder.Read()
	_ = a.Gearbox.Motor.DirectWrite(150)
	after := a.Gearbox.Encoder.Read()
	_ = a.Gearbox.Motor.DirectWrite(0)

	const minObservedSteps = 2
	delta := after - before
	if delta < 0 {
		delta = -delta
	}
	return delta >= minObservedSteps
}
