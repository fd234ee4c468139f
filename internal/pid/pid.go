// Package pid implements a discrete PID controller with proportional-on-
// measurement blending and bumpless manual/auto re-arm, evaluated once per
// supervisor tick rather than against a wall clock.
package pid

// Direction selects whether gains act directly or are negated internally,
// matching controllers wired the opposite way round mechanically.
type Direction int

const (
	Direct Direction = iota
	Reverse
)

// Mode selects whether Compute updates the output at all.
type Mode int

const (
	Manual Mode = iota
	Automatic
)

// Controller is a generic PID evaluated once per tick. Input, output and
// setpoint are held by pointer so the owner's storage is read and written
// in place; gains are read by pointer only at SetTunings time (a settings
// component can hand the controller a fresh pointer whenever a $-command
// changes a gain) and cached internally, scaled for the current sample
// time, exactly as the per-tick math needs them.
type Controller struct {
	input, output, setpoint *float64

	kp, ki, kd float64 // internal, sample-time-scaled, direction-signed
	dispKp     float64 // unscaled, undirected gain for reporting
	dispKi     float64
	dispKd     float64

	outMin, outMax float64
	outputSum      float64
	lastInput      float64

	pOnE, pOnM     bool
	pOnEKp, pOnMKp float64

	sampleTimeMs float64
	direction    Direction
	mode         Mode
}

// New wires a controller to its shared input/output/setpoint cells and
// seeds gains from kp/ki/kd/pOn. Output defaults to [0,255] and sample
// time to 100ms, matching the firmware's defaults prior to
// SetOutputLimits/SetSampleTime.
func New(input, output, setpoint, kp, ki, kd, pOn *float64, direction Direction) *Controller {
	c := &Controller{
		input: input, output: output, setpoint: setpoint,
		outMin: 0, outMax: 255,
		sampleTimeMs: 100,
		direction:    direction,
		mode:         Manual,
	}
	c.SetTunings(kp, ki, kd, pOn)
	return c
}

// Compute evaluates one PID step and reports whether output was updated
// (false when the controller is in Manual mode). It does not check wall
// time; the caller (the tick) is the sample clock.
func (c *Controller) Compute() bool {
	if c.mode == Manual {
		return false
	}

	input := *c.input
	errVal := *c.setpoint - input
	dInput := input - c.lastInput

	c.outputSum += c.ki * errVal
	if c.pOnM {
		c.outputSum -= c.pOnMKp * dInput
	}
	c.outputSum = clamp(c.outputSum, c.outMin, c.outMax)

	var out float64
	if c.pOnE {
		out = c.pOnEKp * errVal
	}
	out += c.outputSum - c.kd*dInput
	out = clamp(out, c.outMin, c.outMax)

	*c.output = out
	c.lastInput = input
	return true
}

func clamp(v, lo, hi float64) float64 {
	if v > hi {
		return hi
	}
	if v < lo {
		return lo
	}
	return v
}

// SetTunings updates gains and the proportional-on-measurement split.
// pOn in [0,1]: 1 is pure P-on-error, 0 is pure P-on-measurement (which
// avoids derivative-kick on setpoint changes), values between blend both.
// Gains are negated internally when direction is Reverse. kp/ki/kd/pOn are
// read once, by pointer, at call time — a settings component can hand in
// a fresh cell each time a $-command retunes the axis.
func (c *Controller) SetTunings(kp, ki, kd, pOn *float64) {
	if *kp < 0 || *ki < 0 || *kd < 0 || *pOn < 0 || *pOn > 1 {
		return
	}

	c.pOnE = *pOn > 0
	c.pOnM = *pOn < 1

	c.dispKp, c.dispKi, c.dispKd = *kp, *ki, *kd

	sampleTimeSec := c.sampleTimeMs / 1000
	scaledKi := *ki * sampleTimeSec
	scaledKd := *kd / sampleTimeSec
	scaledKp := *kp

	if c.direction == Reverse {
		scaledKp, scaledKi, scaledKd = -scaledKp, -scaledKi, -scaledKd
	}
	c.kp, c.ki, c.kd = scaledKp, scaledKi, scaledKd

	c.pOnEKp = (*pOn) * c.kp
	c.pOnMKp = (1 - (*pOn)) * c.kp
}

// SetSampleTime rescales the integral/derivative gains to a new tick
// period without changing the effective controller behavior.
func (c *Controller) SetSampleTime(newSampleTimeMs float64) {
	if newSampleTimeMs <= 0 {
		return
	}
	ratio := newSampleTimeMs / c.sampleTimeMs
	c.ki *= ratio
	c.kd /= ratio
	c.sampleTimeMs = newSampleTimeMs
}

// SetOutputLimits sets the clamp range applied to both outputSum and the
// final output every tick (anti-windup).
func (c *Controller) SetOutputLimits(min, max float64) {
	if min >= max {
		return
	}
	c.outMin, c.outMax = min, max

	if c.mode == Automatic {
		*c.output = clamp(*c.output, min, max)
		c.outputSum = clamp(c.outputSum, min, max)
	}
}

// SetMode switches between Manual and Automatic. Manual->Automatic
// transitions are bumpless: Initialize seeds outputSum and lastInput from
// the controller's current output/input so there is no step on re-attach.
func (c *Controller) SetMode(mode Mode) {
	newAuto := mode == Automatic
	wasManual := c.mode == Manual
	if newAuto && wasManual {
		c.initialize()
	}
	c.mode = mode
}

func (c *Controller) initialize() {
	c.outputSum = *c.output
	c.lastInput = *c.input
	c.outputSum = clamp(c.outputSum, c.outMin, c.outMax)
}

// SetControllerDirection changes direct/reverse and re-negates the cached
// gains if the controller is already running in Automatic mode.
func (c *Controller) SetControllerDirection(direction Direction) {
	if c.mode == Automatic && direction != c.direction {
		c.kp, c.ki, c.kd = -c.kp, -c.ki, -c.kd
	}
	c.direction = direction
}

func (c *Controller) Kp() float64             { return c.dispKp }
func (c *Controller) Ki() float64             { return c.dispKi }
func (c *Controller) Kd() float64             { return c.dispKd }
func (c *Controller) GetMode() Mode           { return c.mode }
func (c *Controller) GetDirection() Direction { return c.direction }
func (c *Controller) ITerm() float64          { return c.outputSum }
