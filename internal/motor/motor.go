// Package motor implements the two H-bridge wiring variants used to drive
// a gearmotor from a signed PWM command: a standard three-pin bridge (one
// PWM pin plus two direction pins) and a brake-capable TLE5206-style bridge
// (two independently PWM-capable direction pins).
package motor

import (
	"sledctl/core"
)

// Variant selects the H-bridge wiring.
type Variant int

const (
	// Standard is one PWM pin plus two direction pins.
	Standard Variant = iota
	// TLE5206 is a brake-capable bridge: two PWM-capable direction pins,
	// zero commands an active brake rather than coast.
	TLE5206
)

// Driver is a signed-speed H-bridge abstraction. Speed is clamped to
// [-255,255] (core.PWMMax resolution); sign selects direction.
type Driver struct {
	variant Variant

	pin1, pin2 core.GPIOPin // direction pins (both PWM-capable under TLE5206)
	pwmPin     core.GPIOPin // dedicated PWM pin, Standard variant only

	// reservedForTick marks pins already driven by the tick timer (or any
	// other fixed-function use); the pin-selection rule must never hand a
	// PWM duty cycle to one of these, mirroring the original firmware's
	// avoidance of the MCU's own timer-output pins.
	reservedForTick map[core.GPIOPin]bool

	attached  bool
	lastSpeed int16
}

// NewStandard builds a Driver for the three-pin standard bridge wiring.
func NewStandard(pin1, pin2, pwmPin core.GPIOPin, reserved ...core.GPIOPin) *Driver {
	return &Driver{
		variant:         Standard,
		pin1:            pin1,
		pin2:            pin2,
		pwmPin:          pwmPin,
		reservedForTick: reservedSet(reserved),
		attached:        true,
	}
}

// NewTLE5206 builds a Driver for the brake-capable two-PWM-pin wiring.
func NewTLE5206(pin1, pin2 core.GPIOPin, reserved ...core.GPIOPin) *Driver {
	return &Driver{
		variant:         TLE5206,
		pin1:            pin1,
		pin2:            pin2,
		reservedForTick: reservedSet(reserved),
		attached:        true,
	}
}

func reservedSet(pins []core.GPIOPin) map[core.GPIOPin]bool {
	m := make(map[core.GPIOPin]bool, len(pins))
	for _, p := range pins {
		m[p] = true
	}
	return m
}

// Setup configures the bridge's pins and leaves the motor stopped.
func (d *Driver) Setup() error {
	gpio := core.MustGPIO()

	switch d.variant {
	case TLE5206:
		if err := gpio.ConfigureOutput(d.pin1); err != nil {
			return err
		}
		if err := gpio.ConfigureOutput(d.pin2); err != nil {
			return err
		}
		// Stopped state for TLE5206 is an active brake: both low.
		_ = gpio.SetPin(d.pin1, false)
		_ = gpio.SetPin(d.pin2, false)
	default:
		if err := gpio.ConfigureOutput(d.pin1); err != nil {
			return err
		}
		if err := gpio.ConfigureOutput(d.pin2); err != nil {
			return err
		}
		if err := gpio.ConfigureOutput(d.pwmPin); err != nil {
			return err
		}
		// Stopped state for the standard bridge: pin1 high, pin2 low, PWM low.
		_ = gpio.SetPin(d.pin1, true)
		_ = gpio.SetPin(d.pin2, false)
		_ = setDuty(d.pwmPin, 0)
	}
	return nil
}

// Attach enables PID-driven writes; a detached motor coasts (or brakes, on
// TLE5206) and ignores Write unless force is set.
func (d *Driver) Attach() {
	d.attached = true
}

// Detach disables writes and drives the bridge to its idle state.
func (d *Driver) Detach() {
	d.attached = false
	_ = d.Write(0, true)
}

// Attached reports whether the motor currently accepts commands.
func (d *Driver) Attached() bool {
	return d.attached
}

// LastSpeed returns the most recently commanded signed speed.
func (d *Driver) LastSpeed() int16 {
	return d.lastSpeed
}

// AdditiveWrite adds delta onto the last commanded speed and writes the
// result. This is how the velocity loop's PID output is applied: as an
// integrating outer stage on top of whatever PWM is already commanded,
// not a direct setpoint.
func (d *Driver) AdditiveWrite(delta int16) error {
	return d.Write(d.lastSpeed+delta, false)
}

// Write commands a signed speed in [-255,255]. If the motor is detached
// and force is false, the call is a no-op.
func (d *Driver) Write(speed int16, force bool) error {
	if !d.attached && !force {
		return nil
	}

	if speed > 255 {
		speed = 255
	} else if speed < -255 {
		speed = -255
	}
	d.lastSpeed = speed

	forward := speed > 0
	magnitude := speed
	if magnitude < 0 {
		magnitude = -magnitude
	}

	gpio := core.MustGPIO()

	switch d.variant {
	case TLE5206:
		return d.writeTLE5206(gpio, forward, magnitude)
	default:
		return d.writeStandard(gpio, forward, magnitude)
	}
}

// DirectWrite bypasses the attached check, used by the axis self-test that
// commands the motor directly while watching the encoder for movement.
func (d *Driver) DirectWrite(speed int16) error {
	return d.Write(speed, true)
}

func (d *Driver) writeStandard(gpio core.GPIODriver, forward bool, magnitude int16) error {
	if magnitude == 0 {
		_ = gpio.SetPin(d.pin1, true)
		_ = gpio.SetPin(d.pin2, false)
		return setDuty(d.pwmPin, 0)
	}

	if forward {
		_ = gpio.SetPin(d.pin1, true)
		_ = gpio.SetPin(d.pin2, false)
	} else {
		_ = gpio.SetPin(d.pin1, false)
		_ = gpio.SetPin(d.pin2, true)
	}
	return setDuty(d.pwmPin, uint32(magnitude))
}

// writeTLE5206 drives the brake-capable bridge: zero brakes (both pins
// low), otherwise one direction pin carries the PWM duty and the other is
// held steady low, selecting whichever pin is not reserved for the tick
// timer so PWM output never collides with the scheduler's own timer use.
func (d *Driver) writeTLE5206(gpio core.GPIODriver, forward bool, magnitude int16) error {
	if magnitude == 0 {
		_ = gpio.SetPin(d.pin1, false)
		_ = gpio.SetPin(d.pin2, false)
		return nil
	}

	pwmPin, steadyPin := d.selectTLE5206Pins(forward)
	_ = gpio.SetPin(steadyPin, false)
	return setDuty(pwmPin, uint32(magnitude))
}

// selectTLE5206Pins picks which of pin1/pin2 carries PWM for the requested
// direction, preferring the pin not reserved by the tick timer.
func (d *Driver) selectTLE5206Pins(forward bool) (pwmPin, steadyPin core.GPIOPin) {
	primary, secondary := d.pin1, d.pin2
	if !forward {
		primary, secondary = d.pin2, d.pin1
	}
	if d.reservedForTick[primary] && !d.reservedForTick[secondary] {
		return secondary, primary
	}
	return primary, secondary
}

func setDuty(pin core.GPIOPin, value uint32) error {
	pwm := core.MustPWM()
	return pwm.SetDutyCycle(core.PWMPin(pin), core.PWMValue(value))
}
