// Package sim provides an in-process GPIO/PWM backend with no hardware
// dependency. It backs unit tests and a host-only "simulate" mode for the
// CLI, standing in for the tinygo-targeted drivers used on real boards.
package sim

import (
	"sync"

	"sledctl/core"
)

// Driver implements core.GPIODriver and core.PWMDriver entirely in memory.
type Driver struct {
	mu       sync.Mutex
	levels   map[core.GPIOPin]bool
	watchers map[core.GPIOPin][]func(bool)
	duty     map[core.PWMPin]core.PWMValue
	cycle    map[core.PWMPin]uint32
}

// New returns a ready-to-use simulated driver.
func New() *Driver {
	return &Driver{
		levels:   make(map[core.GPIOPin]bool),
		watchers: make(map[core.GPIOPin][]func(bool)),
		duty:     make(map[core.PWMPin]core.PWMValue),
		cycle:    make(map[core.PWMPin]uint32),
	}
}

func (d *Driver) ConfigureOutput(pin core.GPIOPin) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.levels[pin]; !ok {
		d.levels[pin] = false
	}
	return nil
}

func (d *Driver) ConfigureInputPullUp(pin core.GPIOPin) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.levels[pin]; !ok {
		d.levels[pin] = true
	}
	return nil
}

func (d *Driver) ConfigureInputPullDown(pin core.GPIOPin) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.levels[pin]; !ok {
		d.levels[pin] = false
	}
	return nil
}

func (d *Driver) SetPin(pin core.GPIOPin, value bool) error {
	d.mu.Lock()
	d.levels[pin] = value
	watchers := append([]func(bool){}, d.watchers[pin]...)
	d.mu.Unlock()

	for _, w := range watchers {
		w(value)
	}
	return nil
}

func (d *Driver) GetPin(pin core.GPIOPin) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.levels[pin], nil
}

func (d *Driver) ReadPin(pin core.GPIOPin) bool {
	v, _ := d.GetPin(pin)
	return v
}

// WatchEdges registers callback to fire on every SetPin transition.
// Tests drive encoder quadrature by calling SetPin directly.
func (d *Driver) WatchEdges(pin core.GPIOPin, callback func(level bool)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.watchers[pin] = append(d.watchers[pin], callback)
	return nil
}

func (d *Driver) ConfigureHardwarePWM(pin core.PWMPin, cycleTicks uint32) (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cycle[pin] = cycleTicks
	return cycleTicks, nil
}

func (d *Driver) SetDutyCycle(pin core.PWMPin, value core.PWMValue) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.duty[pin] = value
	return nil
}

func (d *Driver) GetMaxValue() uint32 {
	return core.PWMMax
}

func (d *Driver) DisablePWM(pin core.PWMPin) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.duty[pin] = 0
	return nil
}

// DutyCycle reports the last commanded duty for a pin. Exposed for tests.
func (d *Driver) DutyCycle(pin core.PWMPin) core.PWMValue {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.duty[pin]
}
