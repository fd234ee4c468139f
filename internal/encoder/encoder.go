// Package encoder decodes a quadrature pair into a signed step count.
//
// Updates are driven from the GPIO input-change path (core.GPIODriver's
// WatchEdges), never polled from inside a tick, so that high-RPM motion
// never silently loses counts between tick boundaries.
package encoder

import "sledctl/core"

// quadrature transition table indexed by (previous 2-bit state << 2 | new
// 2-bit state). +1/-1 for valid single-step transitions, 0 for a repeated
// sample or an illegal double-step (treated as noise and ignored).
var quadratureTable = [16]int64{
	0: 0, 1: -1, 2: 1, 3: 0,
	4: 1, 5: 0, 6: 0, 7: -1,
	8: -1, 9: 0, 10: 0, 11: 1,
	12: 0, 13: 1, 14: -1, 15: 0,
}

// Reader tracks a single quadrature channel's position and edge timing.
type Reader struct {
	pinA, pinB core.GPIOPin

	position      int64
	lastState     uint8
	lastEdgeTime  uint32 // microseconds, from core.GetTime()
	edgeInterval  uint32 // microseconds between the two most recent edges
	stateA, stateB bool
}

// New constructs a Reader for the given phase pins but does not yet attach
// to the GPIO driver; call Setup for that.
func New(pinA, pinB core.GPIOPin) *Reader {
	return &Reader{pinA: pinA, pinB: pinB}
}

// Setup configures both phase pins as pulled-up inputs and registers
// edge-driven callbacks with the active GPIO driver.
func (r *Reader) Setup() error {
	gpio := core.MustGPIO()

	if err := gpio.ConfigureInputPullUp(r.pinA); err != nil {
		return err
	}
	if err := gpio.ConfigureInputPullUp(r.pinB); err != nil {
		return err
	}

	r.stateA = gpio.ReadPin(r.pinA)
	r.stateB = gpio.ReadPin(r.pinB)
	r.lastState = packState(r.stateA, r.stateB)
	r.lastEdgeTime = core.GetTime()

	if err := gpio.WatchEdges(r.pinA, func(level bool) {
		r.stateA = level
		r.onEdge()
	}); err != nil {
		return err
	}
	return gpio.WatchEdges(r.pinB, func(level bool) {
		r.stateB = level
		r.onEdge()
	})
}

func packState(a, b bool) uint8 {
	var s uint8
	if a {
		s |= 1
	}
	if b {
		s |= 2
	}
	return s
}

// onEdge runs on every transition of either phase pin. It must stay cheap:
// it is invoked from the platform's interrupt-equivalent path.
func (r *Reader) onEdge() {
	now := core.GetTime()
	newState := packState(r.stateA, r.stateB)

	delta := quadratureTable[uint8(r.lastState<<2)|newState]
	r.position += delta

	if delta != 0 {
		r.edgeInterval = now - r.lastEdgeTime
		r.lastEdgeTime = now
	}
	r.lastState = newState
}

// Read returns the current signed step count. Safe to call from the tick
// context; writes only ever happen on the edge path.
func (r *Reader) Read() int64 {
	return r.position
}

// Write forcibly sets the step count, used when an axis is recalibrated or
// homed to a known position.
func (r *Reader) Write(steps int64) {
	r.position = steps
}

// LastStepTime returns the microsecond timestamp of the most recent edge.
func (r *Reader) LastStepTime() uint32 {
	return r.lastEdgeTime
}

// ElapsedTime returns the microsecond interval between the two most recent
// edges. Used by the velocity estimator to let RPM approach zero smoothly
// when steps have become too sparse to time reliably tick-to-tick.
func (r *Reader) ElapsedTime() uint32 {
	return r.edgeInterval
}
