// Package planner segments G-code linear, circular, single-axis, and
// probe moves into per-tick axis setpoints, driving inverse kinematics
// once per tick and honoring feedrate and per-axis rate limits. Ported
// from the original firmware's Motion.cpp.
package planner

import (
	"errors"
	"math"

	"sledctl/internal/axis"
	"sledctl/internal/kinematics"
	"sledctl/internal/settings"
)

// Direction signs, matching the original's COUNTERCLOCKWISE/CLOCKWISE
// constants; Arc wraps its sweep angle to the same sign.
const (
	CW  = -1.0
	CCW = 1.0
)

// ErrStopped is returned by any in-progress move when the supervisor's
// stop flag is observed mid-loop.
var ErrStopped = errors.New("planner: motion stopped")

// ErrProbeNoContact is returned by Probe when the travel limit is
// reached without the probe input ever asserting.
var ErrProbeNoContact = errors.New("planner: probe did not contact within travel")

// Host is the realtime supervisor's surface exposed to the planner: tick
// pacing and the stop flag. Constructor-injected rather than a global,
// to avoid a cross-component back-reference from planner to supervisor, so
// tests can supply a fake that free-runs every call.
type Host interface {
	// TickPending reports whether a new tick has fired since the last
	// call and consumes it (edge-triggered), gating the planner to at
	// most one step per tick.
	TickPending() bool
	// Stopped reports whether the abort flag is set.
	Stopped() bool
	// RunForeground drains serial, emits reports, and runs idle-detach;
	// invoked on every loop iteration that isn't advancing a step.
	RunForeground()
}

// Planner is the motion segmenter for one two-chain machine plus an
// optional Z axis.
type Planner struct {
	geom        *kinematics.Geometry
	left, right *axis.Axis
	z           *axis.Axis

	s    *settings.Settings
	host Host

	loopIntervalUs uint32

	x, y float64 // cached current tool-head position, mm
}

// New builds a Planner. z may be nil when no Z axis is present (matching
// settings.Settings.ZAttached = false); loopIntervalUs is the
// supervisor's tick period, used to size per-tick step distances.
func New(geom *kinematics.Geometry, left, right, z *axis.Axis, s *settings.Settings, loopIntervalUs uint32, host Host) *Planner {
	return &Planner{geom: geom, left: left, right: right, z: z, s: s, loopIntervalUs: loopIntervalUs, host: host}
}

// Position returns the planner's cached (x,y) tool-head position and the
// Z axis's current reading (0 if no Z axis is attached).
func (p *Planner) Position() (x, y, z float64) {
	if p.s.ZAttached && p.z != nil {
		z = p.z.Read()
	}
	return p.x, p.y, z
}

// SetPosition resets the cached (x,y) without commanding any motion,
// used after homing or calibration.
func (p *Planner) SetPosition(x, y float64) {
	p.x, p.y = x, y
}

func computeStepSize(mmPerMin float64, loopIntervalUs uint32) float64 {
	return float64(loopIntervalUs) * (mmPerMin / (60 * 1000000))
}

func calculateFeedrate(stepSizeMM, usPerStep float64) float64 {
	return (stepSizeMM * 60000000.0) / usPerStep
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}

// runSteps drives one step per tick for totalSteps ticks, running
// foreground work on any iteration that isn't a tick boundary and
// aborting on the stop flag. stepFn returns false to end the loop early
// (used by Probe on contact).
func (p *Planner) runSteps(totalSteps int, stepFn func(stepIndex int) bool) error {
	taken := 0
	for taken < totalSteps {
		if p.host.Stopped() {
			return ErrStopped
		}
		if !p.host.TickPending() {
			p.host.RunForeground()
			continue
		}
		if !stepFn(taken) {
			return nil
		}
		taken++
	}
	return nil
}

// Line moves in a straight 3D line to (xEnd,yEnd,zEnd) at mmPerMin,
// ported from Motion.cpp's coordinatedMove. If the implied Z per-tick
// step exceeds the Z axis's RPM/pitch limit, the per-tick step (and
// therefore the effective feedrate) is recomputed from the Z limit
// before segmenting, exactly as the source does.
func (p *Planner) Line(xEnd, yEnd, zEnd, mmPerMin float64) error {
	xStart, yStart := p.x, p.y
	zStart := 0.0
	zAttached := p.s.ZAttached && p.z != nil
	if zAttached {
		zStart = p.z.Read()
	} else {
		zEnd = zStart
	}

	zMaxFeed := p.s.MaxZRPM * abs(p.s.ZPitchMmPerRev)

	dist := math.Sqrt(sq(xEnd-xStart) + sq(yEnd-yStart) + sq(zEnd-zStart))
	xDist := xEnd - xStart
	yDist := yEnd - yStart
	zDist := zEnd - zStart

	mmPerMin = clamp(mmPerMin, 1, p.s.MaxFeedMmPerMin)
	stepSizeMM := computeStepSize(mmPerMin, p.loopIntervalUs)
	finalSteps := abs(dist / stepSizeMM)

	zFeedrate := calculateFeedrate(abs(zDist/finalSteps), float64(p.loopIntervalUs))
	if zFeedrate > zMaxFeed {
		zStepSizeMM := computeStepSize(zMaxFeed, p.loopIntervalUs)
		finalSteps = abs(zDist / zStepSizeMM)
		stepSizeMM = dist / finalSteps
	}

	xStep := xDist / finalSteps
	yStep := yDist / finalSteps
	zStep := zDist / finalSteps

	p.left.Attach()
	p.right.Attach()
	if zAttached {
		p.z.Attach()
	}

	x, y, z := xStart, yStart, zStart
	err := p.runSteps(int(finalSteps), func(int) bool {
		x += xStep
		y += yStep
		z += zStep

		a, b := p.geom.Inverse(x, y)
		p.left.Write(a)
		p.right.Write(b)
		if zAttached {
			p.z.Write(z)
		}
		return true
	})
	if err != nil {
		return err
	}

	a, b := p.geom.Inverse(xEnd, yEnd)
	p.left.EndMove(a)
	p.right.EndMove(b)
	if zAttached {
		// The source lands Z on the loop's accumulated position, not the
		// literal zEnd argument, unlike the X/Y axes which snap to the
		// exact target — preserved here rather than "fixed", since it
		// matches the original's coordinatedMove behavior exactly.
		p.z.EndMove(z)
	}

	p.x, p.y = xEnd, yEnd
	return nil
}

// Arc moves along a circular arc from (x1,y1) to (x2,y2) about
// (centerX,centerY), ported from Motion.cpp's arc(). The three-condition
// substitution rule (direction-sign mismatch, near-zero chord height
// with a small sweep, or radius exceeding 25400 mm) falls back to Line.
func (p *Planner) Arc(x1, y1, z1, x2, y2, z2, centerX, centerY, mmPerMin, direction float64) error {
	const pi = 3.1415

	radius := math.Sqrt(sq(centerX-x1) + sq(centerY-y1))
	startAngle := math.Atan2(y1-centerY, x1-centerX)
	endAngle := math.Atan2(y2-centerY, x2-centerX)

	// NOTE: named "chordSquared" in the original despite being the plain
	// chord length, not its square — preserved verbatim including the
	// name's inaccuracy, since the arithmetic (not the name) is what
	// matters for behavior.
	chordSquared := math.Sqrt(sq(x2-x1) + sq(y2-y1))
	tau := math.Sqrt(sq(radius) - chordSquared/4.0)
	chordHeight := radius - tau

	theta := endAngle - startAngle
	if direction == CCW {
		if theta <= 0 {
			theta += 2 * pi
		}
	} else {
		if theta >= 0 {
			theta -= 2 * pi
		}
	}

	if sign(theta) != sign(direction) || (abs(chordHeight) < 0.01 && abs(theta) < 0.5) || radius > 25400 {
		return p.Line(x2, y2, z2, mmPerMin)
	}

	circumference := 2.0 * pi * radius
	arcLengthMM := abs(circumference * (theta / (2 * pi)))
	zDist := z2 - z1

	feedMMPerMin := clamp(mmPerMin, 1, p.s.MaxFeedMmPerMin)
	stepSizeMM := computeStepSize(feedMMPerMin, p.loopIntervalUs)
	finalSteps := arcLengthMM / stepSizeMM

	zFeedRate := calculateFeedrate(abs(zDist/finalSteps), float64(p.loopIntervalUs))
	zMaxFeed := p.s.MaxZRPM * abs(p.s.ZPitchMmPerRev)
	zStepSizeMM := zDist / finalSteps
	if zFeedRate > zMaxFeed {
		zStepSizeMM = computeStepSize(zMaxFeed, p.loopIntervalUs)
		finalSteps = abs(zDist / zStepSizeMM)
	}
	zStepSizeMM = zDist / finalSteps

	zAttached := p.s.ZAttached && p.z != nil
	zPosition := z1 + zStepSizeMM

	p.left.Attach()
	p.right.Attach()
	if zAttached {
		p.z.Attach()
	}

	totalSteps := int(abs(finalSteps))
	err := p.runSteps(totalSteps, func(i int) bool {
		degreeComplete := float64(i) / float64(totalSteps)
		angleNow := startAngle + theta*degreeComplete

		p.x = radius*math.Cos(angleNow) + centerX
		p.y = radius*math.Sin(angleNow) + centerY

		a, b := p.geom.Inverse(p.x, p.y)
		p.left.Write(a)
		p.right.Write(b)
		if zAttached {
			p.z.Write(zPosition)
		}
		zPosition += zStepSizeMM
		return true
	})
	if err != nil {
		return err
	}

	a, b := p.geom.Inverse(x2, y2)
	p.left.EndMove(a)
	p.right.EndMove(b)
	// The source's arc() never calls zAxis.endMove at all, unlike
	// coordinatedMove — preserved; a Z move ending on an arc lands
	// wherever the last per-tick Z write put it.

	p.x, p.y = x2, y2
	return nil
}

// SingleAxis moves one axis to endPos at mmPerMin, used for calibration
// and probe moves. Ported from Motion.cpp's singleAxisMove.
func (p *Planner) SingleAxis(ax *axis.Axis, endPos, mmPerMin float64) error {
	start := ax.Read()
	moveDist := endPos - start

	ax.Attach()

	if moveDist == 0 {
		ax.EndMove(endPos)
		return nil
	}

	direction := 1.0
	if moveDist < 0 {
		direction = -1.0
	}

	stepSizeMM := computeStepSize(mmPerMin, p.loopIntervalUs)
	finalSteps := int(abs(moveDist / stepSizeMM))
	stepSizeMM *= direction

	pos := start
	err := p.runSteps(finalSteps, func(int) bool {
		pos += stepSizeMM
		ax.Write(pos)
		return true
	})
	if err != nil {
		return err
	}

	ax.EndMove(endPos)
	return nil
}

// Probe moves ax toward endPos at mmPerMin, polling probeTouched every
// tick. On a positive read, the Z setpoint is zeroed and motion
// terminates immediately; hit reports whether contact was ever detected.
// Ported from GCode.cpp's G38 handler (the probe-specific single-axis
// move variant), restricted to G38.2 probe semantics.
func (p *Planner) Probe(ax *axis.Axis, endPos, mmPerMin float64, probeTouched func() bool) (hit bool, err error) {
	start := ax.Read()
	moveDist := endPos - start
	if moveDist == 0 {
		return false, nil
	}

	direction := 1.0
	if moveDist < 0 {
		direction = -1.0
	}
	stepSizeMM := computeStepSize(mmPerMin, p.loopIntervalUs) * direction
	finalSteps := int(abs(moveDist / stepSizeMM))

	ax.Attach()
	pos := start
	err = p.runSteps(finalSteps, func(int) bool {
		if probeTouched() {
			hit = true
			ax.Write(0)
			ax.EndMove(0)
			return false
		}
		pos += stepSizeMM
		ax.Write(pos)
		return true
	})
	if err != nil {
		return false, err
	}
	if !hit {
		return false, ErrProbeNoContact
	}
	return true, nil
}

func sq(v float64) float64 { return v * v }
