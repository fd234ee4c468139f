// Package gcode implements the serial command front end: byte-level
// line assembly and out-of-band control characters, comment
// stripping, G/M/B/$ dispatch, and modal state. Ported from
// original_source/GCode.cpp, in the dispatch style of
// standalone/gcode/parser.go and interpreter.go.
package gcode

import (
	"sledctl/core"
	"sledctl/internal/axis"
	"sledctl/internal/kinematics"
	"sledctl/internal/planner"
	"sledctl/internal/settings"
	"sledctl/internal/system"
)

// Status is the per-line result, matching the source's STATUS_* byte
// codes enough for C11's report encoder to turn into an "ok"/"error"
// line.
type Status int

const (
	StatusOK Status = iota
	StatusInvalidStatement
	StatusOldSettings
)

// Reporter is the message sink the interpreter writes human-readable
// output to (version strings, tool-change prompts, unsupported-code
// notices) — C11 implements this over the serial report encoder;
// tests use a slice-backed fake.
type Reporter interface {
	Message(format string, args ...any)
}

// recomputeIndices are the $<n> settings whose change requires
// re-deriving Geometry's cached constants, matching
// kinematics.Geometry.Recompute's doc comment.
var recomputeIndices = map[int]bool{0: true, 1: true, 12: true, 13: true, 19: true, 20: true, 21: true}

// Interpreter holds the modal G-code state and the machine objects a
// command line can act on.
type Interpreter struct {
	sys      *system.System
	settings *settings.Settings
	geom     *kinematics.Geometry
	move     *planner.Planner
	host     planner.Host
	left, right, z *axis.Axis
	report         Reporter
	probeTouchedFn func() bool

	// rewrittenUnlockKeys tracks which of settings.OldSettingsUnlockIndices
	// have been rewritten since boot; StateOldSettings clears once all
	// four are present, matching Settings.cpp's unlock gate.
	rewrittenUnlockKeys map[int]bool
}

// New builds an Interpreter wired to one machine's planner, kinematics,
// settings, and axes.
func New(sys *system.System, s *settings.Settings, geom *kinematics.Geometry, move *planner.Planner, host planner.Host, left, right, z *axis.Axis, report Reporter) *Interpreter {
	return &Interpreter{
		sys: sys, settings: s, geom: geom, move: move, host: host,
		left: left, right: right, z: z, report: report,
		rewrittenUnlockKeys: make(map[int]bool),
	}
}

// Execute sanitizes and runs one raw serial line, splitting it into
// '$'/B-code/G-code/M-code segments left to right exactly as
// interpretCommandString does.
func (in *Interpreter) Execute(raw string) Status {
	line := Sanitize(raw)
	if len(line) == 0 {
		return StatusOK
	}

	if line[0] == '$' {
		return in.executeSettingsLine(line)
	}
	if line[0] == 'B' {
		return in.executeB(line)
	}
	if in.sys.HasState(system.StateOldSettings) {
		return StatusOldSettings
	}

	for len(line) > 0 {
		firstGM := findNextGM(line, 0)
		secondGM := findNextGM(line, firstGM+1)

		if firstGM == len(line) {
			firstGM = 0
		}
		if firstGM > 0 {
			in.executeOther(line[:firstGM])
		}

		segment := line[firstGM:secondGM]
		if len(segment) > 0 {
			if segment[0] == 'M' {
				in.executeM(segment)
			} else {
				in.executeG(segment)
			}
		}
		line = line[secondGM:]
	}
	return StatusOK
}

// findNextGM is GCode.cpp's findNextGM: the index of the next 'G' or
// 'M' at or after start, preferring whichever comes first, or the end
// of the string if neither appears.
func findNextGM(s string, start int) int {
	if start > len(s) {
		start = len(s)
	}
	gIdx, mIdx := -1, -1
	for i := start; i < len(s); i++ {
		if s[i] == 'G' && gIdx == -1 {
			gIdx = i
		}
		if s[i] == 'M' && mIdx == -1 {
			mIdx = i
		}
		if gIdx != -1 && mIdx != -1 {
			break
		}
	}
	if mIdx != -1 && (gIdx == -1 || mIdx < gIdx) {
		gIdx = mIdx
	}
	if gIdx == -1 {
		return len(s)
	}
	return gIdx
}

func (in *Interpreter) executeOther(line string) {
	if len(line) > 1 {
		if line[0] == 'T' {
			in.report.Message("Tool change to tool %v", int(ExtractValue(line, 'T', 0)))
			return
		}
		in.executeG(line)
		return
	}
	in.report.Message("Command %s too short - ignored.", line)
}

func (in *Interpreter) executeG(line string) {
	gNumber := int(ExtractValue(line, 'G', -1))
	if gNumber == -1 {
		gNumber = in.sys.LastGNumber
	}

	switch gNumber {
	case 0, 1:
		in.doLine(line)
		in.sys.LastGNumber = gNumber
	case 2, 3:
		in.doArc(line, gNumber)
		in.sys.LastGNumber = gNumber
	case 4:
		in.doDwell(line)
	case 10:
		in.doG10(line)
	case 20:
		in.sys.InchesToMMConversion = 25.4
	case 21:
		in.sys.InchesToMMConversion = 1.0
	case 40:
		// cutter compensation off; already off, safe to ignore
	case 38:
		in.doProbe(line)
	case 90:
		in.sys.RelativeUnits = false
	case 91:
		in.sys.RelativeUnits = true
	default:
		in.report.Message("Command G%d unsupported and ignored.", gNumber)
	}
}

func (in *Interpreter) executeM(line string) {
	mNumber := int(ExtractValue(line, 'M', -1))
	switch mNumber {
	case 0, 1:
		in.sys.SetPause(system.PauseFlagUser)
	case 2, 30, 5:
		in.report.Message("Spindle off")
	case 3, 4:
		in.report.Message("Spindle on")
	case 6:
		in.report.Message("Tool change requested")
	case 106:
		in.report.Message("Laser on")
	case 107:
		in.report.Message("Laser off")
	default:
		in.report.Message("Command M%d unsupported and ignored.", mNumber)
	}
}

func (in *Interpreter) mmConv() float64 { return in.sys.InchesToMMConversion }

func (in *Interpreter) doLine(line string) {
	x, y, z := in.move.Position()
	xgoto := in.mmConv() * ExtractValue(line, 'X', x/in.mmConv())
	ygoto := in.mmConv() * ExtractValue(line, 'Y', y/in.mmConv())
	zgoto := in.mmConv() * ExtractValue(line, 'Z', z/in.mmConv())
	feed := in.mmConv() * ExtractValue(line, 'F', in.sys.FeedRate/in.mmConv())

	if in.sys.RelativeUnits {
		xgoto += x
		ygoto += y
		zgoto += z
	}

	in.sys.FeedRate = feed
	if err := in.move.Line(xgoto, ygoto, zgoto, feed); err != nil {
		in.report.Message("Move error: %v", err)
	}
	in.sys.XPosition, in.sys.YPosition, _ = in.move.Position()
}

func (in *Interpreter) doArc(line string, gNumber int) {
	x1, y1, z1 := in.move.Position()
	x2 := in.mmConv() * ExtractValue(line, 'X', x1/in.mmConv())
	y2 := in.mmConv() * ExtractValue(line, 'Y', y1/in.mmConv())
	z2 := in.mmConv() * ExtractValue(line, 'Z', z1/in.mmConv())
	i := in.mmConv() * ExtractValue(line, 'I', 0.0)
	j := in.mmConv() * ExtractValue(line, 'J', 0.0)
	feed := in.mmConv() * ExtractValue(line, 'F', in.sys.FeedRate/in.mmConv())

	centerX := x1 + i
	centerY := y1 + j

	direction := planner.CW
	if gNumber == 3 {
		direction = planner.CCW
	}

	in.sys.FeedRate = feed
	if err := in.move.Arc(x1, y1, z1, x2, y2, z2, centerX, centerY, feed, direction); err != nil {
		in.report.Message("Move error: %v", err)
	}
	in.sys.XPosition, in.sys.YPosition, _ = in.move.Position()
}

func (in *Interpreter) doDwell(line string) {
	dwellMS := ExtractValue(line, 'P', 0)
	if dwellMS == 0 {
		dwellMS = 1000 * ExtractValue(line, 'S', 0)
	}
	if dwellMS < 0 {
		dwellMS = -dwellMS
	}

	start := core.GetTime()
	for core.GetTime()-start < uint32(dwellMS*1000) {
		if in.host.Stopped() {
			return
		}
		in.host.RunForeground()
	}
}

func (in *Interpreter) doG10(line string) {
	if in.z == nil {
		return
	}
	current := in.z.Read()
	zgoto := in.mmConv() * ExtractValue(line, 'Z', current/in.mmConv())
	in.z.Write(zgoto)
	in.z.EndMove(zgoto)
}

// doProbe implements G38.2 (probe toward Z, stop on contact, report and
// set stop on a miss) — the only G38 sub-code the source implements. Ported from
// GCode.cpp's G38(); the ".2" sub-code check matches the source's
// literal substring(3,5) == ".2" test rather than parsing a decimal
// G-number, since the source never generalizes to other G38.x codes.
func (in *Interpreter) doProbe(line string) {
	if len(line) < 5 || line[3:5] != ".2" {
		in.report.Message("Only G38.2 is supported.")
		return
	}
	if in.z == nil {
		return
	}

	current := in.z.Read()
	zgoto := in.mmConv() * ExtractValue(line, 'Z', current/in.mmConv())
	feed := in.mmConv() * ExtractValue(line, 'F', in.sys.FeedRate/in.mmConv())
	maxZFeed := in.settings.MaxZRPM * abs64(in.settings.ZPitchMmPerRev)
	feed = clampF(feed, 1, maxZFeed)

	if in.sys.RelativeUnits && HasValue(line, 'Z') {
		zgoto = current + zgoto
	}
	if zgoto == current {
		return
	}

	hit, err := in.move.Probe(in.z, zgoto, feed, in.probeTouched)
	if err != nil {
		in.report.Message("z axis probe failed to find contact")
		in.sys.Stop = true
		return
	}
	if hit {
		in.report.Message("z axis zeroed")
	}
}

func abs64(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// probeTouched polls the wired probe-input function, defaulting to
// "never touches" on a machine with no probe input wired.
func (in *Interpreter) probeTouched() bool {
	if in.probeTouchedFn == nil {
		return false
	}
	return in.probeTouchedFn()
}

// SetProbeInput lets the caller wire a live probe-input poll function.
func (in *Interpreter) SetProbeInput(f func() bool) {
	in.probeTouchedFn = f
}

func (in *Interpreter) executeSettingsLine(line string) Status {
	if line == "$$" {
		for _, l := range in.settings.Dump() {
			in.report.Message("%s", l)
		}
		return StatusOK
	}
	if len(line) == 6 && line[:5] == "$RST=" {
		return in.executeRST(line[5])
	}

	n, v, isWrite, ok := parseSettingCommand(line)
	if !ok {
		return StatusInvalidStatement
	}
	if !isWrite {
		got, err := in.settings.Get(n)
		if err != nil {
			return StatusInvalidStatement
		}
		in.report.Message("$%d=%s", n, got)
		return StatusOK
	}
	if err := in.settings.Set(n, v); err != nil {
		return StatusInvalidStatement
	}
	if recomputeIndices[n] {
		in.geom.Recompute()
	}
	if in.sys.HasState(system.StateOldSettings) && settings.OldSettingsUnlockIndices[n] {
		in.rewrittenUnlockKeys[n] = true
		if in.allUnlockKeysRewritten() {
			in.sys.ClearState(system.StateOldSettings)
		}
	}
	return StatusOK
}

// executeRST handles "$RST=<target>", the settings-surface reset
// command: '$' reloads factory defaults over
// the settings struct, '#' re-zeroes the cached (x,y) position without
// touching tuning, and '*' does both plus clears the state bitset back
// to idle, matching a cold-boot settings+position reset.
func (in *Interpreter) executeRST(target byte) Status {
	switch target {
	case '$':
		*in.settings = settings.Default()
		in.geom.Recompute()
	case '#':
		in.move.SetPosition(0, 0)
		in.sys.XPosition, in.sys.YPosition = 0, 0
	case '*':
		*in.settings = settings.Default()
		in.geom.Recompute()
		in.move.SetPosition(0, 0)
		in.sys.XPosition, in.sys.YPosition = 0, 0
		in.sys.State = system.StateIdle
	default:
		return StatusInvalidStatement
	}
	in.rewrittenUnlockKeys = make(map[int]bool)
	return StatusOK
}

func (in *Interpreter) allUnlockKeysRewritten() bool {
	for idx := range settings.OldSettingsUnlockIndices {
		if !in.rewrittenUnlockKeys[idx] {
			return false
		}
	}
	return true
}
