// Package supervisor implements the realtime supervisor (C9): a fixed-
// period tick that runs the position and velocity loops for every
// attached axis in a strict left/right/z order, and the foreground
// worklist that runs between ticks — serial drain, periodic status
// reports, idle-detach, and settings persistence. Ported from
// original_source/System.cpp's loop()/rtTimerHandler() split, with the
// timer-interrupt/cooperative-foreground split reproduced over
// core.ScheduleTimer exactly as core/scheduler.go already does for the
// step-pulse scheduler it was written for.
package supervisor

import (
	"sledctl/core"
	"sledctl/internal/axis"
	"sledctl/internal/gcode"
	"sledctl/internal/report"
	"sledctl/internal/settings"
	"sledctl/internal/system"
)

// minReportIntervalUs is POSITIONTIMEOUT from Report.cpp's returnPoz:
// status lines are never sent closer together than this.
const minReportIntervalUs = 200000

// Supervisor wires one machine's axes, G-code front end, and report
// encoder to a periodic tick and the foreground worklist that runs
// between ticks. It implements planner.Host so the motion planner can
// pace itself against the same tick without a separate dependency.
type Supervisor struct {
	sys      *system.System
	settings *settings.Settings
	left, right, z *axis.Axis
	zAttached bool

	tickIntervalUs uint32
	tickPending    bool
	timer          *core.Timer

	lineAsm *gcode.LineAssembler
	interp  *gcode.Interpreter
	enc     *report.Encoder

	readByte  func() (byte, bool) // drains one queued input byte, if any
	persist   func()              // writes settings+step counters to the Store
	allDetached bool

	lastReportTimeUs uint32
}

// New builds a Supervisor with its axes and tick period fixed, but no
// G-code front end wired yet. The front end (interpreter, planner) takes
// the Supervisor itself as its Host, so construction is necessarily
// two-phase: build the Supervisor, build the planner/interpreter against
// it, then call Wire with the result.
func New(sys *system.System, s *settings.Settings, left, right, z *axis.Axis, zAttached bool, tickIntervalUs uint32) *Supervisor {
	return &Supervisor{
		sys: sys, settings: s,
		left: left, right: right, z: z, zAttached: zAttached,
		tickIntervalUs: tickIntervalUs,
	}
}

// Wire attaches the G-code interpreter, report encoder, line assembler,
// and the foreground I/O hooks. readByte is polled once per foreground
// pass and should return ok=false when no byte is waiting; persist is
// called once whenever the machine transitions into all-axes-detached,
// written only when all axes have gone idle, not on every foreground pass.
func (sv *Supervisor) Wire(interp *gcode.Interpreter, enc *report.Encoder, lineAsm *gcode.LineAssembler, readByte func() (byte, bool), persist func()) {
	sv.interp = interp
	sv.enc = enc
	sv.lineAsm = lineAsm
	sv.readByte = readByte
	sv.persist = persist
}

// Start arms the periodic tick, matching the source's hardware-timer
// interrupt setup at boot. Call once; ticks continue until the process
// exits. The returned Timer handler runs on the scheduler's dispatch
// path (core.TimerDispatch), not on a real goroutine, matching the
// single-threaded cooperative-plus-one-interrupt model this machine
// requires.
func (sv *Supervisor) Start() {
	sv.timer = &core.Timer{
		WakeTime: core.GetTime() + sv.tickIntervalUs,
		Handler:  sv.tick,
	}
	core.ScheduleTimer(sv.timer)
}

// tick is the supervisor's only PWM writer: position loop then velocity
// loop then PWM, left, right, z, in that fixed order so every motor sees
// a consistent snapshot of its axis's setpoint from the last planner
// step. Ported from System.cpp's rtTimerHandler.
func (sv *Supervisor) tick(t *core.Timer) uint8 {
	sv.left.ComputePID()
	sv.right.ComputePID()
	if sv.zAttached && sv.z != nil {
		sv.z.ComputePID()
	}

	sv.tickPending = true

	t.WakeTime += sv.tickIntervalUs
	return core.SF_RESCHEDULE
}

// TickPending reports and consumes the edge-triggered tick flag the
// planner paces its per-tick stepping against.
func (sv *Supervisor) TickPending() bool {
	if !sv.tickPending {
		return false
	}
	sv.tickPending = false
	return true
}

// Stopped reports the machine-wide abort flag.
func (sv *Supervisor) Stopped() bool { return sv.sys.Stop }

// RunForeground drains queued serial bytes into the line assembler,
// executes any fully assembled lines, emits a rate-limited status
// report, persists settings when every axis has gone idle, and
// idle-detaches any axis whose last move has aged past
// AxisDetachTimeMs. Ported from System.cpp's loop().
func (sv *Supervisor) RunForeground() {
	sv.drainSerial()
	sv.runIdleDetach()
	sv.maybeReport()
}

func (sv *Supervisor) drainSerial() {
	for {
		b, ok := sv.readByte()
		if !ok {
			break
		}
		sv.lineAsm.Feed(b, sv.sys)
		if sv.sys.Stop {
			sv.lineAsm.Reset()
			return
		}
	}

	for {
		line, ok := sv.lineAsm.PopLine()
		if !ok {
			return
		}
		sv.executeLine(line)
	}
}

func (sv *Supervisor) executeLine(line string) {
	status := sv.interp.Execute(line)
	switch status {
	case gcode.StatusOK:
		sv.enc.OK()
	case gcode.StatusOldSettings:
		sv.enc.Error("STATUS_OLD_SETTINGS")
	default:
		sv.enc.Error("STATUS_INVALID_STATEMENT")
	}
}

// runIdleDetach matches System.cpp's per-loop idle-detach sweep and the
// "persist only when all axes are detached" persistence rule. Both
// attach-state checks happen every foreground pass, not just on a
// timer, so a freshly-idle machine persists promptly rather than
// waiting for the next scheduled save.
func (sv *Supervisor) runIdleDetach() {
	sv.left.DetachIfIdle()
	sv.right.DetachIfIdle()
	if sv.zAttached && sv.z != nil {
		sv.z.DetachIfIdle()
	}

	nowAllDetached := !sv.left.Gearbox.Motor.Attached() && !sv.right.Gearbox.Motor.Attached()
	if sv.zAttached && sv.z != nil {
		nowAllDetached = nowAllDetached && !sv.z.Gearbox.Motor.Attached()
	}

	if nowAllDetached && !sv.allDetached && sv.persist != nil {
		sv.persist()
	}
	sv.allDetached = nowAllDetached
}

// maybeReport emits the periodic status line and the position-error
// watchdog check, no more often than minReportIntervalUs apart,
// matching returnPoz's POSITIONTIMEOUT gate.
func (sv *Supervisor) maybeReport() {
	now := core.GetTime()
	if now-sv.lastReportTimeUs < minReportIntervalUs {
		return
	}
	sv.lastReportTimeUs = now

	state := report.StateIdle
	switch {
	case sv.sys.Stop:
		state = report.StateStop
	case sv.sys.HasPause():
		state = report.StatePause
	}

	conv := sv.sys.InchesToMMConversion
	zPos := 0.0
	if sv.zAttached && sv.z != nil {
		zPos = sv.z.Read()
	}
	sv.enc.Status(state, sv.sys.XPosition/conv, sv.sys.YPosition/conv, zPos/conv)

	leftErr, rightErr := sv.left.Error(), sv.right.Error()
	sv.enc.PositionError(leftErr, rightErr, sv.lineAsm.Available())

	sv.checkPositionWatchdog(leftErr, rightErr)
}

// checkPositionWatchdog raises ALARM_POSITION_LIMIT_ERROR and sets stop
// when either chain's tracking error exceeds PositionErrorLimit and
// STATE_POS_ERR_IGNORE isn't set, matching returnError's alarm path.
func (sv *Supervisor) checkPositionWatchdog(leftErr, rightErr float64) {
	if sv.sys.Stop || sv.sys.HasState(system.StatePosErrIgnore) {
		return
	}
	limit := sv.settings.PositionErrorLimit
	if absF(leftErr) >= limit || absF(rightErr) >= limit {
		sv.enc.Alarm("The sled is not keeping up with its expected position and has halted.")
		sv.sys.SetState(system.StateAlarm)
		sv.sys.Stop = true
	}
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
