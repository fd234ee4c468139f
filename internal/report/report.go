// Package report formats the host-facing serial protocol described in
// the host-facing serial protocol: line acknowledgements, the periodic status line, the
// position-error line, probe/measurement results, and alarms. Ported
// from original_source/Report.cpp's reportStatusMessage, returnPoz,
// returnError, and reportAlarmMessage, adapted from per-call-site
// Serial.print chains to single Fprintf calls per line.
package report

import (
	"fmt"
	"io"

	"sledctl/internal/gcode"
)

// Encoder writes protocol lines to w (normally the serial Port the
// supervisor drains foreground work against). It also implements
// gcode.Reporter so the interpreter's informational messages and this
// package's structured lines share one sink.
type Encoder struct {
	w io.Writer
}

// New wraps w as a report encoder.
func New(w io.Writer) *Encoder { return &Encoder{w: w} }

var _ gcode.Reporter = (*Encoder)(nil)

// Message writes a free-form informational line, satisfying
// gcode.Reporter for the interpreter's tool-change prompts,
// unsupported-code notices, and the like.
func (e *Encoder) Message(format string, args ...any) {
	fmt.Fprintf(e.w, format+"\n", args...)
}

// OK acknowledges a successfully executed line, matching
// reportStatusMessage(STATUS_OK).
func (e *Encoder) OK() {
	fmt.Fprint(e.w, "ok\n")
}

// Error reports a per-line failure by its STATUS_* code name, matching
// reportStatusMessage's non-zero path.
func (e *Encoder) Error(code string) {
	fmt.Fprintf(e.w, "error: %s\n", code)
}

// State is the three-way machine state reported in a status line's
// leading field, matching returnPoz's Stop/Pause/Idle selection.
type State string

const (
	StateIdle  State = "Idle"
	StateStop  State = "Stop"
	StatePause State = "Pause"
)

// Status writes the periodic "<State,MPos:x,y,z,WPos:0.000,0.000,0.000>"
// line, matching returnPoz. Positions are already in the caller's
// current display units (the supervisor divides by
// sys.InchesToMMConversion before handing them here, same as the
// source).
func (e *Encoder) Status(state State, mx, my, mz float64) {
	fmt.Fprintf(e.w, "<%s,MPos:%g,%g,%g,WPos:0.000,0.000,0.000>\n", state, mx, my, mz)
}

// PositionError writes the "[PE:lErr,rErr,bufferSpace]" line, matching
// returnError's first three prints.
func (e *Encoder) PositionError(leftErr, rightErr float64, bufferSpace int) {
	fmt.Fprintf(e.w, "[PE:%g,%g,%d]\n", leftErr, rightErr, bufferSpace)
}

// Measure writes a probe/measurement report, matching GCode.cpp's
// "[Measure: <value>]" line printed after a successful G38.2 probe.
func (e *Encoder) Measure(value float64) {
	fmt.Fprintf(e.w, "[Measure: %g]\n", value)
}

// Alarm writes an "ALARM: <text>" line, matching reportAlarmMessage.
func (e *Encoder) Alarm(text string) {
	fmt.Fprintf(e.w, "ALARM: %s\n", text)
}
