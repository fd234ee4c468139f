package gcode

import "sledctl/internal/system"

// FirmwareVersion is reported by B05, matching the source's
// VERSIONNUMBER string (this port tracks Firmware-1.24).
const FirmwareVersion = "1.24"

// executeB dispatches a 'B'-prefixed line, ported from GCode.cpp's
// executeBcodeLine. Calibration/diagnostic B-codes that need real
// motor hardware (B02 chain calibration, B09/B11/B13/B14/B16 direct
// motor/PID exercise, B15 center-chain adjust) are out of scope per
// this implementation's own non-goals around calibration hardware, but the
// dispatch surface recognizes them by name rather than falling through
// to STATUS_INVALID_STATEMENT, so a front end talking to this module
// doesn't see a real Maslow's B-command vocabulary as unrecognized.
func (in *Interpreter) executeB(line string) Status {
	code := ""
	if len(line) >= 3 {
		code = line[:3]
	}

	switch code {
	case "B05":
		in.report.Message("Firmware Version %s", FirmwareVersion)
		return StatusOK
	}

	if in.sys.HasState(system.StateOldSettings) {
		return StatusOldSettings
	}

	switch code {
	case "B01":
		in.report.Message("Motor Calibration Not Needed")
		return StatusOK
	case "B04":
		return in.executeB04()
	case "B02", "B06", "B08", "B09", "B10", "B11", "B13", "B14", "B15", "B16":
		in.report.Message("%s not supported in this build.", code)
		return StatusOK
	}
	return StatusInvalidStatement
}

// executeB04 self-tests each axis (motor directly driven, encoder
// checked for observed motion) with the position-error limit
// suspended for the duration, matching GCode.cpp's B04. The source
// re-enables the limit with `sys.state = (sys.state | (!STATE_POS_ERR_IGNORE))`,
// a logical-NOT where a bitwise-AND-NOT was clearly intended; this reproduces the corrected
// ClearState(StatePosErrIgnore) instead.
func (in *Interpreter) executeB04() Status {
	in.sys.SetState(system.StatePosErrIgnore)

	if in.host.Stopped() {
		in.sys.ClearState(system.StatePosErrIgnore)
		return StatusOK
	}
	if in.left != nil {
		in.left.Test()
	}
	if in.host.Stopped() {
		in.sys.ClearState(system.StatePosErrIgnore)
		return StatusOK
	}
	if in.right != nil {
		in.right.Test()
	}
	if in.host.Stopped() {
		in.sys.ClearState(system.StatePosErrIgnore)
		return StatusOK
	}
	if in.z != nil {
		in.z.Test()
	}
	in.report.Message("Tests complete.")

	in.sys.ClearState(system.StatePosErrIgnore)
	return StatusOK
}
