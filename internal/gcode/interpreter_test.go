package gcode

import (
	"fmt"
	"math"
	"testing"

	"sledctl/core"
	"sledctl/hal/sim"
	"sledctl/internal/axis"
	"sledctl/internal/encoder"
	"sledctl/internal/kinematics"
	"sledctl/internal/motor"
	"sledctl/internal/planner"
	"sledctl/internal/settings"
	"sledctl/internal/system"
)

const (
	testEncoderSteps    = 8400.0
	testMMPerRevolution = 63.0
	testLoopIntervalUs  = 7000
	testDetachTimeUs    = 2000000
)

type fakeReporter struct {
	messages []string
}

func (r *fakeReporter) Message(format string, args ...any) {
	r.messages = append(r.messages, fmt.Sprintf(format, args...))
}

type freeRunHost struct{}

func (freeRunHost) TickPending() bool { return true }
func (freeRunHost) Stopped() bool     { return false }
func (freeRunHost) RunForeground()    {}

func newTestInterpreter(t *testing.T) (*Interpreter, *fakeReporter, *settings.Settings) {
	t.Helper()
	drv := sim.New()
	core.SetGPIODriver(drv)
	core.SetPWMDriver(drv)
	core.SetTime(0)

	newAxis := func(a, b, dir, pwm, brk core.GPIOPin) *axis.Axis {
		enc := encoder.New(a, b)
		if err := enc.Setup(); err != nil {
			t.Fatalf("encoder Setup: %v", err)
		}
		m := motor.NewStandard(dir, pwm, brk)
		if err := m.Setup(); err != nil {
			t.Fatalf("motor Setup: %v", err)
		}
		gb := axis.NewGearbox(enc, m, testLoopIntervalUs, testEncoderSteps)
		return axis.NewAxis(gb, testMMPerRevolution, testEncoderSteps, testLoopIntervalUs, testDetachTimeUs)
	}

	left := newAxis(1, 2, 3, 4, 5)
	right := newAxis(11, 12, 13, 14, 15)
	z := newAxis(21, 22, 23, 24, 25)

	s := settings.Default()
	s.MaxFeedMmPerMin = 1000
	s.ZAttached = true
	geom := kinematics.New(&s)
	sys := system.New()
	host := freeRunHost{}
	move := planner.New(geom, left, right, z, &s, testLoopIntervalUs, host)
	report := &fakeReporter{}

	in := New(sys, &s, geom, move, host, left, right, z, report)
	return in, report, &s
}

func TestExecuteLinearMoveUpdatesCachedPosition(t *testing.T) {
	in, _, _ := newTestInterpreter(t)

	in.Execute("G1 X300 Y100 F600")

	if math.Abs(in.sys.XPosition-300) > 1e-6 || math.Abs(in.sys.YPosition-100) > 1e-6 {
		t.Fatalf("position after G1 = (%v,%v), want (300,100)", in.sys.XPosition, in.sys.YPosition)
	}
}

func TestExecuteRelativeModeAccumulatesPosition(t *testing.T) {
	in, _, _ := newTestInterpreter(t)

	in.Execute("G91")
	in.Execute("G1 X100 Y0 F600")
	in.Execute("G1 X100 Y0 F600")

	if math.Abs(in.sys.XPosition-200) > 1e-6 {
		t.Fatalf("position after two relative moves = %v, want 200", in.sys.XPosition)
	}
}

func TestExecuteModalGNumberCarriesOverToNextLine(t *testing.T) {
	in, _, _ := newTestInterpreter(t)

	in.Execute("G1 X50 Y0 F600")
	in.Execute("X100 Y0") // no G-number: should reuse G1

	if math.Abs(in.sys.XPosition-100) > 1e-6 {
		t.Fatalf("position after modal continuation = %v, want 100", in.sys.XPosition)
	}
}

func TestExecuteG20SwitchesToInchUnits(t *testing.T) {
	in, _, _ := newTestInterpreter(t)

	in.Execute("G20")
	if in.sys.InchesToMMConversion != 25.4 {
		t.Fatalf("InchesToMMConversion = %v, want 25.4", in.sys.InchesToMMConversion)
	}
	in.Execute("G21")
	if in.sys.InchesToMMConversion != 1.0 {
		t.Fatalf("InchesToMMConversion = %v, want 1.0", in.sys.InchesToMMConversion)
	}
}

func TestExecuteUnsupportedGCodeReportsMessageAndReturnsOK(t *testing.T) {
	in, report, _ := newTestInterpreter(t)

	status := in.Execute("G999")
	if status != StatusOK {
		t.Fatalf("status = %v, want StatusOK", status)
	}
	if len(report.messages) == 0 {
		t.Fatalf("expected an unsupported-code message")
	}
}

func TestExecuteSettingsReadWriteRoundTrips(t *testing.T) {
	in, report, s := newTestInterpreter(t)

	in.Execute("$8=1500")
	if s.MaxFeedMmPerMin != 1500 {
		t.Fatalf("MaxFeedMmPerMin = %v, want 1500", s.MaxFeedMmPerMin)
	}

	in.Execute("$8")
	if len(report.messages) == 0 || report.messages[len(report.messages)-1] != "$8=1500" {
		t.Fatalf("settings read reply = %v, want $8=1500", report.messages)
	}
}

func TestExecuteSettingsWriteToGeometryIndexRecomputesKinematics(t *testing.T) {
	in, _, s := newTestInterpreter(t)
	before, _ := in.geom.Inverse(0, 0)

	in.Execute("$0=3000") // MachineWidth
	after, _ := in.geom.Inverse(0, 0)

	_ = s
	if before != after {
		t.Fatalf("unexpected: on-axis inverse(0,0) should stay symmetric regardless of width (got before=%v after=%v)", before, after)
	}

	// A point off-center should respond to a motor-spacing change.
	beforeA, _ := in.geom.Inverse(300, 0)
	in.Execute("$12=3000") // DistBetweenMotors
	afterA, _ := in.geom.Inverse(300, 0)
	if beforeA == afterA {
		t.Fatalf("geometry-affecting setting write did not trigger a recompute")
	}
}

func TestExecuteRSTDollarReloadsFactoryDefaults(t *testing.T) {
	in, _, s := newTestInterpreter(t)
	in.Execute("$0=3000")
	if s.MachineWidth != 3000 {
		t.Fatalf("setup: MachineWidth = %v, want 3000", s.MachineWidth)
	}

	status := in.Execute("$RST=$")
	if status != StatusOK {
		t.Fatalf("status = %v, want StatusOK", status)
	}
	if s.MachineWidth == 3000 {
		t.Fatalf("$RST=$ did not reload factory defaults")
	}
}

func TestExecuteRSTHashZeroesCachedPosition(t *testing.T) {
	in, _, _ := newTestInterpreter(t)
	in.Execute("G1 X300 Y100 F600")
	if in.sys.XPosition == 0 {
		t.Fatalf("setup: expected nonzero cached position after a move")
	}

	status := in.Execute("$RST=#")
	if status != StatusOK {
		t.Fatalf("status = %v, want StatusOK", status)
	}
	if in.sys.XPosition != 0 || in.sys.YPosition != 0 {
		t.Fatalf("$RST=# left cached position at (%v,%v), want (0,0)", in.sys.XPosition, in.sys.YPosition)
	}
}

func TestExecuteRSTStarClearsStateToIdle(t *testing.T) {
	in, _, _ := newTestInterpreter(t)
	in.sys.SetState(system.StateAlarm)

	status := in.Execute("$RST=*")
	if status != StatusOK {
		t.Fatalf("status = %v, want StatusOK", status)
	}
	if in.sys.State != system.StateIdle {
		t.Fatalf("$RST=* left state = %v, want StateIdle", in.sys.State)
	}
}

func TestExecuteRSTUnknownTargetIsInvalidStatement(t *testing.T) {
	in, _, _ := newTestInterpreter(t)

	status := in.Execute("$RST=?")
	if status != StatusInvalidStatement {
		t.Fatalf("status = %v, want StatusInvalidStatement", status)
	}
}

func TestExecuteUnknownSettingIndexIsInvalidStatement(t *testing.T) {
	in, _, _ := newTestInterpreter(t)

	status := in.Execute("$999=1")
	if status != StatusInvalidStatement {
		t.Fatalf("status = %v, want StatusInvalidStatement", status)
	}
}

func TestExecuteDollarDollarDumpsAllSettings(t *testing.T) {
	in, report, _ := newTestInterpreter(t)

	in.Execute("$$")
	if len(report.messages) < 10 {
		t.Fatalf("expected a full settings dump, got %d lines", len(report.messages))
	}
}

func TestExecuteB05ReportsFirmwareVersion(t *testing.T) {
	in, report, _ := newTestInterpreter(t)

	in.Execute("B05")
	if len(report.messages) == 0 {
		t.Fatalf("expected a version message")
	}
}

func TestExecuteB01ReportsStub(t *testing.T) {
	in, report, _ := newTestInterpreter(t)

	status := in.Execute("B01")
	if status != StatusOK {
		t.Fatalf("status = %v, want StatusOK", status)
	}
	if len(report.messages) == 0 {
		t.Fatalf("expected a message for B01")
	}
}

func TestExecuteB04TogglesPosErrIgnoreAndClearsItAfter(t *testing.T) {
	in, _, _ := newTestInterpreter(t)

	in.Execute("B04")
	if in.sys.HasState(system.StatePosErrIgnore) {
		t.Fatalf("StatePosErrIgnore left set after B04 completed")
	}
}

func TestExecuteMUnsupportedReportsMessage(t *testing.T) {
	in, report, _ := newTestInterpreter(t)

	in.Execute("M999")
	if len(report.messages) == 0 {
		t.Fatalf("expected an unsupported M-code message")
	}
}
