package report

import (
	"bytes"
	"strings"
	"testing"
)

func TestStatusLineFormat(t *testing.T) {
	var buf bytes.Buffer
	e := New(&buf)
	e.Status(StateIdle, 100.5, -3, 0)

	got := buf.String()
	want := "<Idle,MPos:100.5,-3,0,WPos:0.000,0.000,0.000>\n"
	if got != want {
		t.Fatalf("Status() = %q, want %q", got, want)
	}
}

func TestPositionErrorLine(t *testing.T) {
	var buf bytes.Buffer
	e := New(&buf)
	e.PositionError(0.1, -0.2, 64)

	got := buf.String()
	if got != "[PE:0.1,-0.2,64]\n" {
		t.Fatalf("PositionError() = %q", got)
	}
}

func TestOKAndError(t *testing.T) {
	var buf bytes.Buffer
	e := New(&buf)
	e.OK()
	e.Error("STATUS_BAD_NUMBER_FORMAT")

	got := buf.String()
	if !strings.Contains(got, "ok\n") || !strings.Contains(got, "error: STATUS_BAD_NUMBER_FORMAT\n") {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestAlarmLine(t *testing.T) {
	var buf bytes.Buffer
	e := New(&buf)
	e.Alarm("Position Lost")

	if buf.String() != "ALARM: Position Lost\n" {
		t.Fatalf("Alarm() = %q", buf.String())
	}
}

func TestMeasureLine(t *testing.T) {
	var buf bytes.Buffer
	e := New(&buf)
	e.Measure(-3.7)

	if buf.String() != "[Measure: -3.7]\n" {
		t.Fatalf("Measure() = %q", buf.String())
	}
}
