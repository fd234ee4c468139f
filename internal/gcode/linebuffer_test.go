package gcode

import (
	"testing"

	"sledctl/internal/system"
)

func feedString(a *LineAssembler, sys *system.System, s string) {
	for i := 0; i < len(s); i++ {
		a.Feed(s[i], sys)
	}
}

func TestLineAssemblerAssemblesCompleteLine(t *testing.T) {
	sys := system.New()
	a := NewLineAssembler(DefaultRingBufferSize)

	feedString(a, sys, "G1 X10\n")

	line, ok := a.PopLine()
	if !ok || line != "G1 X10" {
		t.Fatalf("PopLine() = (%q, %v), want (\"G1 X10\", true)", line, ok)
	}
	if _, ok := a.PopLine(); ok {
		t.Fatalf("expected no further complete line")
	}
}

func TestLineAssemblerBangStopsImmediatelyWithoutBufferingLine(t *testing.T) {
	sys := system.New()
	a := NewLineAssembler(DefaultRingBufferSize)

	feedString(a, sys, "G1 X10!\n")

	if !sys.Stop {
		t.Fatalf("expected '!' to set sys.Stop")
	}
	if sys.HasPause() {
		t.Fatalf("expected '!' to clear any user pause, not set one")
	}
	if a.Available() != 0 {
		t.Fatalf("expected '!' to discard in-flight bytes, got %d queued", a.Available())
	}
}

func TestLineAssemblerTildeClearsUserPauseWithoutStopping(t *testing.T) {
	sys := system.New()
	sys.SetPause(system.PauseFlagUser)
	a := NewLineAssembler(DefaultRingBufferSize)

	a.Feed('~', sys)

	if sys.Stop {
		t.Fatalf("'~' should not set sys.Stop")
	}
	if sys.HasPause() {
		t.Fatalf("expected '~' to clear the user pause")
	}
}

func TestLineAssemblerQuestionMarkIsDiscarded(t *testing.T) {
	sys := system.New()
	a := NewLineAssembler(DefaultRingBufferSize)

	a.Feed('?', sys)

	if a.Available() != 0 {
		t.Fatalf("expected '?' to be discarded, got %d queued bytes", a.Available())
	}
	if sys.Stop {
		t.Fatalf("'?' should never set sys.Stop")
	}
}

func TestLineAssemblerOverflowSetsStop(t *testing.T) {
	sys := system.New()
	a := NewLineAssembler(8)

	feedString(a, sys, "01234567890123")

	if !sys.Stop {
		t.Fatalf("expected buffer overflow to set sys.Stop")
	}
}

func TestLineAssemblerResetDiscardsPartialInput(t *testing.T) {
	sys := system.New()
	a := NewLineAssembler(DefaultRingBufferSize)

	feedString(a, sys, "G1 X10")
	a.Reset()

	if a.Available() != 0 {
		t.Fatalf("expected Reset to empty the buffer, got %d queued bytes", a.Available())
	}
	if _, ok := a.PopLine(); ok {
		t.Fatalf("expected no complete line after Reset")
	}
}
