package encoder

import (
	"testing"

	"sledctl/core"
	"sledctl/hal/sim"
)

func setup(t *testing.T) (*sim.Driver, *Reader) {
	t.Helper()
	drv := sim.New()
	core.SetGPIODriver(drv)
	// Pulled-up inputs idle high in the simulator; start both phases low
	// so the sequences below begin from state 00.
	drv.SetPin(0, false)
	drv.SetPin(1, false)
	r := New(0, 1)
	if err := r.Setup(); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	return drv, r
}

func TestReaderCountsForwardQuadrature(t *testing.T) {
	drv, r := setup(t)

	// Standard forward quadrature sequence: 00 -> 01 -> 11 -> 10 -> 00
	sequence := []struct {
		a, b bool
	}{
		{false, true},
		{true, true},
		{true, false},
		{false, false},
	}

	for _, step := range sequence {
		drv.SetPin(0, step.a)
		drv.SetPin(1, step.b)
	}

	if got := r.Read(); got != 4 {
		t.Fatalf("Read() = %d, want 4", got)
	}
}

func TestReaderCountsReverseQuadrature(t *testing.T) {
	drv, r := setup(t)

	// Mirror image of the forward sequence: 00 -> 10 -> 11 -> 01 -> 00
	sequence := []struct {
		a, b bool
	}{
		{true, false},
		{true, true},
		{false, true},
		{false, false},
	}
	for _, step := range sequence {
		drv.SetPin(0, step.a)
		drv.SetPin(1, step.b)
	}

	if got := r.Read(); got != -4 {
		t.Fatalf("Read() = %d, want -4", got)
	}
}

func TestWriteOverridesPosition(t *testing.T) {
	_, r := setup(t)
	r.Write(12345)
	if r.Read() != 12345 {
		t.Fatalf("Read() = %d, want 12345", r.Read())
	}
}
