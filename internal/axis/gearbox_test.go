package axis

import (
	"testing"

	"sledctl/core"
	"sledctl/hal/sim"
	"sledctl/internal/encoder"
	"sledctl/internal/motor"
)

func newTestGearbox(t *testing.T) (*sim.Driver, *Gearbox) {
	t.Helper()
	drv := sim.New()
	core.SetGPIODriver(drv)
	core.SetPWMDriver(drv)
	core.SetTime(0)

	enc := encoder.New(1, 2)
	if err := enc.Setup(); err != nil {
		t.Fatalf("encoder Setup: %v", err)
	}
	m := motor.NewStandard(3, 4, 5)
	if err := m.Setup(); err != nil {
		t.Fatalf("motor Setup: %v", err)
	}

	return drv, NewGearbox(enc, m, testLoopIntervalUs, testEncoderSteps)
}

func TestComputeSpeedApproachesZeroAsStillTimeGrows(t *testing.T) {
	_, g := newTestGearbox(t)

	core.SetTime(1000)
	early := g.computeSpeed()

	core.SetTime(1000000) // a full second with no further encoder edges
	late := g.computeSpeed()

	if abs(late) >= abs(early) {
		t.Fatalf("computeSpeed() did not shrink as still-time grew: early=%v late=%v", early, late)
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func TestComputeSpeedSignMatchesDirectionOfLargeMotion(t *testing.T) {
	_, g := newTestGearbox(t)

	core.SetTime(1000)
	g.Encoder.Write(100) // a jump larger than the 3-step noise threshold
	core.SetTime(2000)

	got := g.computeSpeed()
	if got >= 0 {
		t.Fatalf("computeSpeed() = %v, want negative (final sign flip) for forward motion", got)
	}
}

func TestSetEncoderResolutionRescalesRPM(t *testing.T) {
	_, g := newTestGearbox(t)

	g.SetEncoderResolution(1000)
	before := g.encoderStepsToRPMScale

	g.SetEncoderResolution(2000)
	after := g.encoderStepsToRPMScale

	if after != before/2 {
		t.Fatalf("encoderStepsToRPMScale after doubling resolution = %v, want %v", after, before/2)
	}
}

func TestAggressivenessScalesKpOnly(t *testing.T) {
	_, g := newTestGearbox(t)
	kp, ki, kd, p := 2.0, 0.5, 0.0, 0.5
	g.SetPIDValues(&kp, &ki, &kd, &p)

	g.SetPIDAggressiveness(3.0)

	if got := g.controller.Kp(); got != 6.0 {
		t.Fatalf("Kp after aggressiveness scale = %v, want 6.0", got)
	}
}

func TestComputePIDIntegratesOntoMotorSpeed(t *testing.T) {
	_, g := newTestGearbox(t)
	kp, ki, kd, p := 1.0, 0.0, 0.0, 1.0
	g.SetPIDValues(&kp, &ki, &kd, &p)

	g.Write(50) // target 50 RPM, current speed estimate 0
	g.ComputePID()

	if g.Motor.LastSpeed() == 0 {
		t.Fatalf("ComputePID did not command any motor speed for a large RPM error")
	}
}
