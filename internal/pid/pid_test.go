package pid

import "testing"

func newTestController(pOn float64) (*Controller, *float64, *float64, *float64) {
	input, output, setpoint := new(float64), new(float64), new(float64)
	kp, ki, kd, p := ptr(1.0), ptr(0.5), ptr(0.1), ptr(pOn)
	c := New(input, output, setpoint, kp, ki, kd, p, Direct)
	c.SetOutputLimits(-255, 255)
	c.SetMode(Automatic)
	return c, input, output, setpoint
}

func ptr(v float64) *float64 { return &v }

func TestOutputAndIntegratorStayWithinClamps(t *testing.T) {
	c, input, _, setpoint := newTestController(1.0)
	*setpoint = 1000 // large step to try to saturate

	for i := 0; i < 200; i++ {
		c.Compute()
		*input += 0.01 // slow-moving plant
		if c.ITerm() > 255 || c.ITerm() < -255 {
			t.Fatalf("outputSum escaped clamp: %v", c.ITerm())
		}
		if *c.output > 255 || *c.output < -255 {
			t.Fatalf("output escaped clamp: %v", *c.output)
		}
	}
}

func TestManualModeDoesNotUpdateOutput(t *testing.T) {
	c, _, output, setpoint := newTestController(1.0)
	c.SetMode(Manual)
	*output = 42
	*setpoint = 100

	if c.Compute() {
		t.Fatalf("Compute() returned true while in Manual mode")
	}
	if *output != 42 {
		t.Fatalf("output changed in Manual mode: %v", *output)
	}
}

func TestBumplessReArmSeedsFromCurrentState(t *testing.T) {
	c, input, output, _ := newTestController(1.0)
	c.SetMode(Manual)
	*output = 77
	*input = 10

	c.SetMode(Automatic) // manual -> auto transition must be bumpless

	if c.ITerm() != 77 {
		t.Fatalf("outputSum after re-arm = %v, want 77 (seeded from output)", c.ITerm())
	}
}

func TestReverseDirectionNegatesGains(t *testing.T) {
	input, output, setpoint := new(float64), new(float64), new(float64)
	kp, ki, kd, p := ptr(2.0), ptr(0.0), ptr(0.0), ptr(1.0)
	c := New(input, output, setpoint, kp, ki, kd, p, Reverse)
	c.SetOutputLimits(-255, 255)
	c.SetMode(Automatic)

	*setpoint = 10
	*input = 0
	c.Compute()

	// error = 10, direct Kp would give +20; reverse must give -20.
	if *output >= 0 {
		t.Fatalf("output = %v, want negative under Reverse direction", *output)
	}
}

func TestProportionalOnMeasurementAvoidsDerivativeKick(t *testing.T) {
	// pOn=0: pure P-on-measurement. A setpoint jump alone (no input change)
	// must not move the output via the proportional term.
	input, output, setpoint := new(float64), new(float64), new(float64)
	kp, ki, kd, p := ptr(5.0), ptr(0.0), ptr(0.0), ptr(0.0)
	c := New(input, output, setpoint, kp, ki, kd, p, Direct)
	c.SetOutputLimits(-255, 255)
	c.SetMode(Automatic)
	c.Compute()

	before := *output
	*setpoint = 1000 // big setpoint jump, input unchanged
	c.Compute()

	if *output != before {
		t.Fatalf("pure P-on-measurement output jumped on setpoint step: before=%v after=%v", before, *output)
	}
}
