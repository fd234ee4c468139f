// Command sledctl boots a complete two-chain hanging-sled motion-control
// core: settings, kinematics, the left/right/Z axes, the motion planner,
// the G-code front end, and the realtime supervisor, wired together the
// way targets/rp2040/main.go wires the Klipper-protocol stack, but over
// this module's host-runnable components and a flag-configured serial
// link in place of USB-CDC.
package main

import (
	"flag"
	"fmt"
	"os"

	"sledctl/core"
	"sledctl/hal/sim"
	"sledctl/internal/axis"
	"sledctl/internal/encoder"
	"sledctl/internal/gcode"
	"sledctl/internal/kinematics"
	"sledctl/internal/motor"
	"sledctl/internal/planner"
	"sledctl/internal/report"
	"sledctl/internal/settings"
	"sledctl/internal/supervisor"
	"sledctl/internal/system"
	"sledctl/serialport"
)

// tickIntervalUs matches the original firmware's Config.h LOOPINTERVAL
// (10 ms / 100 Hz), also the default tick period spec.md calls out.
const tickIntervalUs = 10000

// Pin assignments for the simulated GPIO/PWM backend. Which physical pins
// a real board wires these signals to is a board-revision concern left
// out of scope here; these constants only give the simulator
// something to key watchers and PWM channels by.
const (
	leftEncoderA core.GPIOPin = iota
	leftEncoderB
	leftDir1
	leftDir2
	leftPWM
	rightEncoderA
	rightEncoderB
	rightDir1
	rightDir2
	rightPWM
	zEncoderA
	zEncoderB
	zDir1
	zDir2
	zPWM
)

func main() {
	device := flag.String("device", "/dev/ttyACM0", "Serial device path")
	baud := flag.Int("baud", 115200, "Baud rate (ignored over a simulated link)")
	simulate := flag.Bool("simulate", true, "Run against the in-memory GPIO/PWM simulator instead of real hardware")
	settingsPath := flag.String("settings", "", "Path to a JSON settings file (factory defaults if empty)")
	flag.Parse()

	fmt.Println("sledctl - two-chain hanging-sled motion control core")
	fmt.Println("=====================================================")

	store := settingsStore(*settingsPath)
	s, steps, oldSettings, err := settings.Load(store)
	if err != nil {
		fmt.Printf("settings: %v, booting with factory defaults\n", err)
	}
	if oldSettings {
		fmt.Println("warning: no valid saved settings found; the four calibration keys must be rewritten before normal operation")
	}

	drv := sim.New()
	core.SetGPIODriver(drv)
	core.SetPWMDriver(drv)

	sys := system.New()
	geom := kinematics.New(&s)

	left := buildAxis(&s, s.PositionPID, leftEncoderA, leftEncoderB, leftDir1, leftDir2, leftPWM, steps[0])
	left.SetName('L')
	right := buildAxis(&s, s.PositionPID, rightEncoderA, rightEncoderB, rightDir1, rightDir2, rightPWM, steps[1])
	right.SetName('R')

	var z *axis.Axis
	if s.ZAttached {
		z = buildAxis(&s, s.ZPositionPID, zEncoderA, zEncoderB, zDir1, zDir2, zPWM, steps[2])
		z.SetName('Z')
	}

	sv := supervisor.New(sys, &s, left, right, z, s.ZAttached, tickIntervalUs)
	move := planner.New(geom, left, right, z, &s, tickIntervalUs, sv)

	port, err := openPort(*device, *baud, *simulate)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer port.Close()

	enc := report.New(port)
	interp := gcode.New(sys, &s, geom, move, sv, left, right, z, enc)
	lineAsm := gcode.NewLineAssembler(gcode.DefaultRingBufferSize)

	readByte := func() (byte, bool) {
		var b [1]byte
		n, readErr := port.Read(b[:])
		if n == 0 || readErr != nil {
			return 0, false
		}
		return b[0], true
	}
	persistNow := func() { persist(store, s, left, right, z) }

	sv.Wire(interp, enc, lineAsm, readByte, persistNow)
	sv.Start()

	fmt.Println("ready")
	for {
		core.ProcessTimers()
		sv.RunForeground()
	}
}

// buildAxis wires one encoder/motor pair into a Gearbox and Axis, tunes
// both PID loops from s, and restores the axis's persisted step count.
func buildAxis(s *settings.Settings, positionPID settings.PIDGains, pinA, pinB, dir1, dir2, pwm core.GPIOPin, savedSteps int64) *axis.Axis {
	enc := encoder.New(pinA, pinB)
	if err := enc.Setup(); err != nil {
		fmt.Fprintf(os.Stderr, "encoder setup: %v\n", err)
	}
	enc.Write(savedSteps)

	m := motor.NewStandard(dir1, dir2, pwm)
	if err := m.Setup(); err != nil {
		fmt.Fprintf(os.Stderr, "motor setup: %v\n", err)
	}

	gb := axis.NewGearbox(enc, m, tickIntervalUs, s.EncoderStepsPerRev)
	gb.SetPIDValues(&s.VelocityPID.Kp, &s.VelocityPID.Ki, &s.VelocityPID.Kd, &s.VelocityPID.PropWeight)

	a := axis.NewAxis(gb, s.DistancePerRotation, s.EncoderStepsPerRev, tickIntervalUs, s.AxisDetachTimeMs*1000)
	a.SetPIDValues(&positionPID.Kp, &positionPID.Ki, &positionPID.Kd, &positionPID.PropWeight)
	return a
}

// persist writes the current settings and the left, right and (when
// non-nil) Z axes' step counts to store, matching the supervisor's
// all-axes-detached save.
func persist(store settings.Store, s settings.Settings, left, right, z *axis.Axis) {
	var steps [3]int64
	steps[0] = left.Gearbox.Encoder.Read()
	steps[1] = right.Gearbox.Encoder.Read()
	if z != nil {
		steps[2] = z.Gearbox.Encoder.Read()
	}
	if err := settings.Persist(store, s, steps); err != nil {
		fmt.Fprintf(os.Stderr, "settings: persist failed: %v\n", err)
	}
}

// settingsStore returns a file-backed Store when path is non-empty, or an
// in-memory one that starts with no saved data (forcing factory defaults
// plus the old-settings lock) otherwise.
func settingsStore(path string) settings.Store {
	if path == "" {
		return &settings.MemStore{}
	}
	return &settings.FileStore{Path: path}
}

// openPort opens the real serial device, or an in-memory Loopback under
// -simulate, matching the host CLI's simulate/real split without
// requiring hardware to exercise the front end end-to-end.
func openPort(device string, baud int, simulate bool) (serialport.Port, error) {
	if simulate {
		fmt.Println("using simulated serial loopback (no physical device opened)")
		return serialport.NewLoopback(), nil
	}
	fmt.Printf("opening %s at %d baud...\n", device, baud)
	cfg := serialport.DefaultConfig(device)
	cfg.Baud = baud
	return serialport.Open(cfg)
}
