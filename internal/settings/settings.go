// Package settings holds the machine's configuration surface: the
// geometry, PID tunings, and operating limits named in the original
// firmware's settings_t struct, the $<n>=<value> indexed dispatch used to
// edit them at runtime, and a versioned persistence envelope abstracting
// away EEPROM in favor of any byte-oriented Store.
package settings

import "fmt"

// KinematicsType selects which inverse-kinematics model Geometry uses.
type KinematicsType int

const (
	// Triangular is the closed-form both-chains-meet-at-a-point model.
	Triangular KinematicsType = iota
	// Quadrilateral is the rigid-sled, iterative-solve model.
	Quadrilateral
)

// PIDGains bundles one controller's four tunable parameters.
type PIDGains struct {
	Kp, Ki, Kd, PropWeight float64
}

// Settings is the full machine configuration: geometry, kinematics
// variant, PID tunings, and operating limits. Indices 0-42 named in the
// external spec map onto these fields via Get/Set below; not every index
// slot is populated, matching the original firmware's own reserved gaps.
type Settings struct {
	MachineWidth  float64
	MachineHeight float64

	DistBetweenMotors float64
	MotorOffsetY      float64

	SledWidth  float64
	SledHeight float64
	SledCG     float64

	SprocketRadius     float64
	RotationDiskRadius float64

	KinematicsType    KinematicsType
	ChainOverSprocket bool

	ChainSagCorrection      float64
	LeftChainTolerance      float64
	RightChainTolerance     float64
	ChainLength             float64
	ChainCalibrationLength  float64

	AxisDetachTimeMs uint32

	EncoderStepsPerRev  float64
	DistancePerRotation float64
	MaxFeedMmPerMin     float64

	ZAttached       bool
	ZPitchMmPerRev  float64
	ZStepsPerRev    float64
	MaxZRPM         float64
	SpindleAutomate int

	PositionPID  PIDGains
	ZPositionPID PIDGains
	VelocityPID  PIDGains
	ZVelocityPID PIDGains

	PWMPrescalerChoice int
	PositionErrorLimit float64

	PosErrIgnore bool
}

// Default returns the factory-reset configuration, matching the
// original firmware's settingsReset defaults for a standard kit machine.
//
// The original resets sysSettings.zKdPos twice (once mislabeled as the
// Kd slot, shadowing an independent zKpPos initialization) — see
// DESIGN.md's "zKdPos double-assignment" entry. Here ZPositionPID.Kp and
// .Kd are both given their own explicit values rather than reproducing
// the shadow.
func Default() Settings {
	return Settings{
		MachineWidth:      2438.4,
		MachineHeight:     1219.2,
		DistBetweenMotors: 2978.4,
		MotorOffsetY:      463,
		SledWidth:         310,
		SledHeight:        139,
		SledCG:            91,

		SprocketRadius:     10.1,
		RotationDiskRadius: 0,

		KinematicsType:    Triangular,
		ChainOverSprocket: true,

		ChainSagCorrection:     5400,
		LeftChainTolerance:     0,
		RightChainTolerance:    0,
		ChainLength:            3200,
		ChainCalibrationLength: 1003,

		AxisDetachTimeMs: 2000,

		EncoderStepsPerRev:  8148.0,
		DistancePerRotation: 63.5,
		MaxFeedMmPerMin:     3000,

		ZAttached:       false,
		ZPitchMmPerRev:  3.17,
		ZStepsPerRev:    8148.0,
		MaxZRPM:         100,
		SpindleAutomate: 0,

		PositionPID:  PIDGains{Kp: 5, Ki: 0, Kd: 0.05, PropWeight: 0.7},
		ZPositionPID: PIDGains{Kp: 5, Ki: 0, Kd: 0.05, PropWeight: 0.7},
		VelocityPID:  PIDGains{Kp: 0.2, Ki: 0.04, Kd: 0, PropWeight: 1},
		ZVelocityPID: PIDGains{Kp: 0.2, Ki: 0.04, Kd: 0, PropWeight: 1},

		PWMPrescalerChoice: 0,
		PositionErrorLimit: 5,
	}
}

// index binds one $<n> slot to a getter/setter pair over a Settings value.
type index struct {
	get func(*Settings) string
	set func(*Settings, float64) error
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

var indices = map[int]index{
	0:  {func(s *Settings) string { return ftoa(s.MachineWidth) }, func(s *Settings, v float64) error { s.MachineWidth = v; return nil }},
	1:  {func(s *Settings) string { return ftoa(s.MachineHeight) }, func(s *Settings, v float64) error { s.MachineHeight = v; return nil }},
	12: {func(s *Settings) string { return ftoa(s.DistBetweenMotors) }, func(s *Settings, v float64) error { s.DistBetweenMotors = v; return nil }},
	13: {func(s *Settings) string { return ftoa(s.MotorOffsetY) }, func(s *Settings, v float64) error { s.MotorOffsetY = v; return nil }},
	19: {func(s *Settings) string { return ftoa(s.SledWidth) }, func(s *Settings, v float64) error { s.SledWidth = v; return nil }},
	20: {func(s *Settings) string { return ftoa(s.SledHeight) }, func(s *Settings, v float64) error { s.SledHeight = v; return nil }},
	21: {func(s *Settings) string { return ftoa(s.SledCG) }, func(s *Settings, v float64) error { s.SledCG = v; return nil }},
	2:  {func(s *Settings) string { return ftoa(float64(s.KinematicsType)) }, func(s *Settings, v float64) error { s.KinematicsType = KinematicsType(v); return nil }},
	22: {func(s *Settings) string { return ftoa(s.RotationDiskRadius) }, func(s *Settings, v float64) error { s.RotationDiskRadius = v; return nil }},
	3:  {func(s *Settings) string { return ftoa(float64(s.AxisDetachTimeMs)) }, func(s *Settings, v float64) error { s.AxisDetachTimeMs = uint32(v); return nil }},
	4:  {func(s *Settings) string { return ftoa(s.ChainLength) }, func(s *Settings, v float64) error { s.ChainLength = v; return nil }},
	5:  {func(s *Settings) string { return ftoa(s.ChainCalibrationLength) }, func(s *Settings, v float64) error { s.ChainCalibrationLength = v; return nil }},
	6:  {func(s *Settings) string { return ftoa(s.EncoderStepsPerRev) }, func(s *Settings, v float64) error { s.EncoderStepsPerRev = v; return nil }},
	7:  {func(s *Settings) string { return ftoa(s.DistancePerRotation) }, func(s *Settings, v float64) error { s.DistancePerRotation = v; return nil }},
	8:  {func(s *Settings) string { return ftoa(s.MaxFeedMmPerMin) }, func(s *Settings, v float64) error { s.MaxFeedMmPerMin = v; return nil }},
	9:  {func(s *Settings) string { return ftoa(boolToFloat(s.ZAttached)) }, func(s *Settings, v float64) error { s.ZAttached = v != 0; return nil }},
	10: {func(s *Settings) string { return ftoa(float64(s.SpindleAutomate)) }, func(s *Settings, v float64) error { s.SpindleAutomate = int(v); return nil }},
	23: {func(s *Settings) string { return ftoa(s.MaxZRPM) }, func(s *Settings, v float64) error { s.MaxZRPM = v; return nil }},
	24: {func(s *Settings) string { return ftoa(s.ZPitchMmPerRev) }, func(s *Settings, v float64) error { s.ZPitchMmPerRev = v; return nil }},
	25: {func(s *Settings) string { return ftoa(s.ZStepsPerRev) }, func(s *Settings, v float64) error { s.ZStepsPerRev = v; return nil }},
	26: {func(s *Settings) string { return ftoa(s.PositionPID.Kp) }, func(s *Settings, v float64) error { s.PositionPID.Kp = v; return nil }},
	27: {func(s *Settings) string { return ftoa(s.PositionPID.Ki) }, func(s *Settings, v float64) error { s.PositionPID.Ki = v; return nil }},
	28: {func(s *Settings) string { return ftoa(s.PositionPID.Kd) }, func(s *Settings, v float64) error { s.PositionPID.Kd = v; return nil }},
	29: {func(s *Settings) string { return ftoa(s.PositionPID.PropWeight) }, func(s *Settings, v float64) error { s.PositionPID.PropWeight = v; return nil }},
	30: {func(s *Settings) string { return ftoa(s.ZPositionPID.Kp) }, func(s *Settings, v float64) error { s.ZPositionPID.Kp = v; return nil }},
	31: {func(s *Settings) string { return ftoa(s.ZPositionPID.Kd) }, func(s *Settings, v float64) error { s.ZPositionPID.Kd = v; return nil }},
	32: {func(s *Settings) string { return ftoa(s.ZPositionPID.Ki) }, func(s *Settings, v float64) error { s.ZPositionPID.Ki = v; return nil }},
	33: {func(s *Settings) string { return ftoa(s.ZPositionPID.PropWeight) }, func(s *Settings, v float64) error { s.ZPositionPID.PropWeight = v; return nil }},
	34: {func(s *Settings) string { return ftoa(s.VelocityPID.Kp) }, func(s *Settings, v float64) error { s.VelocityPID.Kp = v; return nil }},
	35: {func(s *Settings) string { return ftoa(s.VelocityPID.Ki) }, func(s *Settings, v float64) error { s.VelocityPID.Ki = v; return nil }},
	36: {func(s *Settings) string { return ftoa(s.VelocityPID.Kd) }, func(s *Settings, v float64) error { s.VelocityPID.Kd = v; return nil }},
	37: {func(s *Settings) string { return ftoa(s.VelocityPID.PropWeight) }, func(s *Settings, v float64) error { s.VelocityPID.PropWeight = v; return nil }},
	38: {func(s *Settings) string { return ftoa(s.ChainSagCorrection) }, func(s *Settings, v float64) error { s.ChainSagCorrection = v; return nil }},
	11: {func(s *Settings) string { return ftoa(boolToFloat(s.ChainOverSprocket)) }, func(s *Settings, v float64) error { s.ChainOverSprocket = v != 0; return nil }},
	39: {func(s *Settings) string { return ftoa(float64(s.PWMPrescalerChoice)) }, func(s *Settings, v float64) error { s.PWMPrescalerChoice = int(v); return nil }},
	40: {func(s *Settings) string { return ftoa(s.LeftChainTolerance) }, func(s *Settings, v float64) error { s.LeftChainTolerance = v; return nil }},
	41: {func(s *Settings) string { return ftoa(s.RightChainTolerance) }, func(s *Settings, v float64) error { s.RightChainTolerance = v; return nil }},
	42: {func(s *Settings) string { return ftoa(s.PositionErrorLimit) }, func(s *Settings, v float64) error { s.PositionErrorLimit = v; return nil }},
}

// OldSettingsUnlockIndices are the four keys that must all be rewritten
// before a machine booted with STATE_OLD_SETTINGS will leave that lock,
// matching Settings.cpp's calibration gate (distance between motors,
// motor Y-offset, sled width, sled height).
var OldSettingsUnlockIndices = map[int]bool{12: true, 13: true, 19: true, 20: true}

func ftoa(v float64) string { return fmt.Sprintf("%g", v) }

// Get returns the current value of index n formatted as the $$ dump would
// print it, or an error if n names no setting.
func (s *Settings) Get(n int) (string, error) {
	idx, ok := indices[n]
	if !ok {
		return "", fmt.Errorf("no such setting index: %d", n)
	}
	return idx.get(s), nil
}

// Set stores v into index n, matching settingsStoreGlobalSetting's
// $<n>=<value> dispatch. Returns an error for an unknown index; the
// caller (the G-code front end) turns that into
// STATUS_INVALID_STATEMENT.
func (s *Settings) Set(n int, v float64) error {
	idx, ok := indices[n]
	if !ok {
		return fmt.Errorf("no such setting index: %d", n)
	}
	return idx.set(s, v)
}

// Dump returns every populated index as a "$<n>=<value>" line, in index
// order, matching reportMaslowSettings' machine-readable form.
func (s *Settings) Dump() []string {
	lines := make([]string, 0, len(indices))
	for n := 0; n <= 42; n++ {
		idx, ok := indices[n]
		if !ok {
			continue
		}
		lines = append(lines, fmt.Sprintf("$%d=%s", n, idx.get(s)))
	}
	return lines
}
