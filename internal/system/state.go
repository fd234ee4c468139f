// Package system holds the machine-wide state shared by the G-code
// front end, the motion planner, and the realtime supervisor: the
// cached tool-head position, unit/mode flags, and the state bitset
// described by the machine's operating-state model. Grounded on
// original_source/Maslow.h's global `sys`/`sysSettings` variables,
// generalized into a constructor-injected struct instead of a
// cross-component global.
package system

// StateFlag is one bit of the machine's operating-state bitset,
// matching original_source/Maslow.h's STATE_* constants.
type StateFlag uint16

const (
	StateIdle StateFlag = 1 << iota
	StateAlarm
	StateCheck
	StateOldSettings
	StateCycle
	StateHold
	StateMotionCancel
	StatePosErrIgnore
)

// PauseFlag is one bit of the pause-reason bitset (sys.pause in the
// source), kept distinct from the main state bitset because a user
// pause and a safety pause clear independently.
type PauseFlag uint8

const (
	PauseFlagUser PauseFlag = 1 << iota
	PauseFlagSafety
)

// System is the shared machine state. Stop is checked every planner
// tick; State, Pause, and the cached position are read and written by
// the G-code front end and the supervisor.
type System struct {
	Stop  bool
	Pause PauseFlag
	State StateFlag

	XPosition, YPosition float64

	LastGNumber int

	// InchesToMMConversion is 1.0 in millimeter mode (G21) and 25.4 in
	// inch mode (G20), matching the source's sys.inchesToMMConversion.
	InchesToMMConversion float64

	RelativeUnits bool
	FeedRate      float64
}

// New returns a System in its post-boot default state: idle, absolute,
// millimeter units, zeroed position.
func New() *System {
	return &System{
		State:                StateIdle,
		InchesToMMConversion: 1.0,
		FeedRate:             800,
	}
}

// HasState reports whether every bit in flags is set.
func (s *System) HasState(flags StateFlag) bool { return s.State&flags == flags }

// SetState sets the given bits without disturbing the others.
func (s *System) SetState(flags StateFlag) { s.State |= flags }

// ClearState clears exactly the given bits without disturbing the
// others. The source has one call site that clears a bit by OR-ing in
// a logical-NOT of the flag constant instead of AND-ing in a bitwise
// NOT (`state |= (!POS_ERR_IGNORE)` where `state &= ~POS_ERR_IGNORE`
// was intended) — that is reproduced
// here as the corrected bitwise form, not the logical-NOT bug, since
// the bug's actual effect in C (OR-ing in 0 whenever the flag constant
// is nonzero, so the bit is never cleared) is not a behavior worth
// preserving for its own sake the way the kinematics trig error bounds
// are.
func (s *System) ClearState(flags StateFlag) { s.State &^= flags }

// HasPause reports whether any pause bit is set.
func (s *System) HasPause() bool { return s.Pause != 0 }

// SetPause sets the given pause bit.
func (s *System) SetPause(flag PauseFlag) { s.Pause |= flag }

// ClearPause clears the given pause bit.
func (s *System) ClearPause(flag PauseFlag) { s.Pause &^= flag }
