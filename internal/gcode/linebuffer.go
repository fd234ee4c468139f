package gcode

import "sledctl/internal/system"

// LineAssembler reproduces readSerialCommands' out-of-band handling in
// front of the line-assembling RingBuffer: '!' aborts the machine
// immediately, '~' releases a user pause, and '?' (a host heartbeat) is
// discarded — none of the three ever enter the buffered line. Every
// other byte is queued until PopLine finds a newline or the buffer
// overflows, at which point the caller's stop flag is already set.
type LineAssembler struct {
	buf          *RingBuffer
	quickCommand bool
}

// NewLineAssembler allocates a line assembler backed by a RingBuffer of
// the given byte capacity (DefaultRingBufferSize on real hardware).
func NewLineAssembler(capacity int) *LineAssembler {
	return &LineAssembler{buf: NewRingBuffer(capacity)}
}

// Feed processes one incoming serial byte against sys's stop/pause
// flags, ported from GCode.cpp's readSerialCommands byte loop.
func (a *LineAssembler) Feed(c byte, sys *system.System) {
	switch {
	case c == '!':
		sys.Stop = true
		a.buf.Empty()
		a.quickCommand = true
		sys.ClearPause(system.PauseFlagUser)
	case c == '~':
		a.quickCommand = true
		sys.ClearPause(system.PauseFlagUser)
	case a.quickCommand && c == '\n':
		// swallow the line ending that followed a quick command
		a.quickCommand = false
	case c == '?':
		// discarded; host heartbeat
	default:
		a.quickCommand = false
		if !a.buf.Push(c) {
			sys.Stop = true
		}
	}
}

// PopLine removes and returns the oldest complete line, or ("", false)
// if none is ready yet.
func (a *LineAssembler) PopLine() (string, bool) { return a.buf.PopLine() }

// Reset discards any partially or fully buffered input, used after a
// stop to match initGCode's incSerialBuffer.empty().
func (a *LineAssembler) Reset() {
	a.buf.Empty()
	a.quickCommand = false
}

// Available reports the number of bytes currently queued, used by the
// host report encoder's "[PE:lErr,rErr,bufferSpace]" line.
func (a *LineAssembler) Available() int { return a.buf.Available() }
