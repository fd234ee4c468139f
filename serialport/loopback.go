package serialport

import "bytes"

// Loopback is an in-memory Port used by tests: writes to it are readable
// back out, and Inject lets a test simulate host-sent bytes.
type Loopback struct {
	in  bytes.Buffer
	out bytes.Buffer
}

// NewLoopback returns a ready-to-use in-memory Port.
func NewLoopback() *Loopback {
	return &Loopback{}
}

// Inject appends bytes as if received from the remote end.
func (l *Loopback) Inject(b []byte) {
	l.in.Write(b)
}

// Written returns everything written to the port so far.
func (l *Loopback) Written() []byte {
	return l.out.Bytes()
}

func (l *Loopback) Read(b []byte) (int, error) {
	return l.in.Read(b)
}

func (l *Loopback) Write(b []byte) (int, error) {
	return l.out.Write(b)
}

func (l *Loopback) Close() error {
	return nil
}

func (l *Loopback) Flush() error {
	return nil
}
