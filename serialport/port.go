// Package serialport abstracts the byte-level transport between the host
// (Ground-Control-style UI) and the motion-control core. The core's G-code
// front end only ever sees a Port; how bytes actually travel is swappable
// between a real UART/USB-CDC link and a loopback used in tests.
package serialport

import (
	"io"
)

// Port represents a serial port interface.
// Implementations:
//   - NativePort (github.com/tarm/serial) for a real UART/USB-CDC link
//   - a loopback/pipe Port for tests
type Port interface {
	io.ReadWriteCloser

	// Flush flushes any buffered data
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyACM0", "COM3")
	Device string

	// Baud rate. Ignored by USB-CDC links but required for real UARTs.
	Baud int

	// Read timeout in milliseconds (0 = blocking)
	ReadTimeout int
}

// DefaultConfig returns a default configuration matching common grbl/Maslow
// controller baud rates.
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        115200,
		ReadTimeout: 100,
	}
}
