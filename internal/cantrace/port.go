// Package cantrace is an optional UART trace sink: it streams a framed
// record of every TX/RX event the driver observes to a serial console, for a
// bench technician tapping a debug port.
package cantrace

import (
	"time"

	"github.com/tarm/serial"
)

// Port abstracts tarm/serial for testability.
type Port interface {
	Write(p []byte) (int, error)
	Close() error
}

// Open opens a serial port for trace output.
func Open(name string, baud int) (Port, error) {
	cfg := &serial.Config{Name: name, Baud: baud, ReadTimeout: time.Second}
	return serial.OpenPort(cfg)
}
