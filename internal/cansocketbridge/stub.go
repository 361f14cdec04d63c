//go:build !linux

package cansocketbridge

import (
	"errors"

	"github.com/kstaniek/bxcan/internal/can"
)

// ErrUnsupported is returned by Open on platforms without AF_CAN sockets, so
// cmd/bxcan-sim can compile and degrade gracefully off Linux.
var ErrUnsupported = errors.New("cansocketbridge: SocketCAN is only available on linux")

type Device struct{}

func Open(iface string) (*Device, error) { return nil, ErrUnsupported }

func (d *Device) Close() error { return nil }

func (d *Device) ReadFrame(*can.Frame) error { return ErrUnsupported }

func (d *Device) WriteFrame(can.Frame) error { return ErrUnsupported }
