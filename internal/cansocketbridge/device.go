//go:build linux

// Package cansocketbridge forwards frames between a bxcan.Device and a real
// Linux SocketCAN interface (e.g. vcan0), so a simulated board can be
// exercised from candump/cansend on the host. It is a structural port of the
// teacher's internal/socketcan device and writer, generalized from "the"
// backend to an optional bridge sitting beside the driver.
package cansocketbridge

import (
	"encoding/binary"
	"fmt"
	"net"

	"golang.org/x/sys/unix"

	"github.com/kstaniek/bxcan/internal/can"
)

const (
	effFlag = 0x80000000
	rtrFlag = 0x40000000
	errFlag = 0x20000000
	sffMask = 0x000007FF
	effMask = 0x1FFFFFFF
)

// Device is a raw AF_CAN socket bound to one SocketCAN interface.
type Device struct {
	fd int
}

// Open binds a raw CAN_RAW socket to iface (e.g. "vcan0").
func Open(iface string) (*Device, error) {
	fd, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW, unix.CAN_RAW)
	if err != nil {
		return nil, fmt.Errorf("socket(AF_CAN): %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_CAN_RAW, unix.CAN_RAW_FD_FRAMES, 0); err != nil {
		if err != unix.ENOPROTOOPT {
			_ = unix.Close(fd)
			return nil, fmt.Errorf("disable CAN FD: %w", err)
		}
	}
	ifi, err := net.InterfaceByName(iface)
	if err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("if %q: %w", iface, err)
	}
	sa := &unix.SockaddrCAN{Ifindex: ifi.Index}
	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("bind(can@%s): %w", iface, err)
	}
	return &Device{fd: fd}, nil
}

func (d *Device) Close() error { return unix.Close(d.fd) }

// ReadFrame reads one classic CAN frame from the socket and decodes it into
// the driver's Frame representation.
func (d *Device) ReadFrame(fr *can.Frame) error {
	var buf [unix.CAN_MTU]byte
	n, err := unix.Read(d.fd, buf[:])
	if err != nil {
		return err
	}
	if n != unix.CAN_MTU {
		return fmt.Errorf("short read: %d", n)
	}

	raw := binary.LittleEndian.Uint32(buf[0:4])
	dlc := int(buf[4])
	if dlc < 0 || dlc > 8 {
		dlc = 8
	}
	extended := raw&effFlag != 0
	rtr := raw&rtrFlag != 0
	var id can.Identifier
	if extended {
		id = can.Identifier(raw & effMask)
	} else {
		id = can.Identifier(raw & sffMask)
	}
	*fr = can.NewFrame(id, extended, rtr, buf[8:8+dlc])
	return nil
}

// WriteFrame encodes fr into the kernel's struct can_frame layout and writes
// it to the socket.
func (d *Device) WriteFrame(fr can.Frame) error {
	var buf [unix.CAN_MTU]byte
	raw := uint32(fr.ID)
	if fr.Extended {
		raw = uint32(fr.ID) & effMask
		raw |= effFlag
	} else {
		raw = uint32(fr.ID) & sffMask
	}
	if fr.RTR {
		raw |= rtrFlag
	}
	binary.LittleEndian.PutUint32(buf[0:4], raw)
	buf[4] = fr.DLC
	copy(buf[8:], fr.Data())
	_, err := unix.Write(d.fd, buf[:])
	return err
}
