// Package bxcan is a driver for the bxCAN (Basic-Extended CAN) controller on
// a 32-bit microcontroller: three hardware TX mailboxes arbitrated in
// software, two hardware RX FIFOs each backed by a software overflow queue,
// and 14 dual-scale acceptance filter banks. Create builds one CanDevice
// from a Config; Transmit, Receive and SetReceiveFilter are safe for
// concurrent use by multiple goroutines.
package bxcan

import (
	"context"
	"fmt"

	"github.com/kstaniek/bxcan/internal/can"
	"github.com/kstaniek/bxcan/internal/canhw"
	"github.com/kstaniek/bxcan/internal/canreg"
	"github.com/kstaniek/bxcan/internal/cantrace"
)

// Re-exported value types: callers never need to import internal/can.
type (
	Frame        = can.Frame
	Identifier   = can.Identifier
	Config       = can.Config
	ModeOptions  = can.ModeOptions
	ControllerNumber = can.ControllerNumber
	BitRate      = can.BitRate
	SamplePoint  = can.SamplePoint
	RxFilter     = can.RxFilter
	FilterMode   = can.FilterMode
	FilterScale  = can.FilterScale
	FilterValues = can.FilterValues
	FIFO         = can.FIFO
	BusHealth    = canhw.BusHealth
)

const (
	CAN1 = can.CAN1
	CAN2 = can.CAN2

	BitRate1000 = can.BitRate1000
	BitRate800  = can.BitRate800
	BitRate500  = can.BitRate500
	BitRate250  = can.BitRate250
	BitRate125  = can.BitRate125
	BitRate100  = can.BitRate100
	BitRate50   = can.BitRate50
	BitRate20   = can.BitRate20
	BitRate10   = can.BitRate10

	SamplePointCANopen  = can.SamplePointCANopen
	SamplePointARINC825 = can.SamplePointARINC825

	FilterModeMask = can.FilterModeMask
	FilterModeList = can.FilterModeList

	FilterScale16Bit = can.FilterScale16Bit
	FilterScale32Bit = can.FilterScale32Bit

	FIFO0 = can.FIFO0
	FIFO1 = can.FIFO1

	NumFilterBanks = can.NumFilterBanks
)

var NewFrame = can.NewFrame

// Sentinel errors callers may match with errors.Is.
var (
	ErrUnsupportedController = can.ErrUnsupportedController
	ErrUnsupportedClock      = can.ErrUnsupportedClock
	ErrInvalidBitRate        = can.ErrInvalidBitRate
	ErrInvalidSamplePoint    = can.ErrInvalidSamplePoint
	ErrInitTimeout           = can.ErrInitTimeout
	ErrInvalidFilterIndex    = can.ErrInvalidFilterIndex
	ErrNotNormalMode         = can.ErrNotNormalMode
	ErrDeviceClosed          = can.ErrDeviceClosed
	ErrControllerInUse       = can.ErrControllerInUse
)

// Device is the driver API surface callers hold: Transmit, Receive,
// SetReceiveFilter, TransmitErrorCounter and Close (spec.md §6,
// component C8).
type Device struct {
	dev    *canhw.CanDevice
	ctrl   *canhw.Controller
	closed bool
}

// Create constructs the singleton Controller on first call (subsequent
// calls reuse it — see internal/canhw.InitController) and vends a Device
// from cfg. cpuClock is the CPU clock the caller's board runs at; only
// 72_000_000 is accepted, matching the bit-timing table's 36 MHz PCLK1
// assumption (spec.md §4.6 step 2).
func Create(cfg Config, cpuClock uint32, platform Platform) (*Device, error) {
	regs := platform.Peripheral()
	sys := platform.SystemRegs()
	bus := platform.BusCore()
	irqs := platform.InterruptController()

	ctrl := canhw.InitController(regs, sys, bus, irqs, cpuClock)
	dev, err := ctrl.Create(cfg)
	if err != nil {
		return nil, err
	}
	return &Device{dev: dev, ctrl: ctrl}, nil
}

// Platform supplies the register window, system registers, simulated bus
// core and interrupt controller a Device is built against. Production code
// has exactly one implementation per board; tests construct a fresh one per
// case. This is the Go-native shape of spec.md §4.7's "register window
// handle" and "kernel-service handle" lent by the Controller.
type Platform interface {
	Peripheral() *canreg.Peripheral
	SystemRegs() *canreg.SystemRegs
	BusCore() canhw.BusCore
	InterruptController() canhw.InterruptController
}

// Transmit blocks until a TX mailbox is free (at most 3 outstanding, spec.md
// §8 invariant 1), encodes f into it, and returns once the mailbox has
// accepted the frame for arbitration. It returns false only under a
// hardware fault (spec.md §4.2); ctx cancellation surfaces as an error.
func (d *Device) Transmit(ctx context.Context, f Frame) (bool, error) {
	if d.closed {
		return false, ErrDeviceClosed
	}
	if err := d.dev.RequireNormal(); err != nil {
		return false, err
	}
	return d.dev.TxEngine().Transmit(ctx, f)
}

// Receive blocks until a frame is available on fifo, then returns it.
func (d *Device) Receive(ctx context.Context, fifo FIFO) (Frame, error) {
	if d.closed {
		return Frame{}, ErrDeviceClosed
	}
	if err := d.dev.RequireNormal(); err != nil {
		return Frame{}, err
	}
	msg, ok, err := d.dev.RxEngine().Receive(ctx, fifo)
	if err != nil {
		return Frame{}, err
	}
	if !ok {
		return Frame{}, fmt.Errorf("bxcan: spurious wake on %s", fifo)
	}
	return msg, nil
}

// SetReceiveFilter programs one acceptance filter bank.
func (d *Device) SetReceiveFilter(f RxFilter) error {
	if d.closed {
		return ErrDeviceClosed
	}
	if err := d.dev.RequireNormal(); err != nil {
		return err
	}
	return d.dev.RxEngine().SetReceiveFilter(f)
}

// TransmitErrorCounter aggregates the per-mailbox saturating TX error
// counters, or -1 if the device is closed (spec.md §6).
func (d *Device) TransmitErrorCounter() int32 {
	if d.closed {
		return -1
	}
	return d.dev.TxEngine().ErrorCounter()
}

// Health returns the latest bus-health snapshot observed by StatusEngine.
func (d *Device) Health() BusHealth {
	return d.dev.StatusEngine().Health()
}

// SetTracer attaches an optional UART trace sink: every completed TX
// mailbox and every RX FIFO event is reported to w. Pass nil to disable
// tracing.
func (d *Device) SetTracer(w *cantrace.Writer) {
	d.dev.TxEngine().SetTracer(w)
	d.dev.RxEngine().SetTracer(w)
}

// Close deinitialises the device and frees the Controller to vend a new one.
// Safe to call more than once.
func (d *Device) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	d.dev.Deinit()
	d.ctrl.Release()
	return nil
}
