package canhw

import (
	"fmt"
	"sync"

	"github.com/kstaniek/bxcan/internal/can"
	"github.com/kstaniek/bxcan/internal/canlog"
	"github.com/kstaniek/bxcan/internal/canreg"
)

var devlog = canlog.Component("device")

// initPollBudget bounds the INAK polling loops entered/left during
// construct/deinit (spec.md §4.6 step 6, §5's "≈65 535 iterations").
const initPollBudget = 0xFFFF

// DeviceState is one of CanDevice's five states (spec.md §3's "CanDevice
// state").
type DeviceState int

const (
	StateUninitialized DeviceState = iota
	StateSleep
	StateInitMode
	StateNormal
	StateError
)

func (s DeviceState) String() string {
	switch s {
	case StateUninitialized:
		return "Uninitialized"
	case StateSleep:
		return "Sleep"
	case StateInitMode:
		return "InitMode"
	case StateNormal:
		return "Normal"
	case StateError:
		return "Error"
	default:
		return "Unknown"
	}
}

// CanDevice composes TxEngine, RxEngine and StatusEngine, and drives the
// controller's init/deinit state machine (spec.md §4.6, component C6).
type CanDevice struct {
	regs *canreg.Peripheral
	sys  *canreg.SystemRegs
	bus  BusCore
	cfg  can.Config

	tx     *TxEngine
	rx     *RxEngine
	status *StatusEngine

	mu    sync.Mutex
	state DeviceState
}

// deviceIRQs groups the four interrupt-resource handles a CanDevice binds
// and owns exclusively (spec.md §3's Ownership: "three interrupt-resource
// handles" plus SCE).
type deviceIRQs struct {
	tx, rx0, rx1, sce InterruptResource
}

// NewCanDevice validates cfg and drives Uninitialized -> InitMode -> Normal.
// It never partially constructs: a failure leaves the returned *CanDevice
// nil and the register set deinitialised.
func NewCanDevice(cfg can.Config, cpuClock uint32, regs *canreg.Peripheral, sys *canreg.SystemRegs, bus BusCore, irqs InterruptController) (*CanDevice, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	const expectedCpuClock = 72_000_000
	if cpuClock != expectedCpuClock {
		return nil, fmt.Errorf("%w: %d Hz", can.ErrUnsupportedClock, cpuClock)
	}

	d := &CanDevice{regs: regs, sys: sys, bus: bus, cfg: cfg, state: StateUninitialized}
	devlog.Info("construct", "bitrate", cfg.BitRate, "sample_point", cfg.SamplePoint, "lbkm", cfg.Options.LBKM, "silm", cfg.Options.SILM)

	sys.SetCAN1ClockEnable(true)
	sys.SetPortAClockEnable(true)
	sys.ConfigurePA11RX()
	sys.ConfigurePA12TX()

	regs.MCR.SetSLEEP(false)

	if err := d.enterInitMode(); err != nil {
		devlog.Error("enter_init_mode_timeout", "error", err)
		d.state = StateError
		d.deinitLocked()
		return nil, err
	}

	opts := cfg.Options
	regs.MCR.SetTXFP(opts.TXFP)
	regs.MCR.SetRFLM(opts.RFLM)
	regs.MCR.SetNART(opts.NART)
	regs.MCR.SetAWUM(opts.AWUM)
	regs.MCR.SetABOM(opts.ABOM)
	regs.MCR.SetTTCM(opts.TTCM)
	regs.MCR.SetDBF(opts.DBF)
	if opts.DBF {
		sys.SetDebugFreeze(true)
	}

	bt := can.LookupBitTiming(cfg.SamplePoint, cfg.BitRate)
	canreg.ProgramBTR(&d.regs.BTR, bt.BRP, bt.TS1, bt.TS2, bt.SJW, opts.LBKM, opts.SILM)

	if err := d.leaveInitMode(); err != nil {
		devlog.Error("leave_init_mode_timeout", "error", err)
		d.deinitLocked()
		return nil, err
	}

	res := irqs.Resource(irqNameTX)
	var onSent func()
	if arb, ok := bus.(interface{ Arbitrate() }); ok {
		onSent = arb.Arbitrate
	}
	d.tx = NewTxEngine(regs, res, onSent)
	d.rx = NewRxEngine(regs, [can.NumFIFOs]bool{opts.RFLM, opts.RFLM}, [can.NumFIFOs]InterruptResource{
		irqs.Resource(irqNameRX0), irqs.Resource(irqNameRX1),
	})
	d.status = newStatusEngine(&regs.ESR, &regs.MSR, irqs.Resource(irqNameSCE))

	d.tx.Enable()
	d.rx.Enable()
	d.status.Enable()

	regs.IER.SetTMEIE(true)
	regs.IER.SetFMPIE0(true)
	regs.IER.SetFFIE0(true)
	regs.IER.SetFOVIE0(true)
	regs.IER.SetFMPIE1(true)
	regs.IER.SetFFIE1(true)
	regs.IER.SetFOVIE1(true)
	regs.IER.SetEWGIE(true)
	regs.IER.SetEPVIE(true)
	regs.IER.SetBOFIE(true)
	regs.IER.SetLECIE(true)
	regs.IER.SetERRIE(true)
	regs.IER.SetWKUIE(true)
	regs.IER.SetSLKIE(true)

	d.state = StateNormal
	devlog.Info("normal_mode")
	return d, nil
}

const (
	irqNameTX  = "USB_HP_CAN1_TX"
	irqNameRX0 = "USB_LP_CAN1_RX0"
	irqNameRX1 = "CAN1_RX1"
	irqNameSCE = "CAN1_SCE"
)

func (d *CanDevice) enterInitMode() error {
	d.regs.MCR.SetINRQ(true)
	for i := 0; i < initPollBudget; i++ {
		d.bus.Tick()
		if d.regs.MSR.INAK() {
			d.state = StateInitMode
			return nil
		}
	}
	return can.ErrInitTimeout
}

func (d *CanDevice) leaveInitMode() error {
	d.regs.MCR.SetINRQ(false)
	for i := 0; i < initPollBudget; i++ {
		d.bus.Tick()
		if !d.regs.MSR.INAK() {
			return nil
		}
	}
	return can.ErrInitTimeout
}

// State returns the device's current DeviceState.
func (d *CanDevice) State() DeviceState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *CanDevice) requireNormal() error {
	if d.State() != StateNormal {
		return can.ErrNotNormalMode
	}
	return nil
}

// TxEngine, RxEngine, StatusEngine give the root package access to the
// composed engines once requireNormal has been checked by the caller.
func (d *CanDevice) TxEngine() *TxEngine         { return d.tx }
func (d *CanDevice) RxEngine() *RxEngine         { return d.rx }
func (d *CanDevice) StatusEngine() *StatusEngine { return d.status }
func (d *CanDevice) RequireNormal() error        { return d.requireNormal() }

// Deinit clears all IER bits, disables each ISR handle, and gates the APB1
// clock off. Safe to call from any state; repeated Deinit is a no-op
// (spec.md §4.6).
func (d *CanDevice) Deinit() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deinitLocked()
}

func (d *CanDevice) deinitLocked() {
	if d.state == StateUninitialized {
		return
	}
	d.regs.IER.Commit(func(uint32) uint32 { return 0 })
	if d.tx != nil {
		d.tx.Disable()
	}
	if d.rx != nil {
		d.rx.Disable()
	}
	if d.status != nil {
		d.status.Disable()
	}
	d.sys.SetCAN1ClockEnable(false)
	d.state = StateUninitialized
	devlog.Info("deinit")
}
