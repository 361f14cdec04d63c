package canhw_test

import (
	"errors"
	"testing"

	"github.com/kstaniek/bxcan/internal/can"
	"github.com/kstaniek/bxcan/internal/canhw"
	"github.com/kstaniek/bxcan/internal/canreg"
)

// deadBus never acknowledges INRQ, so any INAK-polling loop against it runs
// out its full budget.
type deadBus struct{}

func (deadBus) Tick() {}

func TestNewCanDeviceInitTimeout(t *testing.T) {
	regs := canreg.NewPeripheral()
	sys := &canreg.SystemRegs{}
	irqs := canhw.NewSimInterruptController()
	cfg := can.Config{Number: can.CAN1, BitRate: can.BitRate500, SamplePoint: can.SamplePointCANopen}

	_, err := canhw.NewCanDevice(cfg, 72_000_000, regs, sys, deadBus{}, irqs)
	if !errors.Is(err, can.ErrInitTimeout) {
		t.Fatalf("err = %v, want wrapping %v", err, can.ErrInitTimeout)
	}
}

func TestNewCanDeviceRejectsWrongClock(t *testing.T) {
	regs := canreg.NewPeripheral()
	sys := &canreg.SystemRegs{}
	irqs := canhw.NewSimInterruptController()
	cfg := can.Config{Number: can.CAN1, BitRate: can.BitRate500, SamplePoint: can.SamplePointCANopen}

	_, err := canhw.NewCanDevice(cfg, 8_000_000, regs, sys, deadBus{}, irqs)
	if !errors.Is(err, can.ErrUnsupportedClock) {
		t.Fatalf("err = %v, want wrapping %v", err, can.ErrUnsupportedClock)
	}
}

func TestNewCanDeviceRejectsInvalidConfig(t *testing.T) {
	regs := canreg.NewPeripheral()
	sys := &canreg.SystemRegs{}
	irqs := canhw.NewSimInterruptController()
	cfg := can.Config{Number: can.CAN2, BitRate: can.BitRate500, SamplePoint: can.SamplePointCANopen}

	_, err := canhw.NewCanDevice(cfg, 72_000_000, regs, sys, deadBus{}, irqs)
	if !errors.Is(err, can.ErrUnsupportedController) {
		t.Fatalf("err = %v, want wrapping %v", err, can.ErrUnsupportedController)
	}
}
