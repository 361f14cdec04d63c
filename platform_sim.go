package bxcan

import (
	"github.com/kstaniek/bxcan/internal/canhw"
	"github.com/kstaniek/bxcan/internal/canreg"
)

// SimPlatform is a Platform backed by canhw.SimBus: an in-process software
// model of the bxCAN silicon, used by tests and the cmd/bxcan-sim
// demonstration program in place of real memory-mapped registers.
type SimPlatform struct {
	regs *canreg.Peripheral
	sys  *canreg.SystemRegs
	irqs *canhw.SimInterruptController
	bus  *canhw.SimBus
}

// NewSimPlatform builds a fresh, independent simulated peripheral. Each
// call returns a distinct register set, but Create binds the process-wide
// Controller to the first platform it is given; a test that wants a new
// platform resets that singleton with canhw.ResetControllerForTest, so such
// tests do not run in parallel.
func NewSimPlatform() *SimPlatform {
	regs := canreg.NewPeripheral()
	sys := &canreg.SystemRegs{}
	irqs := canhw.NewSimInterruptController()
	bus := canhw.NewSimBus(regs, irqs)
	return &SimPlatform{regs: regs, sys: sys, irqs: irqs, bus: bus}
}

func (p *SimPlatform) Peripheral() *canreg.Peripheral                { return p.regs }
func (p *SimPlatform) SystemRegs() *canreg.SystemRegs                { return p.sys }
func (p *SimPlatform) BusCore() canhw.BusCore                        { return p.bus }
func (p *SimPlatform) InterruptController() canhw.InterruptController { return p.irqs }
