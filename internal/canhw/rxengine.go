package canhw

import (
	"context"
	"fmt"
	"sync"

	"github.com/kstaniek/bxcan/internal/can"
	"github.com/kstaniek/bxcan/internal/canreg"
	"github.com/kstaniek/bxcan/internal/cantrace"
)

// RxEngine owns the two RxFifo instances and the filter-bank programmer
// (spec.md §4.4, component C4).
type RxEngine struct {
	fifos      [can.NumFIFOs]*RxFifo
	regs       *canreg.Peripheral
	filterMu   sync.Mutex
}

// NewRxEngine wires up both RxFifo instances. locked[i] is RxFifoState's
// rflm-derived locking flag for FIFO i.
func NewRxEngine(regs *canreg.Peripheral, locked [can.NumFIFOs]bool, irqs [can.NumFIFOs]InterruptResource) *RxEngine {
	e := &RxEngine{regs: regs}
	for i := 0; i < can.NumFIFOs; i++ {
		e.fifos[i] = newRxFifo(i, locked[i], &regs.RF[i], &regs.Rx[i], irqs[i])
	}
	return e
}

// SetTracer attaches an optional trace sink to both FIFOs. A nil w disables
// tracing.
func (e *RxEngine) SetTracer(w *cantrace.Writer) {
	for i := 0; i < can.NumFIFOs; i++ {
		e.fifos[i].SetTracer(w)
	}
}

// Receive dispatches to the named FIFO.
func (e *RxEngine) Receive(ctx context.Context, fifo can.FIFO) (can.Frame, bool, error) {
	if int(fifo) < 0 || int(fifo) >= can.NumFIFOs {
		return can.Frame{}, false, fmt.Errorf("%w: fifo %d", can.ErrInvalidFilterIndex, fifo)
	}
	return e.fifos[fifo].Receive(ctx)
}

// SetReceiveFilter programs one filter bank following the exact
// init-bracketed sequence of spec.md §4.4: enter filter-init, deactivate the
// bank, program mode/scale/FIFO assignment, write both bank words, reactivate
// the bank, leave filter-init. The filter mutex serialises concurrent
// callers; no caller may transmit filter updates concurrently.
func (e *RxEngine) SetReceiveFilter(f can.RxFilter) error {
	if err := f.Validate(); err != nil {
		return err
	}

	e.filterMu.Lock()
	defer e.filterMu.Unlock()

	e.regs.FMR.SetFINIT(true)
	defer e.regs.FMR.SetFINIT(false)

	bank := f.Index
	canreg.ClearBankBit(&e.regs.FA1R, bank)

	if f.Mode == can.FilterModeList {
		canreg.SetBankBit(&e.regs.FM1R, bank)
	} else {
		canreg.ClearBankBit(&e.regs.FM1R, bank)
	}

	if f.Scale == can.FilterScale32Bit {
		canreg.SetBankBit(&e.regs.FS1R, bank)
	} else {
		canreg.ClearBankBit(&e.regs.FS1R, bank)
	}

	if f.FIFO == can.FIFO1 {
		canreg.SetBankBit(&e.regs.FFA1R, bank)
	} else {
		canreg.ClearBankBit(&e.regs.FFA1R, bank)
	}

	w0, w1 := encodeFilterWords(f)
	e.regs.Filter[bank][0].Commit(func(uint32) uint32 { return w0 })
	e.regs.Filter[bank][1].Commit(func(uint32) uint32 { return w1 })

	canreg.SetBankBit(&e.regs.FA1R, bank)
	return nil
}

// encodeFilterWords reinterprets the tagged-union filter values as the two
// raw 32-bit bank words, per (mode, scale) exactly as spec.md §4.4 step 8
// describes.
func encodeFilterWords(f can.RxFilter) (w0, w1 uint32) {
	v := f.Values
	switch {
	case f.Mode == can.FilterModeMask && f.Scale == can.FilterScale32Bit:
		return v.ID32[0], v.Mask32
	case f.Mode == can.FilterModeList && f.Scale == can.FilterScale32Bit:
		return v.ID32[0], v.ID32[1]
	case f.Mode == can.FilterModeMask && f.Scale == can.FilterScale16Bit:
		return uint32(v.ID16[0]) | uint32(v.Mask16[0])<<16,
			uint32(v.ID16[1]) | uint32(v.Mask16[1])<<16
	default: // list + 16-bit
		return uint32(v.ID16[0]) | uint32(v.ID16[1])<<16,
			uint32(v.ID16[2]) | uint32(v.ID16[3])<<16
	}
}

// Enable/Disable toggle both RX interrupt lines.
func (e *RxEngine) Enable() {
	for _, f := range e.fifos {
		f.Enable()
	}
}

func (e *RxEngine) Disable() {
	for _, f := range e.fifos {
		f.Disable()
	}
}
