package canhw

import (
	"context"
	"sync"

	"github.com/kstaniek/bxcan/internal/can"
	"github.com/kstaniek/bxcan/internal/canmetrics"
	"github.com/kstaniek/bxcan/internal/canreg"
	"github.com/kstaniek/bxcan/internal/cantrace"
)

// softQueueDepth is the software overflow queue capacity, matching the
// 3-deep hardware FIFO (spec.md §3's RxFifoState).
const softQueueDepth = 3

// RxFifo is one hardware RX FIFO plus its software overflow queue (spec.md
// §4.3, component C2).
type RxFifo struct {
	hwIndex int
	locked  bool

	rfxr *canreg.RFxRReg
	regs *canreg.RxMailboxRegs

	mu     sync.Mutex
	queue  []can.Frame
	sem    Semaphore
	irq    InterruptResource
	tracer *cantrace.Writer
}

// SetTracer attaches an optional trace sink: every frame the RX ISR
// observes on this FIFO — queued, overwritten, or dropped — is reported to
// w. A nil w (the default) disables tracing.
func (f *RxFifo) SetTracer(w *cantrace.Writer) { f.tracer = w }

func newRxFifo(hwIndex int, locked bool, rfxr *canreg.RFxRReg, regs *canreg.RxMailboxRegs, irq InterruptResource) *RxFifo {
	f := &RxFifo{
		hwIndex: hwIndex,
		locked:  locked,
		rfxr:    rfxr,
		regs:    regs,
		sem:     NewSemaphore(softQueueDepth),
		irq:     irq,
	}
	// The semaphore starts fully loaded with 3 free permits, but RxFifo's
	// permits count *queued frames*, not free slots; drain the initial
	// permits so Receive blocks until a frame actually arrives.
	for i := 0; i < softQueueDepth; i++ {
		f.sem.TryAcquire()
	}
	irq.Bind(f.isr)
	return f
}

// Receive blocks until a frame is queued, then pops the oldest one.
func (f *RxFifo) Receive(ctx context.Context) (can.Frame, bool, error) {
	if err := f.sem.Acquire(ctx); err != nil {
		return can.Frame{}, false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queue) == 0 {
		// Spurious wake: a permit existed but the queue was already
		// drained by another caller racing on the same FIFO.
		return can.Frame{}, false, nil
	}
	msg := f.queue[0]
	f.queue = f.queue[1:]
	return msg, true, nil
}

// isr runs on the simulated RX interrupt line: drains the current hardware
// entry from RIxR/RDTxR/RDLxR/RDHxR into the software queue, applying the
// locked/unlocked overrun rule, then releases the hardware FIFO slot.
func (f *RxFifo) isr() {
	if f.rfxr.FMP() == 0 {
		return
	}
	msg := decodeRxMessage(f.regs)
	if f.tracer != nil {
		_ = f.tracer.Send(cantrace.Record{Direction: cantrace.DirRX, Index: f.hwIndex, Frame: msg})
	}

	label := fifoLabel(f.hwIndex)
	f.mu.Lock()
	full := len(f.queue) >= softQueueDepth
	switch {
	case full && f.locked:
		// Drop at queue level; no permit, no mutation.
		f.mu.Unlock()
		canmetrics.IncRxDroppedLocked(label)
	case full && !f.locked:
		// isAddedToLast: overwrite the oldest entry, still no permit —
		// the queue's occupancy did not grow.
		f.queue = append(f.queue[1:], msg)
		f.mu.Unlock()
		canmetrics.IncRxOverwritten(label)
	default:
		f.queue = append(f.queue, msg)
		depth := len(f.queue)
		f.mu.Unlock()
		f.sem.ReleaseFromInterrupt()
		canmetrics.IncRxFrame(label)
		canmetrics.SetRxQueueDepth(label, depth)
	}
	f.rfxr.SetRFOM()
}

func fifoLabel(hwIndex int) string {
	if hwIndex == 0 {
		return "0"
	}
	return "1"
}

func decodeRxMessage(regs *canreg.RxMailboxRegs) can.Frame {
	rtr, ide, stid, exid := regs.Identifier()
	dlc := regs.DLC()
	var id can.Identifier
	if ide {
		id = can.Identifier((uint32(stid) << 18) | exid)
	} else {
		id = can.Identifier(stid)
	}
	f := can.NewFrame(id, ide, rtr, nil)
	f.DLC = dlc
	f.SetWord32(0, regs.RDLxR.Fetch())
	f.SetWord32(1, regs.RDHxR.Fetch())
	return f
}

// Enable/Disable toggle this FIFO's RX interrupt line.
func (f *RxFifo) Enable()  { f.irq.Enable() }
func (f *RxFifo) Disable() { f.irq.Disable() }
