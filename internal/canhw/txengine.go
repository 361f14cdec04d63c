package canhw

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/kstaniek/bxcan/internal/can"
	"github.com/kstaniek/bxcan/internal/canlog"
	"github.com/kstaniek/bxcan/internal/canmetrics"
	"github.com/kstaniek/bxcan/internal/canreg"
	"github.com/kstaniek/bxcan/internal/cantrace"
)

var txlog = canlog.Component("txengine")

// numMailboxes is the number of hardware TX mailboxes.
const numMailboxes = 3

// TxEngine owns the three TxMailbox instances, the TX ISR, and the
// mailbox-free counting semaphore (spec.md §4.2, component C3).
type TxEngine struct {
	mailboxes [numMailboxes]*TxMailbox
	sem       Semaphore
	mu        sync.Mutex
	irq       InterruptResource
	onSent    func()
	waiters   atomic.Int32
	tracer    *cantrace.Writer
}

// SetTracer attaches an optional trace sink: every completed mailbox is
// reported to w from the TX ISR. A nil w (the default) disables tracing.
func (e *TxEngine) SetTracer(w *cantrace.Writer) { e.tracer = w }

// NewTxEngine wires up three TxMailbox views over regs.Tx and regs.TSR and
// binds the TX ISR to irq. It does not enable the interrupt; the owning
// CanDevice does that as part of its init sequence (spec.md §4.6 step 12).
// onSent, if non-nil, is invoked synchronously right after a frame is
// latched into a mailbox — the simulated bus core uses this hook to
// arbitrate the frame onto the (simulated) wire immediately rather than
// waiting on real bus timing, which this in-process simulation has no way
// to reproduce.
func NewTxEngine(regs *canreg.Peripheral, irq InterruptResource, onSent func()) *TxEngine {
	e := &TxEngine{
		sem:    NewSemaphore(numMailboxes),
		irq:    irq,
		onSent: onSent,
	}
	for i := range e.mailboxes {
		e.mailboxes[i] = newTxMailbox(i, &regs.Tx[i], &regs.TSR)
	}
	irq.Bind(e.isr)
	return e
}

// Transmit acquires a mailbox-free permit (blocking if all three mailboxes
// are busy), then scans mailboxes for the first empty one and writes f into
// it. If ctx is cancelled before a permit is acquired, Transmit returns
// ctx.Err(). If no mailbox is empty after a successful acquire — possible
// only under a hardware fault per spec.md §4.2 — it returns false without
// re-releasing the permit, a documented single-permit degradation.
func (e *TxEngine) Transmit(ctx context.Context, f can.Frame) (bool, error) {
	e.waiters.Add(1)
	canmetrics.MailboxWaiters.Set(float64(e.waiters.Load()))
	err := e.sem.Acquire(ctx)
	e.waiters.Add(-1)
	canmetrics.MailboxWaiters.Set(float64(e.waiters.Load()))
	if err != nil {
		return false, err
	}
	e.mu.Lock()
	var sent bool
	for _, mb := range e.mailboxes {
		if mb.IsEmpty() {
			sent = mb.Transmit(f)
			break
		}
	}
	e.mu.Unlock()
	if !sent {
		txlog.Warn("transmit_no_empty_mailbox", "id", f.ID)
		canmetrics.IncError(canmetrics.ErrTransmit)
	}
	if sent && e.onSent != nil {
		e.onSent()
	}
	return sent, nil
}

// isr runs on the simulated TX interrupt line: it polls every mailbox's
// Routine and releases one permit per newly completed mailbox.
func (e *TxEngine) isr() {
	for i, mb := range e.mailboxes {
		if mb.Routine() {
			e.sem.ReleaseFromInterrupt()
			if e.tracer != nil {
				_ = e.tracer.Send(cantrace.Record{Direction: cantrace.DirTX, Index: i, Frame: mb.frame()})
			}
		}
	}
}

// ErrorCounter aggregates the per-mailbox saturating error counters,
// mirroring the driver API's transmit_error_counter (spec.md §6). It never
// returns -1; the "not supported" sentinel is the root package's concern
// when the device itself is unusable.
func (e *TxEngine) ErrorCounter() int32 {
	var total uint32
	for _, mb := range e.mailboxes {
		total += mb.ErrorCount()
	}
	if total > errorCounterSaturation {
		total = errorCounterSaturation
	}
	return int32(total)
}

// Enable/Disable toggle the TX interrupt line, called from CanDevice's
// init/deinit sequence.
func (e *TxEngine) Enable()  { e.irq.Enable() }
func (e *TxEngine) Disable() { e.irq.Disable() }
