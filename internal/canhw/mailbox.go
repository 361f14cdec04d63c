package canhw

import (
	"strconv"

	"github.com/kstaniek/bxcan/internal/can"
	"github.com/kstaniek/bxcan/internal/canmetrics"
	"github.com/kstaniek/bxcan/internal/canreg"
)

// errorCounterSaturation is the per-mailbox TX error counter ceiling.
// spec.md §9's Open Questions call this out explicitly as a project
// convention rather than a hardware limit, to be preserved verbatim.
const errorCounterSaturation = 0x20000000

// TxMailbox is one hardware TX slot (spec.md §4.1, component C1). All
// methods except Routine must be called holding the owning TxEngine's mutex.
type TxMailbox struct {
	index   int
	regs    *canreg.TxMailboxRegs
	tsr     *canreg.TSRReg
	errCount uint32
}

func newTxMailbox(index int, regs *canreg.TxMailboxRegs, tsr *canreg.TSRReg) *TxMailbox {
	return &TxMailbox{index: index, regs: regs, tsr: tsr}
}

// IsEmpty reports TSR.TME[i].
func (m *TxMailbox) IsEmpty() bool { return m.tsr.TME(m.index) }

// Transmit encodes f into TIxR/TDTxR/TDLxR/TDHxR and raises TXRQ, following
// the exact commit sequence spec.md §4.1 mandates: TXRQ=0, then
// rtr/ide/stid/exid, then DLC, then the two data words, then TXRQ=1 — each a
// distinct atomic register commit. Returns false if the mailbox was not
// empty.
func (m *TxMailbox) Transmit(f can.Frame) bool {
	if !m.IsEmpty() {
		return false
	}

	m.regs.SetTXRQ(false)

	var stid uint16
	var exid uint32
	if f.Extended {
		stid = uint16((uint32(f.ID) >> 18) & 0x7FF)
		exid = uint32(f.ID) & 0x3FFFF
	} else {
		stid = uint16(uint32(f.ID) & 0x7FF)
	}
	m.regs.SetIdentifier(f.RTR, f.Extended, stid, exid)
	m.regs.SetDLC(f.DLC)
	m.regs.TDLxR.Commit(func(uint32) uint32 { return f.Word32(0) })
	m.regs.TDHxR.Commit(func(uint32) uint32 { return f.Word32(1) })
	m.regs.SetTXRQ(true)
	// Silicon clears TME when TXRQ is raised; the register window here is
	// plain memory, so the mailbox marks itself busy until SetCompletion.
	m.tsr.SetTME(m.index, false)
	return true
}

// Routine is called from the TX ISR for every mailbox on every TX
// interrupt. It returns true exactly when this mailbox has a newly
// completed request (RQCP==1 and TME==1 in the same snapshot); on true it
// clears RQCP (write-1-to-clear) and, if the completion was unsuccessful
// (TXOK==0), increments the saturating per-mailbox error counter.
func (m *TxMailbox) Routine() bool {
	rqcp := m.tsr.RQCP(m.index)
	tme := m.tsr.TME(m.index)
	if !(rqcp && tme) {
		return false
	}
	txok := m.tsr.TXOK(m.index)
	m.tsr.ClearRQCP(m.index)
	label := strconv.Itoa(m.index)
	if txok {
		canmetrics.IncTxCompleted(label)
	} else {
		canmetrics.IncTxAborted(label)
		if m.errCount < errorCounterSaturation {
			m.errCount++
		}
		canmetrics.SetTxErrorCounter(label, m.errCount)
	}
	return true
}

// ErrorCount returns the saturating TX error counter accumulated for this
// mailbox.
func (m *TxMailbox) ErrorCount() uint32 { return m.errCount }

// frame decodes the mailbox's current TIxR/TDTxR/TDLxR/TDHxR contents back
// into a can.Frame, for the trace sink: nothing clears these registers on
// completion, only the next Transmit overwrites them, so the frame that
// just completed is still readable from Routine.
func (m *TxMailbox) frame() can.Frame {
	rtr, ide, stid, exid := m.regs.Identifier()
	var id can.Identifier
	if ide {
		id = can.Identifier((uint32(stid) << 18) | exid)
	} else {
		id = can.Identifier(stid)
	}
	f := can.NewFrame(id, ide, rtr, nil)
	f.DLC = m.regs.DLC()
	f.SetWord32(0, m.regs.TDLxR.Fetch())
	f.SetWord32(1, m.regs.TDHxR.Fetch())
	return f
}
