package canhw

import (
	"github.com/kstaniek/bxcan/internal/can"
	"github.com/kstaniek/bxcan/internal/canreg"
)

// SimBus stands in for the CAN silicon and the electrical bus itself: it
// drives the bounded INAK polling loop's hardware acknowledgement (Tick),
// and its Arbitrate method plays the part of "a frame goes out on the
// wire" by completing pending TX mailboxes and, when loopback mode is
// active, routing the frame into whichever RX FIFO the programmed filters
// accept. Nothing in internal/canhw depends on SimBus directly — it only
// consumes the BusCore and InterruptController interfaces — so a future
// hardware-backed implementation is a drop-in replacement.
type SimBus struct {
	regs *canreg.Peripheral
	irqs *SimInterruptController
}

// NewSimBus builds a bus core bound to regs and irqs. Loopback/silent
// behaviour is read live from BTR.LBKM/SILM at arbitration time, since
// those bits are only known once CanDevice has programmed them during
// construction.
func NewSimBus(regs *canreg.Peripheral, irqs *SimInterruptController) *SimBus {
	return &SimBus{regs: regs, irqs: irqs}
}

// Tick lets the simulated peripheral react to the last MCR.INRQ write; real
// hardware asserts/deasserts MSR.INAK within a handful of bit times.
func (b *SimBus) Tick() {
	b.regs.MSR.SetINAK(b.regs.MCR.INRQ())
}

// Arbitrate services every TX mailbox currently requesting transmission: it
// completes each one successfully (TXOK=1) and, in loopback mode, delivers
// the frame to whichever RX FIFO the active acceptance filters select. Not
// loopback-only hardware activity (a real peer acknowledging the frame) is
// out of scope for this simulation; SILM only suppresses the mailbox's
// effect on a (nonexistent) external bus, which this simulation does not
// model beyond loopback delivery.
func (b *SimBus) Arbitrate() {
	loopback := canreg.BTRLoopback(&b.regs.BTR)
	for i := 0; i < numMailboxes; i++ {
		mb := &b.regs.Tx[i]
		if !mb.TXRQ() {
			continue
		}
		rtr, ide, stid, exid := mb.Identifier()
		dlc := mb.DLC()
		lo := mb.TDLxR.Fetch()
		hi := mb.TDHxR.Fetch()

		mb.SetTXRQ(false)
		b.regs.TSR.SetCompletion(i, true, false, false)
		b.irqs.Fire(irqNameTX)

		if loopback {
			b.deliver(rtr, ide, stid, exid, dlc, lo, hi)
		}
	}
}

func (b *SimBus) deliver(rtr, ide bool, stid uint16, exid uint32, dlc uint8, lo, hi uint32) {
	fifo, ok := b.matchFilters(rtr, ide, stid, exid)
	if !ok {
		return
	}
	regs := &b.regs.Rx[fifo]
	regs.SetIdentifier(rtr, ide, stid, exid)
	regs.SetDLC(dlc)
	regs.RDLxR.Commit(func(uint32) uint32 { return lo })
	regs.RDHxR.Commit(func(uint32) uint32 { return hi })
	b.regs.RF[fifo].SetFMP(1)

	var rxLine string
	if fifo == 0 {
		rxLine = irqNameRX0
	} else {
		rxLine = irqNameRX1
	}
	b.irqs.Fire(rxLine)
}

// matchFilters walks the 14 banks in priority order (lowest index first)
// and returns the FIFO of the first active bank that accepts the frame.
func (b *SimBus) matchFilters(rtr, ide bool, stid uint16, exid uint32) (int, bool) {
	word32 := identifierWord32(rtr, ide, stid, exid)
	word16 := identifierWord16(rtr, ide, stid)

	for bank := 0; bank < can.NumFilterBanks; bank++ {
		if !canreg.BankBit(&b.regs.FA1R, bank) {
			continue
		}
		mode := canreg.BankBit(&b.regs.FM1R, bank)   // true = list
		scale := canreg.BankBit(&b.regs.FS1R, bank)  // true = 32-bit
		fifo1 := canreg.BankBit(&b.regs.FFA1R, bank) // true = FIFO1

		w0 := b.regs.Filter[bank][0].Fetch()
		w1 := b.regs.Filter[bank][1].Fetch()

		var accept bool
		switch {
		case scale && !mode: // mask, 32-bit
			accept = word32&w1 == w0&w1
		case scale && mode: // list, 32-bit
			accept = word32 == w0 || word32 == w1
		case !scale && !mode: // mask, 16-bit (two independent sub-filters)
			id0, mask0 := uint16(w0), uint16(w0>>16)
			id1, mask1 := uint16(w1), uint16(w1>>16)
			accept = word16&mask0 == id0&mask0 || word16&mask1 == id1&mask1
		default: // list, 16-bit (four accepted identifiers)
			ids := [4]uint16{uint16(w0), uint16(w0 >> 16), uint16(w1), uint16(w1 >> 16)}
			for _, id := range ids {
				if word16 == id {
					accept = true
					break
				}
			}
		}

		if accept {
			if fifo1 {
				return 1, true
			}
			return 0, true
		}
	}
	return 0, false
}

// identifierWord32 composes the 32-bit filter-comparable word in the same
// bit layout as TIxR/RIxR: STID[10:0] at bits 31:21, EXID[17:0] at bits
// 20:3, IDE at bit 2, RTR at bit 1.
func identifierWord32(rtr, ide bool, stid uint16, exid uint32) uint32 {
	var w uint32
	w |= uint32(stid&0x7FF) << 21
	w |= (exid & 0x3FFFF) << 3
	if ide {
		w |= 1 << 2
	}
	if rtr {
		w |= 1 << 1
	}
	return w
}

// identifierWord16 composes the 16-bit filter-comparable word: STID[10:0]
// at bits 15:5, IDE at bit 4, RTR at bit 3.
func identifierWord16(rtr, ide bool, stid uint16) uint16 {
	var w uint16
	w |= (stid & 0x7FF) << 5
	if ide {
		w |= 1 << 4
	}
	if rtr {
		w |= 1 << 3
	}
	return w
}
