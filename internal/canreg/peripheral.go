package canreg

// Peripheral is the bxCAN register set for one controller instance (CAN1;
// see spec.md §6).
type Peripheral struct {
	MCR MCRReg
	MSR MSRReg
	BTR Reg32
	TSR TSRReg
	RF  [2]RFxRReg
	IER IERReg
	ESR ESRReg

	FMR  FMRReg
	FM1R Reg32
	FS1R Reg32
	FFA1R Reg32
	FA1R Reg32
	// Filter[i][0], Filter[i][1] are the two 32-bit words of filter bank i.
	Filter [14][2]Reg32

	Tx [3]TxMailboxRegs
	Rx [2]RxMailboxRegs
}

// NewPeripheral returns a Peripheral at its post-reset values. The zero
// value is wrong for exactly one field a caller could observe before
// CanDevice runs its construct sequence: TSR.TME[0..2] reset to 1 (every
// mailbox empty), not 0.
func NewPeripheral() *Peripheral {
	p := &Peripheral{}
	for i := 0; i < 3; i++ {
		p.TSR.SetTME(i, true)
	}
	return p
}

// --- MCR --------------------------------------------------------------

type MCRReg struct{ Reg32 }

var (
	mcrINRQ  = bitfield{0, 1}
	mcrSLEEP = bitfield{1, 1}
	mcrTXFP  = bitfield{2, 1}
	mcrRFLM  = bitfield{3, 1}
	mcrNART  = bitfield{4, 1}
	mcrAWUM  = bitfield{5, 1}
	mcrABOM  = bitfield{6, 1}
	mcrTTCM  = bitfield{7, 1}
	mcrDBF   = bitfield{16, 1}
)

func (r *MCRReg) INRQ() bool  { return fieldBool(r.Fetch(), mcrINRQ) }
func (r *MCRReg) SetINRQ(v bool) {
	r.Commit(func(old uint32) uint32 { return mcrINRQ.with(old, b2u(v)) })
}
func (r *MCRReg) SetSLEEP(v bool) {
	r.Commit(func(old uint32) uint32 { return mcrSLEEP.with(old, b2u(v)) })
}
func (r *MCRReg) SetTXFP(v bool) { r.Commit(func(old uint32) uint32 { return mcrTXFP.with(old, b2u(v)) }) }
func (r *MCRReg) SetRFLM(v bool) { r.Commit(func(old uint32) uint32 { return mcrRFLM.with(old, b2u(v)) }) }
func (r *MCRReg) SetNART(v bool) { r.Commit(func(old uint32) uint32 { return mcrNART.with(old, b2u(v)) }) }
func (r *MCRReg) SetAWUM(v bool) { r.Commit(func(old uint32) uint32 { return mcrAWUM.with(old, b2u(v)) }) }
func (r *MCRReg) SetABOM(v bool) { r.Commit(func(old uint32) uint32 { return mcrABOM.with(old, b2u(v)) }) }
func (r *MCRReg) SetTTCM(v bool) { r.Commit(func(old uint32) uint32 { return mcrTTCM.with(old, b2u(v)) }) }
func (r *MCRReg) SetDBF(v bool)  { r.Commit(func(old uint32) uint32 { return mcrDBF.with(old, b2u(v)) }) }

// --- MSR --------------------------------------------------------------

type MSRReg struct{ Reg32 }

var (
	msrINAK  = bitfield{0, 1}
	msrWKUI  = bitfield{2, 1}
	msrSLAKI = bitfield{3, 1}
)

func (r *MSRReg) INAK() bool       { return fieldBool(r.Fetch(), msrINAK) }
func (r *MSRReg) WKUI() bool       { return fieldBool(r.Fetch(), msrWKUI) }
func (r *MSRReg) SLAKI() bool      { return fieldBool(r.Fetch(), msrSLAKI) }
func (r *MSRReg) ClearWKUI()       { r.ClearBits(msrWKUI.mask()) }
func (r *MSRReg) ClearSLAKI()      { r.ClearBits(msrSLAKI.mask()) }
// SetINAK is the simulated bus core's hardware-side acknowledgement of an
// INRQ request; real silicon asserts INAK a handful of bit-times after INRQ.
func (r *MSRReg) SetINAK(v bool) {
	r.Commit(func(old uint32) uint32 { return msrINAK.with(old, b2u(v)) })
}

// --- TSR (TX status) ----------------------------------------------------

type TSRReg struct{ Reg32 }

var (
	tsrRQCP = [3]bitfield{{0, 1}, {8, 1}, {16, 1}}
	tsrTXOK = [3]bitfield{{1, 1}, {9, 1}, {17, 1}}
	tsrALST = [3]bitfield{{2, 1}, {10, 1}, {18, 1}}
	tsrTERR = [3]bitfield{{3, 1}, {11, 1}, {19, 1}}
	tsrTME  = [3]bitfield{{26, 1}, {27, 1}, {28, 1}}
)

func (r *TSRReg) RQCP(i int) bool { return fieldBool(r.Fetch(), tsrRQCP[i]) }
func (r *TSRReg) TXOK(i int) bool { return fieldBool(r.Fetch(), tsrTXOK[i]) }
func (r *TSRReg) ALST(i int) bool { return fieldBool(r.Fetch(), tsrALST[i]) }
func (r *TSRReg) TERR(i int) bool { return fieldBool(r.Fetch(), tsrTERR[i]) }
func (r *TSRReg) TME(i int) bool  { return fieldBool(r.Fetch(), tsrTME[i]) }

// ClearRQCP writes 1 to RQCP[i] (write-1-to-clear).
func (r *TSRReg) ClearRQCP(i int) { r.ClearBits(tsrRQCP[i].mask()) }

// SetTME writes TME[i] directly. Real silicon clears this bit when TXRQ is
// raised and sets it again once the request completes; in this model
// TxMailbox.Transmit clears it when raising TXRQ and SetCompletion sets it.
func (r *TSRReg) SetTME(i int, v bool) {
	r.Commit(func(old uint32) uint32 { return tsrTME[i].with(old, b2u(v)) })
}

// SetCompletion is the simulated bus core's hardware-side completion
// write: RQCP set, TXOK/ALST/TERR reflecting the outcome.
func (r *TSRReg) SetCompletion(i int, txok, alst, terr bool) {
	r.Commit(func(old uint32) uint32 {
		old = tsrRQCP[i].with(old, 1)
		old = tsrTME[i].with(old, 1)
		old = tsrTXOK[i].with(old, b2u(txok))
		old = tsrALST[i].with(old, b2u(alst))
		old = tsrTERR[i].with(old, b2u(terr))
		return old
	})
}

// --- RFxR (RX FIFO status) ----------------------------------------------

type RFxRReg struct{ Reg32 }

var (
	rfFMP  = bitfield{0, 2}
	rfRFOM = bitfield{5, 1}
)

func (r *RFxRReg) FMP() uint8 { return uint8(field(r.Fetch(), rfFMP)) }
func (r *RFxRReg) SetRFOM()   { r.SetBits(rfRFOM.mask()) }

// RFOM reports and ClearRFOM acknowledges the software's "release this
// FIFO slot" request. SimBus does not read RFOM: it overwrites the single
// register window on every delivery and runs the RX ISR before returning.
func (r *RFxRReg) RFOM() bool  { return fieldBool(r.Fetch(), rfRFOM) }
func (r *RFxRReg) ClearRFOM() { r.ClearBits(rfRFOM.mask()) }

// SetFMP is the simulated bus core's hardware-side write reflecting how
// many messages are pending in the hardware FIFO. The real peripheral also
// exposes FULL and FOVR bits (3-deep hardware buffer at capacity, and a
// hardware-level overrun distinct from software's), but SimBus delivers and
// drains one frame at a time through a single register window — the same
// bounded-FIFO shape internal/canhw's software overflow queue already has —
// so there is no reachable state in which this model's hardware FIFO is
// "full" independently of the software queue. Those two bits are omitted
// rather than kept as registers that could never report true.
func (r *RFxRReg) SetFMP(n uint8) {
	r.Commit(func(old uint32) uint32 { return rfFMP.with(old, uint32(n)) })
}

// --- IER ----------------------------------------------------------------

type IERReg struct{ Reg32 }

var (
	ierTMEIE  = bitfield{0, 1}
	ierFMPIE0 = bitfield{1, 1}
	ierFFIE0  = bitfield{2, 1}
	ierFOVIE0 = bitfield{3, 1}
	ierFMPIE1 = bitfield{4, 1}
	ierFFIE1  = bitfield{5, 1}
	ierFOVIE1 = bitfield{6, 1}
	ierEWGIE  = bitfield{8, 1}
	ierEPVIE  = bitfield{9, 1}
	ierBOFIE  = bitfield{10, 1}
	ierLECIE  = bitfield{11, 1}
	ierERRIE  = bitfield{15, 1}
	ierWKUIE  = bitfield{16, 1}
	ierSLKIE  = bitfield{17, 1}
)

func (r *IERReg) SetTMEIE(v bool)  { r.setBit(ierTMEIE, v) }
func (r *IERReg) SetFMPIE0(v bool) { r.setBit(ierFMPIE0, v) }
func (r *IERReg) SetFFIE0(v bool)  { r.setBit(ierFFIE0, v) }
func (r *IERReg) SetFOVIE0(v bool) { r.setBit(ierFOVIE0, v) }
func (r *IERReg) SetFMPIE1(v bool) { r.setBit(ierFMPIE1, v) }
func (r *IERReg) SetFFIE1(v bool)  { r.setBit(ierFFIE1, v) }
func (r *IERReg) SetFOVIE1(v bool) { r.setBit(ierFOVIE1, v) }
func (r *IERReg) SetEWGIE(v bool)  { r.setBit(ierEWGIE, v) }
func (r *IERReg) SetEPVIE(v bool)  { r.setBit(ierEPVIE, v) }
func (r *IERReg) SetBOFIE(v bool)  { r.setBit(ierBOFIE, v) }
func (r *IERReg) SetLECIE(v bool)  { r.setBit(ierLECIE, v) }
func (r *IERReg) SetERRIE(v bool)  { r.setBit(ierERRIE, v) }
func (r *IERReg) SetWKUIE(v bool)  { r.setBit(ierWKUIE, v) }
func (r *IERReg) SetSLKIE(v bool)  { r.setBit(ierSLKIE, v) }

func (r *IERReg) setBit(b bitfield, v bool) {
	r.Commit(func(old uint32) uint32 { return b.with(old, b2u(v)) })
}

func (r *IERReg) TMEIE() bool  { return fieldBool(r.Fetch(), ierTMEIE) }
func (r *IERReg) FMPIE(i int) bool {
	if i == 0 {
		return fieldBool(r.Fetch(), ierFMPIE0)
	}
	return fieldBool(r.Fetch(), ierFMPIE1)
}

// --- ESR ------------------------------------------------------------------

type ESRReg struct{ Reg32 }

var (
	esrEWGF = bitfield{0, 1}
	esrEPVF = bitfield{1, 1}
	esrBOFF = bitfield{2, 1}
	esrLEC  = bitfield{4, 3}
)

func (r *ESRReg) EWGF() bool  { return fieldBool(r.Fetch(), esrEWGF) }
func (r *ESRReg) EPVF() bool  { return fieldBool(r.Fetch(), esrEPVF) }
func (r *ESRReg) BOFF() bool  { return fieldBool(r.Fetch(), esrBOFF) }
func (r *ESRReg) LEC() uint8  { return uint8(field(r.Fetch(), esrLEC)) }

// SetState is the simulated bus core's hardware-side write of the error
// state fields, invoked when it raises the SCE interrupt.
func (r *ESRReg) SetState(ewgf, epvf, boff bool, lec uint8) {
	r.Commit(func(old uint32) uint32 {
		old = esrEWGF.with(old, b2u(ewgf))
		old = esrEPVF.with(old, b2u(epvf))
		old = esrBOFF.with(old, b2u(boff))
		old = esrLEC.with(old, uint32(lec))
		return old
	})
}

// --- BTR --------------------------------------------------------------

// BTR packs BRP/TS1/TS2/SJW plus LBKM/SILM. It is intentionally a plain
// Reg32 (no CanDevice-side getters needed beyond programming it once at
// construct time) exposed through these free functions.
var (
	btrBRP  = bitfield{0, 10}
	btrTS1  = bitfield{16, 4}
	btrTS2  = bitfield{20, 3}
	btrSJW  = bitfield{24, 2}
	btrLBKM = bitfield{30, 1}
	btrSILM = bitfield{31, 1}
)

// ProgramBTR commits BRP/TS1/TS2/SJW/LBKM/SILM into reg in one atomic write.
func ProgramBTR(reg *Reg32, brp uint16, ts1, ts2, sjw uint8, lbkm, silm bool) {
	reg.Commit(func(old uint32) uint32 {
		old = btrBRP.with(old, uint32(brp))
		old = btrTS1.with(old, uint32(ts1))
		old = btrTS2.with(old, uint32(ts2))
		old = btrSJW.with(old, uint32(sjw))
		old = btrLBKM.with(old, b2u(lbkm))
		old = btrSILM.with(old, b2u(silm))
		return old
	})
}

func BTRLoopback(reg *Reg32) bool { return fieldBool(reg.Fetch(), btrLBKM) }
func BTRSilent(reg *Reg32) bool   { return fieldBool(reg.Fetch(), btrSILM) }

// --- FMR --------------------------------------------------------------

type FMRReg struct{ Reg32 }

var fmrFINIT = bitfield{0, 1}

func (r *FMRReg) SetFINIT(v bool) {
	r.Commit(func(old uint32) uint32 { return fmrFINIT.with(old, b2u(v)) })
}
func (r *FMRReg) FINIT() bool { return fieldBool(r.Fetch(), fmrFINIT) }

// SetBankBit/ClearBankBit/BankBit operate on one bit of a per-bank control
// register (FM1R, FS1R, FFA1R, FA1R), indexed by filter bank.
func SetBankBit(reg *Reg32, bank int)   { reg.SetBits(1 << uint(bank)) }
func ClearBankBit(reg *Reg32, bank int) { reg.ClearBits(1 << uint(bank)) }
func BankBit(reg *Reg32, bank int) bool { return reg.Fetch()&(1<<uint(bank)) != 0 }

// --- TX/RX mailbox registers -------------------------------------------

// TxMailboxRegs is one TX mailbox's register set: TIxR, TDTxR, TDLxR, TDHxR.
type TxMailboxRegs struct {
	TIxR  Reg32
	TDTxR Reg32
	TDLxR Reg32
	TDHxR Reg32
}

var (
	tiTXRQ = bitfield{0, 1}
	tiRTR  = bitfield{1, 1}
	tiIDE  = bitfield{2, 1}
	tiEXID = bitfield{3, 18}
	tiSTID = bitfield{21, 11}

	tdtDLC = bitfield{0, 4}
)

func (m *TxMailboxRegs) SetTXRQ(v bool) {
	m.TIxR.Commit(func(old uint32) uint32 { return tiTXRQ.with(old, b2u(v)) })
}
func (m *TxMailboxRegs) TXRQ() bool { return fieldBool(m.TIxR.Fetch(), tiTXRQ) }

func (m *TxMailboxRegs) SetIdentifier(rtr, ide bool, stid uint16, exid uint32) {
	m.TIxR.Commit(func(old uint32) uint32 {
		old = tiRTR.with(old, b2u(rtr))
		old = tiIDE.with(old, b2u(ide))
		old = tiSTID.with(old, uint32(stid))
		if ide {
			old = tiEXID.with(old, exid)
		} else {
			old = tiEXID.with(old, 0)
		}
		return old
	})
}

func (m *TxMailboxRegs) SetDLC(dlc uint8) {
	m.TDTxR.Commit(func(old uint32) uint32 { return tdtDLC.with(old, uint32(dlc)) })
}

func (m *TxMailboxRegs) Identifier() (rtr, ide bool, stid uint16, exid uint32) {
	v := m.TIxR.Fetch()
	return fieldBool(v, tiRTR), fieldBool(v, tiIDE), uint16(field(v, tiSTID)), field(v, tiEXID)
}

func (m *TxMailboxRegs) DLC() uint8 { return uint8(field(m.TDTxR.Fetch(), tdtDLC)) }

// RxMailboxRegs is one RX FIFO slot's register set: RIxR, RDTxR, RDLxR, RDHxR.
type RxMailboxRegs struct {
	RIxR  Reg32
	RDTxR Reg32
	RDLxR Reg32
	RDHxR Reg32
}

func (m *RxMailboxRegs) SetIdentifier(rtr, ide bool, stid uint16, exid uint32) {
	m.RIxR.Commit(func(old uint32) uint32 {
		old = tiRTR.with(old, b2u(rtr))
		old = tiIDE.with(old, b2u(ide))
		old = tiSTID.with(old, uint32(stid))
		old = tiEXID.with(old, exid)
		return old
	})
}

func (m *RxMailboxRegs) Identifier() (rtr, ide bool, stid uint16, exid uint32) {
	v := m.RIxR.Fetch()
	return fieldBool(v, tiRTR), fieldBool(v, tiIDE), uint16(field(v, tiSTID)), field(v, tiEXID)
}

func (m *RxMailboxRegs) SetDLC(dlc uint8) {
	m.RDTxR.Commit(func(old uint32) uint32 { return tdtDLC.with(old, uint32(dlc)) })
}

func (m *RxMailboxRegs) DLC() uint8 { return uint8(field(m.RDTxR.Fetch(), tdtDLC)) }

func b2u(v bool) uint32 {
	if v {
		return 1
	}
	return 0
}
