package canreg

// SystemRegs groups the clock-gating, GPIO and debug-freeze registers
// CanDevice's construct/deinit sequence touches outside the bxCAN
// peripheral itself (spec.md §6's "External" register list). These are
// genuinely out of this driver's ownership on real silicon — RCC, GPIOA and
// DBG are shared across the whole chip — but since no bare-metal toolchain
// is available here they are modelled the same way as Peripheral: plain
// atomics a test or simulated bus core can observe.
type SystemRegs struct {
	RCCAPB1ENR Reg32
	RCCAPB2ENR Reg32
	GPIOACRH   Reg32
	DBGCR      Reg32
}

var (
	rccCAN1EN = bitfield{25, 1} // RCC.APB1ENR.CAN1EN
	rccIOPAEN = bitfield{2, 1}  // RCC.APB2ENR.IOPAEN

	dbgCAN1STOP = bitfield{14, 1} // DBG.CR.DBGCAN1STOP (wwdg/iwdg omitted)
)

func (s *SystemRegs) SetCAN1ClockEnable(v bool) {
	s.RCCAPB1ENR.Commit(func(old uint32) uint32 { return rccCAN1EN.with(old, b2u(v)) })
}

func (s *SystemRegs) CAN1ClockEnabled() bool {
	return fieldBool(s.RCCAPB1ENR.Fetch(), rccCAN1EN)
}

func (s *SystemRegs) SetPortAClockEnable(v bool) {
	s.RCCAPB2ENR.Commit(func(old uint32) uint32 { return rccIOPAEN.with(old, b2u(v)) })
}

// ConfigurePA11RX programs PA11 (CAN_RX) as input with pull-up: CNF=10,
// MODE=00 in the CRH nibble for pin 11 (bits 12-15).
func (s *SystemRegs) ConfigurePA11RX() {
	nibble := bitfield{12, 4}
	s.GPIOACRH.Commit(func(old uint32) uint32 { return nibble.with(old, 0b1000) })
}

// ConfigurePA12TX programs PA12 (CAN_TX) as alternate-function push-pull,
// max-speed output: CNF=10, MODE=11 in the CRH nibble for pin 12 (bits
// 16-19).
func (s *SystemRegs) ConfigurePA12TX() {
	nibble := bitfield{16, 4}
	s.GPIOACRH.Commit(func(old uint32) uint32 { return nibble.with(old, 0b1011) })
}

func (s *SystemRegs) SetDebugFreeze(v bool) {
	s.DBGCR.Commit(func(old uint32) uint32 { return dbgCAN1STOP.with(old, b2u(v)) })
}
