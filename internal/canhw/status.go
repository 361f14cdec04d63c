package canhw

import (
	"sync"

	"github.com/kstaniek/bxcan/internal/canmetrics"
	"github.com/kstaniek/bxcan/internal/canreg"
)

// BusHealth is a snapshot of the latched error-state bits StatusEngine
// observes from ESR/MSR on each SCE event (spec.md §4.5, component C5).
type BusHealth struct {
	ErrorWarning bool
	ErrorPassive bool
	BusOff       bool
	LastErrCode  uint8
	WakeupCount  uint64
	SleepAckSeen uint64
}

// StatusEngine services the status-change-error interrupt. It performs no
// automatic recovery: bus-off recovery is left entirely to the ABOM bit set
// at construct time (spec.md §4.5).
type StatusEngine struct {
	esr *canreg.ESRReg
	msr *canreg.MSRReg
	irq InterruptResource

	mu     sync.Mutex
	health BusHealth
}

func newStatusEngine(esr *canreg.ESRReg, msr *canreg.MSRReg, irq InterruptResource) *StatusEngine {
	s := &StatusEngine{esr: esr, msr: msr, irq: irq}
	irq.Bind(s.isr)
	return s
}

func (s *StatusEngine) isr() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.health.ErrorWarning = s.esr.EWGF()
	s.health.ErrorPassive = s.esr.EPVF()
	s.health.BusOff = s.esr.BOFF()
	s.health.LastErrCode = s.esr.LEC()
	if s.msr.WKUI() {
		s.health.WakeupCount++
		s.msr.ClearWKUI()
	}
	if s.msr.SLAKI() {
		s.health.SleepAckSeen++
		s.msr.ClearSLAKI()
	}
	canmetrics.SetBusHealth(s.health.BusOff, s.health.ErrorPassive, s.health.ErrorWarning, s.health.LastErrCode)
}

// Health returns the latest observed bus-health snapshot.
func (s *StatusEngine) Health() BusHealth {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.health
}

// Enable/Disable toggle the SCE interrupt line.
func (s *StatusEngine) Enable()  { s.irq.Enable() }
func (s *StatusEngine) Disable() { s.irq.Disable() }
