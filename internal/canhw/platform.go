// Package canhw is the bxCAN driver engine: TxMailbox, RxFifo, TxEngine,
// RxEngine, StatusEngine, CanDevice and the Controller factory (spec.md §2's
// C1-C7). It depends only on internal/can and internal/canreg so the root
// bxcan package can sit on top of it without an import cycle.
package canhw

import (
	"context"
	"sync"
	"sync/atomic"
)

// Semaphore is the counting-semaphore collaborator spec.md §5 describes for
// TX mailbox and RX FIFO slot accounting. Acquire blocks the calling
// goroutine (modelling a blocked thread); ReleaseFromInterrupt is the
// permit-release path taken from the simulated ISR goroutine, kept as a
// distinct method because spec.md's §5 and §9 call for interrupt-context
// release to report whether a context switch ("yield") should follow.
type Semaphore interface {
	Acquire(ctx context.Context) error
	TryAcquire() bool
	Release()
	// ReleaseFromInterrupt adds one permit and reports whether a waiter was
	// parked on Acquire at the moment of release (the "needs yield" hint).
	ReleaseFromInterrupt() (needsYield bool)
}

// chanSemaphore is the default Semaphore, a buffered channel of tokens,
// using the buffered-chan-as-counting-primitive idiom.
type chanSemaphore struct {
	tokens  chan struct{}
	waiters atomic.Int32
}

// NewSemaphore returns a Semaphore initialised with n permits available.
func NewSemaphore(n int) Semaphore {
	s := &chanSemaphore{tokens: make(chan struct{}, n)}
	for i := 0; i < n; i++ {
		s.tokens <- struct{}{}
	}
	return s
}

func (s *chanSemaphore) Acquire(ctx context.Context) error {
	select {
	case <-s.tokens:
		return nil
	default:
	}
	s.waiters.Add(1)
	defer s.waiters.Add(-1)
	select {
	case <-s.tokens:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *chanSemaphore) TryAcquire() bool {
	select {
	case <-s.tokens:
		return true
	default:
		return false
	}
}

func (s *chanSemaphore) Release() {
	select {
	case s.tokens <- struct{}{}:
	default:
		// Pool already at capacity; extra release is a bug elsewhere but
		// must never block the caller.
	}
}

func (s *chanSemaphore) ReleaseFromInterrupt() bool {
	yield := s.waiters.Load() > 0
	s.Release()
	return yield
}

// InterruptResource is one bindable interrupt line, e.g. "CAN1_TX" or
// "CAN1_RX0". The bound handler stands in for interrupt context; it is never
// invoked as part of the enable/disable/bind call.
type InterruptResource interface {
	Enable()
	Disable()
	Bind(handler func())
}

// InterruptController vends the named interrupt resources a CanDevice binds
// its ISR routines to (spec.md §9: "the ISR should be a first-class value
// bound to the interrupt resource, not hard-wired into the vector table").
type InterruptController interface {
	Resource(name string) InterruptResource
}

// simInterrupt is a software-triggerable interrupt line: Fire runs the bound
// handler on the calling goroutine if the line is enabled, standing in for a real
// NVIC dispatch. Grounded on waj334-sigo's runtime/arm/cortexm Interrupt
// type, generalised from a fixed NVIC register to a plain synchronised
// struct since no bare-metal toolchain is available here.
type simInterrupt struct {
	mu      sync.Mutex
	enabled bool
	handler func()
}

func (r *simInterrupt) Enable()  { r.mu.Lock(); r.enabled = true; r.mu.Unlock() }
func (r *simInterrupt) Disable() { r.mu.Lock(); r.enabled = false; r.mu.Unlock() }

func (r *simInterrupt) Bind(handler func()) {
	r.mu.Lock()
	r.handler = handler
	r.mu.Unlock()
}

// Fire invokes the bound handler synchronously on the caller's goroutine if
// the line is enabled and a handler is bound. SimBus fires lines from
// Arbitrate, which TxEngine.Transmit invokes through its onSent hook, so the
// "interrupt context" is the transmitting goroutine itself.
func (r *simInterrupt) Fire() {
	r.mu.Lock()
	h, on := r.handler, r.enabled
	r.mu.Unlock()
	if on && h != nil {
		h()
	}
}

// SimInterruptController is an InterruptController backed by simInterrupt
// lines, used by the simulated bus core and by tests.
type SimInterruptController struct {
	mu    sync.Mutex
	lines map[string]*simInterrupt
}

func NewSimInterruptController() *SimInterruptController {
	return &SimInterruptController{lines: make(map[string]*simInterrupt)}
}

func (c *SimInterruptController) Resource(name string) InterruptResource {
	return c.line(name)
}

func (c *SimInterruptController) line(name string) *simInterrupt {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.lines[name]
	if !ok {
		l = &simInterrupt{}
		c.lines[name] = l
	}
	return l
}

// Fire triggers the named line, invoking its bound handler if enabled.
func (c *SimInterruptController) Fire(name string) { c.line(name).Fire() }

// ClockProbe reports the CPU clock a Config's bit timing was computed
// against (spec.md §4.6 assumes a 36 MHz PCLK1; a real driver would read
// this from RCC, this package's ClockProbe implementation just returns the
// constant it was built with).
type ClockProbe interface {
	GetCpuClock() uint32
}

// FixedClock is a ClockProbe with a constant reading.
type FixedClock uint32

func (f FixedClock) GetCpuClock() uint32 { return uint32(f) }

const pclk1Hz = 36_000_000

// BusCore is the simulated silicon collaborator CanDevice drives its
// bounded-polling init/deinit sequence against: each polling iteration
// calls Tick once to let the simulated hardware react to the last register
// write (e.g. asserting MSR.INAK once MCR.INRQ has been set). A real
// bare-metal build has no such collaborator — hardware reacts within a few
// bus cycles on its own — so Tick is purely a feature of this in-process
// simulation.
type BusCore interface {
	Tick()
}

