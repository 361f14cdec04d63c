package canhw

import (
	"fmt"
	"sync"

	"github.com/kstaniek/bxcan/internal/can"
	"github.com/kstaniek/bxcan/internal/canreg"
)

// Controller is the process-wide singleton holding the register window and
// the shared kernel-service (interrupt controller) handle, vending at most
// one CanDevice — the target chip has a single CAN peripheral (spec.md §4.7,
// component C7).
type Controller struct {
	regs     *canreg.Peripheral
	sys      *canreg.SystemRegs
	bus      BusCore
	irqs     InterruptController
	cpuClock uint32

	mu      sync.Mutex
	vended  bool
}

var (
	controllerOnce sync.Once
	controllerInst *Controller
)

// InitController performs the OnceInit construction spec.md §9 calls for:
// the first call wins and builds the singleton from the given collaborators;
// every later call (with any arguments) returns the original instance.
// Concurrent InitController calls are not a supported usage (spec.md §5: the
// enclosing application constructs the driver once at boot).
func InitController(regs *canreg.Peripheral, sys *canreg.SystemRegs, bus BusCore, irqs InterruptController, cpuClock uint32) *Controller {
	controllerOnce.Do(func() {
		controllerInst = &Controller{regs: regs, sys: sys, bus: bus, irqs: irqs, cpuClock: cpuClock}
	})
	return controllerInst
}

// Create vends a CanDevice bound to the singleton's register window and
// kernel-service handle. Only one CanDevice may be outstanding at a time;
// a second Create before the first device's Deinit fails with
// ErrControllerInUse.
func (c *Controller) Create(cfg can.Config) (*CanDevice, error) {
	c.mu.Lock()
	if c.vended {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w", can.ErrControllerInUse)
	}
	c.vended = true
	c.mu.Unlock()

	dev, err := NewCanDevice(cfg, c.cpuClock, c.regs, c.sys, c.bus, c.irqs)
	if err != nil {
		c.mu.Lock()
		c.vended = false
		c.mu.Unlock()
		return nil, err
	}
	return dev, nil
}

// Release marks the controller free to vend a new CanDevice, called once a
// device has fully deinitialised.
func (c *Controller) Release() {
	c.mu.Lock()
	c.vended = false
	c.mu.Unlock()
}

// ResetControllerForTest tears down the process-wide singleton so test cases
// can construct a fresh Controller bound to a fresh Platform. Production code
// never calls this: the real board has exactly one bxCAN peripheral for the
// process lifetime.
func ResetControllerForTest() {
	controllerOnce = sync.Once{}
	controllerInst = nil
}
