package can

import "fmt"

// ControllerNumber names a CAN peripheral instance. The target chip exposes
// only CAN1; CAN2 is defined to document the chip boundary but is always
// rejected by Config.Validate (see original_source/include/public/drv.Can.hpp).
type ControllerNumber int

const (
	CAN1 ControllerNumber = iota
	CAN2
)

func (n ControllerNumber) String() string {
	switch n {
	case CAN1:
		return "CAN1"
	case CAN2:
		return "CAN2"
	default:
		return fmt.Sprintf("ControllerNumber(%d)", int(n))
	}
}

// BitRate is one of the nine bit-rate selectors the bit-timing table is
// indexed by. Values are classic-CAN kbit/s.
type BitRate int

const (
	BitRate1000 BitRate = iota
	BitRate800
	BitRate500
	BitRate250
	BitRate125
	BitRate100
	BitRate50
	BitRate20
	BitRate10

	numBitRates = int(BitRate10) + 1
)

func (b BitRate) String() string {
	kbps := [...]string{"1000", "800", "500", "250", "125", "100", "50", "20", "10"}
	if int(b) < 0 || int(b) >= len(kbps) {
		return "invalid"
	}
	return kbps[b] + "kbit/s"
}

// SamplePoint selects the position within a bit time at which the bus is
// sampled.
type SamplePoint int

const (
	// SamplePointCANopen is the 87.5% sample point used by CANopen.
	SamplePointCANopen SamplePoint = iota
	// SamplePointARINC825 is the 75% sample point used by ARINC 825.
	SamplePointARINC825
)

func (s SamplePoint) String() string {
	switch s {
	case SamplePointCANopen:
		return "CANopen(87.5%)"
	case SamplePointARINC825:
		return "ARINC825(75%)"
	default:
		return "invalid"
	}
}

// ModeOptions mirrors the MCR/BTR option bits spec.md §3 groups under
// "Config". Field names match the register bit names.
type ModeOptions struct {
	TXFP bool // transmit FIFO priority (mailbox order instead of identifier priority)
	RFLM bool // receive FIFO locked mode (drop instead of overwrite on overflow)
	NART bool // no automatic retransmission
	AWUM bool // automatic wakeup mode
	ABOM bool // automatic bus-off management
	TTCM bool // time-triggered communication mode
	DBF  bool // debug freeze (stop CAN during CPU halt)
	LBKM bool // loopback mode
	SILM bool // silent mode
}

// Config is the immutable configuration consumed once at Create. Any invalid
// field fails construction.
type Config struct {
	Number      ControllerNumber
	BitRate     BitRate
	SamplePoint SamplePoint
	Options     ModeOptions
}

// Validate reports the first configuration error found, or nil.
func (c Config) Validate() error {
	if c.Number != CAN1 {
		return fmt.Errorf("%w: %s", ErrUnsupportedController, c.Number)
	}
	if int(c.BitRate) < 0 || int(c.BitRate) >= numBitRates {
		return fmt.Errorf("%w: %d", ErrInvalidBitRate, int(c.BitRate))
	}
	if c.SamplePoint != SamplePointCANopen && c.SamplePoint != SamplePointARINC825 {
		return fmt.Errorf("%w: %d", ErrInvalidSamplePoint, int(c.SamplePoint))
	}
	return nil
}
