package can

import "fmt"

// NumFilterBanks is the number of programmable acceptance filter banks.
const NumFilterBanks = 14

// FIFO selects one of the two hardware receive FIFOs.
type FIFO int

const (
	FIFO0 FIFO = iota
	FIFO1

	NumFIFOs = int(FIFO1) + 1
)

func (f FIFO) String() string {
	switch f {
	case FIFO0:
		return "FIFO0"
	case FIFO1:
		return "FIFO1"
	default:
		return fmt.Sprintf("FIFO(%d)", int(f))
	}
}

// FilterMode selects mask matching (accept-if-matches-under-mask) or list
// matching (accept-if-identical).
type FilterMode int

const (
	FilterModeMask FilterMode = iota
	FilterModeList
)

// FilterScale selects one 32-bit filter per bank or two independent 16-bit
// filters per bank.
type FilterScale int

const (
	FilterScale16Bit FilterScale = iota
	FilterScale32Bit
)

// FilterValues is a tagged union; which fields are meaningful is fully
// determined by (Mode, Scale):
//
//	Mask + 32-bit: ID32[0] is the identifier, Mask32 is the mask.
//	List + 32-bit: ID32[0] and ID32[1] are two accepted identifiers.
//	Mask + 16-bit: (ID16[0], Mask16[0]) and (ID16[1], Mask16[1]) are two
//	               independent masked sub-filters.
//	List + 16-bit: ID16[0..3] are four accepted identifiers.
type FilterValues struct {
	ID32   [2]uint32
	Mask32 uint32
	ID16   [4]uint16
	Mask16 [2]uint16
}

// RxFilter is a filter-bank programming record.
type RxFilter struct {
	Index  int
	FIFO   FIFO
	Mode   FilterMode
	Scale  FilterScale
	Values FilterValues
}

// Validate checks the one invariant the value itself can enforce: the bank
// index is in range. Whether the device is in the right state to accept a
// filter update is checked by the root package's Device.SetReceiveFilter
// before it calls RxEngine.SetReceiveFilter.
func (f RxFilter) Validate() error {
	if f.Index < 0 || f.Index >= NumFilterBanks {
		return fmt.Errorf("%w: %d", ErrInvalidFilterIndex, f.Index)
	}
	return nil
}
