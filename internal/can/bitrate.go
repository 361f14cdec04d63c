package can

// BitTiming holds the decoded BTR fields for one (sample point, bit rate)
// combination.
type BitTiming struct {
	SJW uint8 // 0..3, register holds SJW-1
	TS1 uint8 // register holds TS1-1
	TS2 uint8 // register holds TS2-1
	BRP uint16
}

// bitTimingTable packs the BTR fields SJW/TS1/TS2/BRP for a 36 MHz PCLK1, one
// row per SamplePoint, one column per BitRate, in the exact order and values
// spec.md §4.6 mandates reproducing verbatim.
var bitTimingTable = [2][numBitRates]uint32{
	SamplePointCANopen: {
		0x001e0001, 0x001b0002, 0x001e0003, 0x001c0008,
		0x001c0011, 0x001e0013, 0x001c002c, 0x001e0063, 0x001c00e0,
	},
	SamplePointARINC825: {
		0x003c0001, 0x00390002, 0x003c0003, 0x003a0008,
		0x003a0011, 0x004d0011, 0x004d0023, 0x004d0059, 0x003a00e0,
	},
}

// LookupBitTiming decodes the packed table entry for (sp, br). Callers must
// have already validated sp and br via Config.Validate.
func LookupBitTiming(sp SamplePoint, br BitRate) BitTiming {
	packed := bitTimingTable[sp][br]
	return BitTiming{
		SJW: uint8(packed>>24) & 0x3,
		TS1: uint8(packed>>16) & 0xF,
		TS2: uint8(packed>>20) & 0x7,
		BRP: uint16(packed & 0x3FF),
	}
}
