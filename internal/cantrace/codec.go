package cantrace

import (
	"github.com/kstaniek/bxcan/internal/can"
)

// Direction tags a Record as an observed transmit or receive event.
type Direction byte

const (
	DirTX Direction = 'T'
	DirRX Direction = 'R'
)

// Record is one trace line: which mailbox or FIFO the event happened on,
// which direction, and the frame involved.
type Record struct {
	Direction Direction
	Index     int
	Frame     can.Frame
}

// Codec frames Records as [preamble0, preamble1, len, payload..., checksum].
type Codec struct{}

const (
	pre0 = 0xC5
	pre1 = 0x1A
)

// Encode builds one framed trace line:
// [0xC5, 0x1A, len, dir, index, extended, rtr, id(4 BE), dlc, data(0..8), checksum]
func (Codec) Encode(r Record) []byte {
	f := r.Frame
	data := f.Data()
	payload := make([]byte, 8, 9+len(data))
	payload[0] = byte(r.Direction)
	payload[1] = byte(r.Index)
	if f.Extended {
		payload[2] = 1
	}
	if f.RTR {
		payload[3] = 1
	}
	id := uint32(f.ID)
	payload[4] = byte(id >> 24)
	payload[5] = byte(id >> 16)
	payload[6] = byte(id >> 8)
	payload[7] = byte(id)
	payload = append(payload, f.DLC)
	payload = append(payload, data...)

	out := make([]byte, len(payload)+4)
	out[0] = pre0
	out[1] = pre1
	out[2] = byte(len(payload) + 1)
	copy(out[3:], payload)

	sum := out[2] + pre0
	for _, b := range payload {
		sum += b
	}
	out[len(out)-1] = sum
	return out
}
