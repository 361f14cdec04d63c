package cantrace

import (
	"testing"

	"github.com/kstaniek/bxcan/internal/can"
)

func TestCodecEncodeStandardFrame(t *testing.T) {
	f := can.NewFrame(0x123, false, false, []byte{0xDE, 0xAD})
	rec := Record{Direction: DirTX, Index: 1, Frame: f}
	out := Codec{}.Encode(rec)

	if out[0] != pre0 || out[1] != pre1 {
		t.Fatalf("preamble = %#x %#x, want %#x %#x", out[0], out[1], pre0, pre1)
	}
	payloadLen := int(out[2])
	if len(out) != 3+payloadLen {
		t.Fatalf("len(out) = %d, want %d (len byte %d + 3 framing bytes)", len(out), 3+payloadLen, payloadLen)
	}
	payload := out[3 : len(out)-1]
	if Direction(payload[0]) != DirTX {
		t.Fatalf("direction = %c, want %c", payload[0], DirTX)
	}
	if payload[1] != 1 {
		t.Fatalf("index = %d, want 1", payload[1])
	}
	if payload[2] != 0 {
		t.Fatalf("extended flag = %d, want 0 for a standard frame", payload[2])
	}
	gotID := uint32(payload[4])<<24 | uint32(payload[5])<<16 | uint32(payload[6])<<8 | uint32(payload[7])
	if gotID != 0x123 {
		t.Fatalf("id = %#x, want %#x", gotID, 0x123)
	}
	if payload[8] != 2 {
		t.Fatalf("dlc = %d, want 2", payload[8])
	}
	if data := payload[9:11]; data[0] != 0xDE || data[1] != 0xAD {
		t.Fatalf("data = %v, want [0xde 0xad]", data)
	}

	sum := out[2] + pre0
	for _, b := range payload {
		sum += b
	}
	if out[len(out)-1] != sum {
		t.Fatalf("checksum = %#x, want %#x", out[len(out)-1], sum)
	}
}

func TestCodecEncodeExtendedFrameNoData(t *testing.T) {
	f := can.NewFrame(0x1FFFFFFF, true, true, nil)
	rec := Record{Direction: DirRX, Index: 0, Frame: f}
	out := Codec{}.Encode(rec)

	payload := out[3 : len(out)-1]
	if payload[2] != 1 {
		t.Fatalf("extended flag = %d, want 1", payload[2])
	}
	if payload[3] != 1 {
		t.Fatalf("rtr flag = %d, want 1", payload[3])
	}
	if payload[8] != 0 {
		t.Fatalf("dlc = %d, want 0", payload[8])
	}
	if len(payload) != 9 {
		t.Fatalf("len(payload) = %d, want 9 (no data bytes)", len(payload))
	}
}
